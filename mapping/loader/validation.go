package loader

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/tabula/mapping"
)

// ValidationResult is the outcome of validating a loaded snapshot.
type ValidationResult struct {
	IsValid  bool          `json:"is_valid"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Validate inspects a snapshot for completeness and consistency
// problems. Warnings never fail the load; IsValid turns false only
// when no critical configuration loaded at all.
func (l *Loader) Validate(config *mapping.Configuration) ValidationResult {
	start := time.Now()
	result := ValidationResult{IsValid: true}

	if config == nil || config.IsEmpty() {
		result.IsValid = false
		result.Errors = append(result.Errors, "no configuration loaded")
		result.Duration = time.Since(start)
		return result
	}

	result.Warnings = append(result.Warnings, completenessWarnings(config)...)
	result.Warnings = append(result.Warnings, consistencyWarnings(config)...)

	if config.Inventory == nil && config.Poam == nil && config.SSPSections == nil {
		result.IsValid = false
		result.Errors = append(result.Errors,
			"no critical configurations loaded (inventory, POA&M, or SSP)")
	}

	result.Duration = time.Since(start)
	return result
}

func completenessWarnings(config *mapping.Configuration) []string {
	var warnings []string

	if config.Inventory == nil {
		warnings = append(warnings, "inventory mappings not loaded")
	} else if len(config.Inventory.Columns.Required) == 0 {
		warnings = append(warnings, "inventory mappings define no required columns")
	}

	if config.Poam == nil {
		warnings = append(warnings, "POA&M mappings not loaded")
	} else {
		if len(config.Poam.Columns.Required) == 0 {
			warnings = append(warnings, "POA&M mappings define no required columns")
		}
		if len(config.Poam.ValidationRules.SeverityLevels) == 0 {
			warnings = append(warnings, "POA&M mappings define no severity levels")
		}
		if len(config.Poam.ValidationRules.StatusValues) == 0 {
			warnings = append(warnings, "POA&M mappings define no status values")
		}
	}

	if config.SSPSections == nil {
		warnings = append(warnings, "SSP sections not loaded")
	} else if len(config.SSPSections.SectionMappings) == 0 {
		warnings = append(warnings, "SSP sections define no section mappings")
	}

	if config.Controls == nil {
		warnings = append(warnings, "control mappings not loaded, control detection is limited")
	}
	if config.Documents == nil {
		warnings = append(warnings, "document structures not loaded, template detection is limited")
	}

	return warnings
}

func consistencyWarnings(config *mapping.Configuration) []string {
	var warnings []string

	// Loaded sub-configs should agree on their major version
	type versioned struct {
		name    string
		version string
	}
	var versions []versioned
	if config.Inventory != nil {
		versions = append(versions, versioned{"inventory", config.Inventory.Version})
	}
	if config.Poam != nil {
		versions = append(versions, versioned{"poam", config.Poam.Version})
	}
	if config.SSPSections != nil {
		versions = append(versions, versioned{"ssp", config.SSPSections.Version})
	}

	var first *semver.Version
	firstName := ""
	for _, v := range versions {
		parsed, err := semver.NewVersion(v.version)
		if err != nil {
			continue
		}
		if first == nil {
			first, firstName = parsed, v.name
			continue
		}
		if parsed.Major() != first.Major() {
			warnings = append(warnings, fmt.Sprintf(
				"version mismatch: %s is v%s but %s is v%s",
				v.name, parsed, firstName, first))
		}
	}

	// Target fields claimed by both inventory and POA&M are ambiguous
	if config.Inventory != nil && config.Poam != nil {
		for target := range config.Poam.Columns.Required {
			if _, dup := config.Inventory.Columns.Required[target]; dup {
				warnings = append(warnings, fmt.Sprintf(
					"target field %q defined by both inventory and POA&M mappings", target))
			}
		}
	}

	return warnings
}
