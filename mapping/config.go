// Package mapping resolves spreadsheet column headers to canonical
// target fields using exact lookup, override rules, and fuzzy matching.
package mapping

import (
	"time"
)

// ColumnMapping describes one target field and the source column
// names that map to it.
type ColumnMapping struct {
	TargetField   string   `json:"target_field"`
	SourceColumns []string `json:"source_columns"`
	Required      bool     `json:"required"`
	DataType      string   `json:"data_type,omitempty"`
	DefaultValue  any      `json:"default_value,omitempty"`
}

// ColumnSet groups a document's required and optional column mappings,
// keyed by target field.
type ColumnSet struct {
	Required map[string]ColumnMapping `json:"required_columns"`
	Optional map[string]ColumnMapping `json:"optional_columns,omitempty"`
}

// InventoryMappings is the integrated inventory workbook configuration.
type InventoryMappings struct {
	Version         string                   `json:"version"`
	Description     string                   `json:"description,omitempty"`
	Columns         ColumnSet                `json:"column_mappings"`
	ValidationRules InventoryValidationRules `json:"validation_rules,omitempty"`
}

// InventoryValidationRules constrains inventory field values.
type InventoryValidationRules struct {
	AssetTypes   []string `json:"asset_types,omitempty"`
	Environments []string `json:"environments,omitempty"`
}

// PoamMappings is the POA&M workbook configuration.
type PoamMappings struct {
	Version         string              `json:"version"`
	Description     string              `json:"description,omitempty"`
	Columns         ColumnSet           `json:"column_mappings"`
	ValidationRules PoamValidationRules `json:"validation_rules,omitempty"`
}

// PoamValidationRules constrains POA&M field values.
type PoamValidationRules struct {
	SeverityLevels []string `json:"severity_levels,omitempty"`
	StatusValues   []string `json:"status_values,omitempty"`
}

// SSPSections maps document section headings to canonical section ids.
type SSPSections struct {
	Version           string            `json:"version"`
	SectionMappings   map[string]string `json:"section_mappings"`
	ControlExtraction ControlExtraction `json:"control_extraction,omitempty"`
}

// ControlExtraction holds regex patterns for pulling control ids out
// of section text.
type ControlExtraction struct {
	Patterns []string `json:"patterns,omitempty"`
}

// ControlMappings associates control identifiers with the keywords
// that indicate their presence.
type ControlMappings struct {
	Version  string              `json:"version"`
	Controls map[string][]string `json:"controls"`
}

// DocumentStructures carries the known template signatures used for
// workbook detection.
type DocumentStructures struct {
	Version   string              `json:"version"`
	Templates []TemplateSignature `json:"templates"`
}

// TemplateSignature identifies a known spreadsheet layout.
type TemplateSignature struct {
	Name               string   `json:"name"`
	Version            string   `json:"version,omitempty"`
	RequiredColumns    []string `json:"required_columns"`
	OptionalColumns    []string `json:"optional_columns,omitempty"`
	RequiredWorksheets []string `json:"required_worksheets,omitempty"`
}

// Configuration is the complete loaded mapping state. Any slot may be
// nil when its file failed to load; consumers must tolerate partial
// configurations.
type Configuration struct {
	Inventory   *InventoryMappings  `json:"inventory,omitempty"`
	Poam        *PoamMappings       `json:"poam,omitempty"`
	SSPSections *SSPSections        `json:"ssp_sections,omitempty"`
	Controls    *ControlMappings    `json:"controls,omitempty"`
	Documents   *DocumentStructures `json:"documents,omitempty"`
	LoadedAt    time.Time           `json:"loaded_at"`
}

// ColumnSets returns the non-nil column sets keyed by document kind.
func (c *Configuration) ColumnSets() map[string]ColumnSet {
	sets := make(map[string]ColumnSet)
	if c.Inventory != nil {
		sets["inventory"] = c.Inventory.Columns
	}
	if c.Poam != nil {
		sets["poam"] = c.Poam.Columns
	}
	return sets
}

// IsEmpty reports whether nothing loaded at all.
func (c *Configuration) IsEmpty() bool {
	return c.Inventory == nil && c.Poam == nil && c.SSPSections == nil &&
		c.Controls == nil && c.Documents == nil
}
