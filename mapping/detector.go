package mapping

import (
	"sort"
	"strings"

	"github.com/teranos/tabula/logger"
)

// Detection weights: required columns dominate, worksheet names help,
// optional columns break ties.
const (
	worksheetWeight = 0.3
	requiredWeight  = 0.5
	optionalWeight  = 0.2

	// detectionThreshold is the minimum confidence to report a template
	detectionThreshold = 0.5
)

// DetectionResult is one candidate template with its confidence.
type DetectionResult struct {
	Template   TemplateSignature `json:"template"`
	Confidence float64           `json:"confidence"`
}

// TemplateDetector identifies which known workbook layout a set of
// headers and worksheet names came from.
type TemplateDetector struct {
	templates []TemplateSignature
}

// NewTemplateDetector builds a detector over the configured document
// structures. A nil configuration yields a detector that never matches.
func NewTemplateDetector(config *Configuration) *TemplateDetector {
	d := &TemplateDetector{}
	if config != nil && config.Documents != nil {
		d.templates = config.Documents.Templates
	}
	return d
}

// Detect scores every known template and returns candidates at or
// above the detection threshold, best first.
func (d *TemplateDetector) Detect(headers, worksheets []string) []DetectionResult {
	var results []DetectionResult
	for _, template := range d.templates {
		confidence := scoreTemplate(template, headers, worksheets)
		if confidence >= detectionThreshold {
			results = append(results, DetectionResult{Template: template, Confidence: confidence})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})

	if len(results) > 0 {
		logger.Debugw("Template detected",
			"template", results[0].Template.Name,
			"confidence", results[0].Confidence,
			"candidates", len(results))
	}
	return results
}

// Best returns the single highest-confidence template, if any clears
// the threshold.
func (d *TemplateDetector) Best(headers, worksheets []string) (DetectionResult, bool) {
	results := d.Detect(headers, worksheets)
	if len(results) == 0 {
		return DetectionResult{}, false
	}
	return results[0], true
}

// scoreTemplate computes weighted hit rates over the template's
// expectations. Expectation groups a template does not declare drop
// out of the weighting entirely.
func scoreTemplate(template TemplateSignature, headers, worksheets []string) float64 {
	var score, totalWeight float64

	if len(template.RequiredWorksheets) > 0 {
		score += worksheetWeight * hitRate(template.RequiredWorksheets, worksheets)
		totalWeight += worksheetWeight
	}
	if len(template.RequiredColumns) > 0 {
		score += requiredWeight * hitRate(template.RequiredColumns, headers)
		totalWeight += requiredWeight
	}
	if len(template.OptionalColumns) > 0 {
		score += optionalWeight * hitRate(template.OptionalColumns, headers)
		totalWeight += optionalWeight
	}

	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}

// hitRate is the fraction of expected names present in actual, using
// cleaned contains-matching in both directions.
func hitRate(expected, actual []string) float64 {
	if len(expected) == 0 {
		return 0
	}
	hits := 0
	for _, e := range expected {
		for _, a := range actual {
			if headerMatches(e, a) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(expected))
}

// headerMatches compares two header names loosely: equal after
// normalization, or one cleaned form containing the other.
func headerMatches(expected, actual string) bool {
	ne, na := NormalizeColumnName(expected), NormalizeColumnName(actual)
	if ne == "" || na == "" {
		return false
	}
	return ne == na || strings.Contains(na, ne) || strings.Contains(ne, na)
}
