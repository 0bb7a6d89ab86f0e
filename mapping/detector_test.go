package mapping

import (
	"testing"
)

func detectorConfig() *Configuration {
	return &Configuration{
		Documents: &DocumentStructures{
			Version: "1.0.0",
			Templates: []TemplateSignature{
				{
					Name:               "fedramp_inventory",
					Version:            "13",
					RequiredColumns:    []string{"Asset Name", "IP Address", "Asset Type"},
					OptionalColumns:    []string{"Comments", "Serial Number"},
					RequiredWorksheets: []string{"Inventory"},
				},
				{
					Name:            "fedramp_poam",
					Version:         "3.0",
					RequiredColumns: []string{"POAM ID", "Severity", "Status", "Scheduled Completion Date"},
				},
			},
		},
	}
}

func TestDetectMatchingTemplate(t *testing.T) {
	d := NewTemplateDetector(detectorConfig())

	headers := []string{"Asset Name", "IP Address", "Asset Type", "Comments"}
	worksheets := []string{"Inventory", "Instructions"}

	best, ok := d.Best(headers, worksheets)
	if !ok {
		t.Fatal("expected a template match")
	}
	if best.Template.Name != "fedramp_inventory" {
		t.Errorf("detected %q, want fedramp_inventory", best.Template.Name)
	}
	if best.Confidence < detectionThreshold {
		t.Errorf("confidence %f below threshold", best.Confidence)
	}
}

func TestDetectNoMatch(t *testing.T) {
	d := NewTemplateDetector(detectorConfig())

	headers := []string{"Revenue", "Quarter", "Region"}
	if _, ok := d.Best(headers, nil); ok {
		t.Error("unrelated headers must not match any template")
	}
}

func TestDetectOrdersByConfidence(t *testing.T) {
	d := NewTemplateDetector(detectorConfig())

	// POA&M headers with full coverage
	headers := []string{"POAM ID", "Severity", "Status", "Scheduled Completion Date"}
	results := d.Detect(headers, nil)
	if len(results) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if results[0].Template.Name != "fedramp_poam" {
		t.Errorf("top candidate %q, want fedramp_poam", results[0].Template.Name)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Confidence > results[i-1].Confidence {
			t.Error("candidates not ordered by confidence")
		}
	}
}

func TestDetectNilConfiguration(t *testing.T) {
	d := NewTemplateDetector(nil)
	if results := d.Detect([]string{"Asset Name"}, nil); len(results) != 0 {
		t.Errorf("nil configuration produced %d candidates", len(results))
	}
}

func TestHeaderMatchesLoosely(t *testing.T) {
	tests := []struct {
		expected string
		actual   string
		want     bool
	}{
		{"Asset Name", "asset_name", true},
		{"IP Address", "IP Address (IPv4)", true},
		{"Severity", "Raw Severity", true},
		{"Status", "Asset Type", false},
		{"", "anything", false},
	}
	for _, tt := range tests {
		if got := headerMatches(tt.expected, tt.actual); got != tt.want {
			t.Errorf("headerMatches(%q, %q) = %t, want %t", tt.expected, tt.actual, got, tt.want)
		}
	}
}
