package fuzzy

import "testing"

func TestFinishResultsOrdering(t *testing.T) {
	results := []Match{
		{Target: "zz_name", Confidence: 0.8},
		{Target: "asset name", Confidence: 0.8},
		{Target: "asset id", Confidence: 0.8},
		{Target: "better", Confidence: 0.9},
	}

	got := finishResults("Asset Name", results, 0)

	// Highest confidence first; equal confidences prefer the candidate
	// sharing more source tokens, then sort by name
	want := []string{"better", "asset name", "asset id", "zz_name"}
	for i, target := range want {
		if got[i].Target != target {
			t.Fatalf("position %d = %q, want %q (full order %v)", i, got[i].Target, target, got)
		}
	}
}

func TestFinishResultsTruncates(t *testing.T) {
	results := []Match{
		{Target: "a", Confidence: 0.9},
		{Target: "b", Confidence: 0.8},
		{Target: "c", Confidence: 0.7},
	}
	got := finishResults("a", results, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Target != "a" || got[1].Target != "b" {
		t.Errorf("order = %v", got)
	}
}
