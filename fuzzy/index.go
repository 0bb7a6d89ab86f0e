package fuzzy

// TargetIndex buckets candidate targets by length and first character
// so large target sets can be pruned before scoring. Strings the index
// rules out would score poorly anyway; the union of nearby-length and
// same-first-rune buckets keeps recall high.
type TargetIndex struct {
	targets  []string
	byLength map[int][]int
	byFirst  map[rune][]int
}

// lengthTolerance is how far a candidate's length may differ from the
// source before the length bucket excludes it.
const lengthTolerance = 2

// NewTargetIndex builds an index over the given targets. The slice is
// retained; callers must not mutate it afterwards.
func NewTargetIndex(targets []string) *TargetIndex {
	idx := &TargetIndex{
		targets:  targets,
		byLength: make(map[int][]int),
		byFirst:  make(map[rune][]int),
	}
	for i, t := range targets {
		runes := []rune(t)
		idx.byLength[len(runes)] = append(idx.byLength[len(runes)], i)
		if len(runes) > 0 {
			idx.byFirst[runes[0]] = append(idx.byFirst[runes[0]], i)
		}
	}
	return idx
}

// Len returns the number of indexed targets.
func (idx *TargetIndex) Len() int {
	return len(idx.targets)
}

// All returns every indexed target.
func (idx *TargetIndex) All() []string {
	return idx.targets
}

// Candidates returns targets worth scoring against source: anything
// within the length tolerance or sharing the first rune. Falls back to
// the full target set when the buckets come up empty.
func (idx *TargetIndex) Candidates(source string) []string {
	runes := []rune(source)
	seen := make(map[int]struct{})

	for l := len(runes) - lengthTolerance; l <= len(runes)+lengthTolerance; l++ {
		for _, i := range idx.byLength[l] {
			seen[i] = struct{}{}
		}
	}
	if len(runes) > 0 {
		for _, i := range idx.byFirst[runes[0]] {
			seen[i] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return idx.targets
	}

	out := make([]string, 0, len(seen))
	for i, t := range idx.targets {
		if _, ok := seen[i]; ok {
			out = append(out, t)
		}
	}
	return out
}
