package mapping

import (
	"slices"
	"strings"
	"unicode"
)

// NormalizeColumnName canonicalizes a header for exact lookup:
// lowercase, surrounding separators trimmed, "&" spelled out, all
// remaining non-alphanumerics dropped.
func NormalizeColumnName(header string) string {
	s := strings.ToLower(header)
	s = strings.Trim(s, " _-.")
	s = strings.ReplaceAll(s, "&", "and")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AliasEntry is what a normalized alias resolves to.
type AliasEntry struct {
	TargetField string
	Required    bool
	DataType    string
	Document    string
}

// Lookup is an immutable resolution structure built from a loaded
// configuration. Build a new one and swap the pointer on reload.
type Lookup struct {
	byAlias  map[string]AliasEntry
	aliases  []string
	byTarget map[string][]string
	required []string
}

// NewLookup indexes every source column alias of every column set.
// The target field's own name is registered as an alias of itself so
// already-canonical headers resolve exactly.
func NewLookup(config *Configuration) *Lookup {
	l := &Lookup{
		byAlias:  make(map[string]AliasEntry),
		byTarget: make(map[string][]string),
	}
	if config == nil {
		return l
	}

	for document, set := range config.ColumnSets() {
		l.indexColumns(document, set.Required, true)
		l.indexColumns(document, set.Optional, false)
	}
	return l
}

func (l *Lookup) indexColumns(document string, columns map[string]ColumnMapping, required bool) {
	for targetField, cm := range columns {
		target := cm.TargetField
		if target == "" {
			target = targetField
		}
		isRequired := required || cm.Required

		if isRequired {
			l.required = append(l.required, target)
		}

		names := append([]string{target}, cm.SourceColumns...)
		for _, name := range names {
			normalized := NormalizeColumnName(name)
			if normalized == "" {
				continue
			}
			if existing, exists := l.byAlias[normalized]; exists {
				// First target wins across targets; variants of the
				// same target that collide after normalization still
				// count as distinct fuzzy candidates
				if existing.TargetField != target {
					continue
				}
			} else {
				l.byAlias[normalized] = AliasEntry{
					TargetField: target,
					Required:    isRequired,
					DataType:    cm.DataType,
					Document:    document,
				}
			}
			if slices.Contains(l.byTarget[target], name) {
				continue
			}
			l.aliases = append(l.aliases, name)
			l.byTarget[target] = append(l.byTarget[target], name)
		}
	}
}

// Exact resolves an already-normalized header.
func (l *Lookup) Exact(normalized string) (AliasEntry, bool) {
	entry, ok := l.byAlias[normalized]
	return entry, ok
}

// Resolve normalizes and resolves a raw header.
func (l *Lookup) Resolve(header string) (AliasEntry, bool) {
	return l.Exact(NormalizeColumnName(header))
}

// Aliases returns every known source column name, in original casing,
// for fuzzy matching.
func (l *Lookup) Aliases() []string {
	return l.aliases
}

// TargetFor maps a matched alias back to its target field.
func (l *Lookup) TargetFor(alias string) (AliasEntry, bool) {
	return l.Exact(NormalizeColumnName(alias))
}

// RequiredFields returns the distinct required target fields.
func (l *Lookup) RequiredFields() []string {
	seen := make(map[string]struct{}, len(l.required))
	out := make([]string, 0, len(l.required))
	for _, f := range l.required {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// AliasesFor returns the known source names for a target field.
func (l *Lookup) AliasesFor(target string) []string {
	return l.byTarget[target]
}

// Size returns the number of indexed aliases.
func (l *Lookup) Size() int {
	return len(l.byAlias)
}
