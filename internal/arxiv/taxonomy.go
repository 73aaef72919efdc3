package arxiv

import (
	"regexp"
	"sort"
	"strings"
)

// Archives lists the top-level arXiv archives. A category code is either an
// archive on its own ("hep-th") or an archive plus a subject class ("cs.AI").
var Archives = []string{
	"astro-ph", "cond-mat", "cs", "econ", "eess", "gr-qc", "hep-ex",
	"hep-lat", "hep-ph", "hep-th", "math", "math-ph", "nlin", "nucl-ex",
	"nucl-th", "physics", "q-bio", "q-fin", "quant-ph", "stat",
}

var categoryPattern = regexp.MustCompile(`^[a-z][a-z-]*(\.[A-Za-z][A-Za-z-]*)?$`)

// Taxonomy is the set of category codes a selection may name.
type Taxonomy struct {
	codes    map[string]bool // exact codes; nil means "any well-formed code in a known archive"
	archives map[string]bool
}

// DefaultTaxonomy accepts any well-formed code within a known archive.
func DefaultTaxonomy() *Taxonomy {
	t := &Taxonomy{archives: make(map[string]bool, len(Archives))}
	for _, a := range Archives {
		t.archives[a] = true
	}
	return t
}

// NewTaxonomy accepts exactly the given codes, typically the subject
// directories listed by the hub.
func NewTaxonomy(codes []string) *Taxonomy {
	t := DefaultTaxonomy()
	t.codes = make(map[string]bool, len(codes))
	for _, c := range codes {
		t.codes[strings.TrimSpace(c)] = true
	}
	return t
}

// Codes returns the exact codes in sorted order, or nil for the default
// taxonomy.
func (t *Taxonomy) Codes() []string {
	if t.codes == nil {
		return nil
	}
	out := make([]string, 0, len(t.codes))
	for c := range t.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether code is a known category.
func (t *Taxonomy) Contains(code string) bool {
	if t.codes != nil {
		return t.codes[code]
	}
	if !categoryPattern.MatchString(code) {
		return false
	}
	archive, _, _ := strings.Cut(code, ".")
	return t.archives[archive]
}

// Validate returns a ValidationError for unknown categories.
func (t *Taxonomy) Validate(code string) error {
	if !t.Contains(code) {
		return Errorf(KindValidation, "validate category", "unknown category %q", code)
	}
	return nil
}
