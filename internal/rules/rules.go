// Package rules holds the read-only policy tables behind the recommendation
// pipeline: which accessory categories a primary category accepts, the
// category-pair scoring rules and the hard pairing exclusions.
//
// Tables are plain data. New categories are added by registering entries,
// not by adding branches to the pipeline stages.
package rules

import (
	"sort"
	"strings"

	"github.com/kalambet/recoagent/internal/catalog"
)

// Set is an unordered set of category names.
type Set map[string]struct{}

// NewSet returns a Set holding items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set. A nil set holds nothing.
func (s Set) Has(c string) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ScoreRule awards Points when a candidate of one of Candidates (nil means
// any category) satisfies Match for a primary in category Primary.
type ScoreRule struct {
	Name       string
	Primary    string
	Candidates Set
	Points     int
	Match      func(primary, candidate catalog.Product) bool
}

func (r ScoreRule) applies(primary, candidate catalog.Product) bool {
	if primary.Category != r.Primary {
		return false
	}
	if r.Candidates != nil && !r.Candidates.Has(candidate.Category) {
		return false
	}
	return r.Match(primary, candidate)
}

// Exclusion forbids pairing a Primary category with a Candidate category,
// whatever the other rules say.
type Exclusion struct {
	Primary   string
	Candidate string
}

// Table is an immutable rule registry. Use the With* methods to derive a
// modified copy.
type Table struct {
	compat       map[string]Set
	scoreRules   []ScoreRule
	exclusions   []Exclusion
	deprioritize map[string]Set
}

// Allowed returns the accessory categories allowed for primaryCategory and
// whether a policy exists at all. A missing policy is not permission.
func (t *Table) Allowed(primaryCategory string) (Set, bool) {
	s, ok := t.compat[primaryCategory]
	return s, ok
}

// AllowedList returns the sorted allowed categories, or an empty slice when
// no policy exists.
func (t *Table) AllowedList(primaryCategory string) []string {
	s, ok := t.compat[primaryCategory]
	if !ok {
		return []string{}
	}
	return s.Sorted()
}

// AttributeScore sums every category-pair rule that fires for the pair.
func (t *Table) AttributeScore(primary, candidate catalog.Product) int {
	score := 0
	for _, r := range t.scoreRules {
		if r.applies(primary, candidate) {
			score += r.Points
		}
	}
	return score
}

// Excluded reports whether a hard exclusion forbids the pair.
func (t *Table) Excluded(primary, candidate catalog.Product) bool {
	for _, e := range t.exclusions {
		if e.Primary == primary.Category && e.Candidate == candidate.Category {
			return true
		}
	}
	return false
}

// Deprioritized reports whether candidate belongs to a category pushed to
// the back of the retrieval pool for sensitive primaries.
func (t *Table) Deprioritized(primary, candidate catalog.Product) bool {
	return t.deprioritize[primary.Category].Has(candidate.Category)
}

// WithCompat returns a copy of t with the allowed categories for primary
// replaced by categories.
func (t *Table) WithCompat(primary string, categories ...string) *Table {
	c := t.clone()
	c.compat[primary] = NewSet(categories...)
	return c
}

// WithScoreRule returns a copy of t with r appended.
func (t *Table) WithScoreRule(r ScoreRule) *Table {
	c := t.clone()
	c.scoreRules = append(c.scoreRules, r)
	return c
}

// WithExclusion returns a copy of t with e appended.
func (t *Table) WithExclusion(e Exclusion) *Table {
	c := t.clone()
	c.exclusions = append(c.exclusions, e)
	return c
}

func (t *Table) clone() *Table {
	c := &Table{
		compat:       make(map[string]Set, len(t.compat)),
		scoreRules:   append([]ScoreRule(nil), t.scoreRules...),
		exclusions:   append([]Exclusion(nil), t.exclusions...),
		deprioritize: make(map[string]Set, len(t.deprioritize)),
	}
	for k, v := range t.compat {
		c.compat[k] = v
	}
	for k, v := range t.deprioritize {
		c.deprioritize[k] = v
	}
	return c
}

var placeholderBrands = NewSet("", "generic", "unknown", "n/a")

// MeaningfulBrand reports whether brand identifies a real manufacturer.
func MeaningfulBrand(brand string) bool {
	return !placeholderBrands.Has(strings.ToLower(strings.TrimSpace(brand)))
}

// SameMeaningfulBrand reports whether both products carry the same
// meaningful brand.
func SameMeaningfulBrand(a, b catalog.Product) bool {
	return MeaningfulBrand(a.Brand) && MeaningfulBrand(b.Brand) && a.Brand == b.Brand
}

// TagOverlap counts distinct tags shared by a and b.
func TagOverlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := NewSet(a...)
	seen := make(Set, len(b))
	n := 0
	for _, t := range b {
		if set.Has(t) && !seen.Has(t) {
			seen[t] = struct{}{}
			n++
		}
	}
	return n
}

// HasExplicitCompat reports whether candidate declares any compatibility
// attribute relevant to primary.
func HasExplicitCompat(primary, candidate catalog.Product) bool {
	keys := []string{
		"compatible_model",
		"compatible_brand",
		"compatible_with",
		"compatible_with_" + primary.Category,
		"compatible_with_speaker",
		"compatible_with_medical_model",
	}
	for _, k := range keys {
		if candidate.HasAttr(k) {
			return true
		}
	}
	return false
}

// attrEquals reports whether the candidate attribute is set and equals want.
// An empty want never matches.
func attrEquals(p catalog.Product, key, want string) bool {
	if want == "" {
		return false
	}
	return p.AttrString(key) == want
}
