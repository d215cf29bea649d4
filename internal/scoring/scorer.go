// Package scoring ranks pruned candidates with the deterministic policy from
// the rule table and cuts the ranked list down to a shortlist.
package scoring

import (
	"sort"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/rules"
)

// DefaultShortlistSize is the number of scored candidates passed to the
// re-ranking stage.
const DefaultShortlistSize = 30

// Generic bonuses added on top of the category-pair attribute score.
const (
	BrandBonus       = 30
	TagOverlapPoints = 10
	AllowedBonus     = 20
	ImageBonus       = 2
)

// Candidate is a product with its request-scoped score.
type Candidate struct {
	catalog.Product
	Score      int
	TagOverlap int
}

// Scorer applies the scoring policy of a rule table.
type Scorer struct {
	rules *rules.Table
}

// NewScorer creates a Scorer. A nil table uses rules.Default().
func NewScorer(table *rules.Table) *Scorer {
	if table == nil {
		table = rules.Default()
	}
	return &Scorer{rules: table}
}

// Score returns candidates ordered by descending score. Equal scores keep
// their input order.
func (s *Scorer) Score(primary catalog.Product, candidates []catalog.Product) []Candidate {
	allowed, _ := s.rules.Allowed(primary.Category)

	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		overlap := rules.TagOverlap(primary.Tags, c.Tags)
		score := s.rules.AttributeScore(primary, c)
		if rules.SameMeaningfulBrand(primary, c) {
			score += BrandBonus
		}
		score += TagOverlapPoints * overlap
		if allowed.Has(c.Category) {
			score += AllowedBonus
		}
		if c.ImageURL != "" {
			score += ImageBonus
		}
		scored[i] = Candidate{Product: c, Score: score, TagOverlap: overlap}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Shortlist returns the first n scored candidates. n <= 0 uses
// DefaultShortlistSize.
func Shortlist(scored []Candidate, n int) []Candidate {
	if n <= 0 {
		n = DefaultShortlistSize
	}
	if len(scored) > n {
		return scored[:n]
	}
	return scored
}

// IDs returns the product ids of candidates in order.
func IDs(candidates []Candidate) []int64 {
	out := make([]int64, len(candidates))
	for i, c := range candidates {
		out[i] = c.ID
	}
	return out
}

// Index maps candidate ids to their position in candidates.
func Index(candidates []Candidate) map[int64]int {
	idx := make(map[int64]int, len(candidates))
	for i, c := range candidates {
		if _, dup := idx[c.ID]; !dup {
			idx[c.ID] = i
		}
	}
	return idx
}
