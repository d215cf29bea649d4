package retrieval

import (
	"log/slog"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/rules"
)

// minTagOverlap is the tag evidence needed to keep a candidate that declares
// no compatibility attribute.
const minTagOverlap = 2

// Builder prunes a raw candidate pool down to products that the rule table
// allows and that carry evidence of compatibility with the primary.
type Builder struct {
	rules *rules.Table
}

// NewBuilder creates a Builder. A nil table uses rules.Default().
func NewBuilder(table *rules.Table) *Builder {
	if table == nil {
		table = rules.Default()
	}
	return &Builder{rules: table}
}

// Build filters raw, preserving order. Categories without a policy admit
// nothing on category alone: every candidate then needs explicit
// compatibility attributes or enough shared tags.
func (b *Builder) Build(primary catalog.Product, raw []catalog.Product) []catalog.Product {
	allowed, hasPolicy := b.rules.Allowed(primary.Category)

	out := make([]catalog.Product, 0, len(raw))
	for _, c := range raw {
		if c.ID == primary.ID {
			continue
		}
		if hasPolicy {
			if !allowed.Has(c.Category) {
				continue
			}
			if c.Category != primary.Category && !hasEvidence(primary, c) {
				continue
			}
		} else if !hasEvidence(primary, c) {
			continue
		}
		if b.rules.Excluded(primary, c) {
			slog.Debug("builder: hard exclusion", "primary", primary.ID, "candidate", c.ID,
				"primary_category", primary.Category, "candidate_category", c.Category)
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasEvidence(primary, c catalog.Product) bool {
	return rules.HasExplicitCompat(primary, c) || rules.TagOverlap(primary.Tags, c.Tags) >= minTagOverlap
}
