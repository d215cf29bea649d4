// Package validation holds the hard safety gates applied to the final
// recommendation ids. Gates run whatever produced the ids: the re-ranker or
// a deterministic fallback.
package validation

import (
	"log/slog"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/metrics"
	"github.com/kalambet/recoagent/internal/rules"
	"github.com/kalambet/recoagent/internal/scoring"
)

// Gate rejects a candidate for a primary. Allow returns false to drop it.
type Gate struct {
	Name string
	// Primary limits the gate to one primary category; empty means all.
	Primary string
	// Candidates limits the gate to these candidate categories; nil means all.
	Candidates rules.Set
	Allow      func(primary, candidate catalog.Product) bool
}

func (g Gate) covers(primary, candidate catalog.Product) bool {
	if g.Primary != "" && g.Primary != primary.Category {
		return false
	}
	return g.Candidates == nil || g.Candidates.Has(candidate.Category)
}

// Validator filters ids through an ordered list of gates.
type Validator struct {
	rules *rules.Table
	gates []Gate
}

// New returns a Validator with the default gates. A nil table uses
// rules.Default().
func New(table *rules.Table) *Validator {
	if table == nil {
		table = rules.Default()
	}
	return &Validator{rules: table, gates: DefaultGates()}
}

// WithGate returns a copy of v with g appended.
func (v *Validator) WithGate(g Gate) *Validator {
	gates := append(append([]Gate(nil), v.gates...), g)
	return &Validator{rules: v.rules, gates: gates}
}

// Validate returns the ids that pass every gate, in input order. Ids that
// are not in the shortlist are dropped.
func (v *Validator) Validate(primary catalog.Product, ids []int64, shortlist []scoring.Candidate) []int64 {
	return v.filter(primary, ids, shortlist, true)
}

// Safe is Validate without the category policy: only the gates apply. It
// guards fallbacks that deliberately ignore category.
func (v *Validator) Safe(primary catalog.Product, ids []int64, shortlist []scoring.Candidate) []int64 {
	return v.filter(primary, ids, shortlist, false)
}

func (v *Validator) filter(primary catalog.Product, ids []int64, shortlist []scoring.Candidate, checkCategory bool) []int64 {
	idx := scoring.Index(shortlist)
	allowed, hasPolicy := v.rules.Allowed(primary.Category)
	hasPolicy = hasPolicy && checkCategory

	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		pos, ok := idx[id]
		if !ok {
			slog.Info("validator: id not in shortlist", "primary", primary.ID, "id", id)
			metrics.ValidatorDrops.WithLabelValues("unknown_id").Inc()
			continue
		}
		c := shortlist[pos].Product

		if hasPolicy && !allowed.Has(c.Category) {
			v.drop("category_not_allowed", primary, c)
			continue
		}
		if g, blocked := v.firstBlocking(primary, c); blocked {
			v.drop(g, primary, c)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (v *Validator) firstBlocking(primary, c catalog.Product) (string, bool) {
	for _, g := range v.gates {
		if g.covers(primary, c) && !g.Allow(primary, c) {
			return g.Name, true
		}
	}
	return "", false
}

func (v *Validator) drop(gate string, primary, c catalog.Product) {
	slog.Info("validator: blocked candidate", "gate", gate, "primary", primary.ID,
		"primary_category", primary.Category, "candidate", c.ID, "candidate_category", c.Category)
	metrics.ValidatorDrops.WithLabelValues(gate).Inc()
}
