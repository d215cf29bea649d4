package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/rules"
)

// DefaultMaxResults bounds the raw candidate pool.
const DefaultMaxResults = 1000

// Retriever produces the ordered raw candidate pool for a primary product
// from the full catalog.
type Retriever struct {
	catalog catalog.Catalog
	rules   *rules.Table
}

// NewRetriever creates a Retriever over cat. A nil table uses rules.Default().
func NewRetriever(cat catalog.Catalog, table *rules.Table) *Retriever {
	if table == nil {
		table = rules.Default()
	}
	return &Retriever{catalog: cat, rules: table}
}

// Retrieve returns every catalog product except the primary, ordered
// same-category first, then same meaningful brand, then the rest. For
// sensitive primaries the unrelated consumer categories are moved to the
// very back instead of being dropped. The result holds at most maxResults
// products; maxResults <= 0 uses DefaultMaxResults.
func (r *Retriever) Retrieve(ctx context.Context, primary catalog.Product, maxResults int) ([]catalog.Product, error) {
	all, err := r.catalog.GetAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return Order(r.rules, primary, all, maxResults), nil
}

// Order applies the retrieval ordering to an in-memory product list.
func Order(table *rules.Table, primary catalog.Product, all []catalog.Product, maxResults int) []catalog.Product {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var sameCat, sameBrand, rest, back []catalog.Product
	brandOK := rules.MeaningfulBrand(primary.Brand)
	for _, p := range all {
		switch {
		case p.ID == primary.ID:
			continue
		case p.Category == primary.Category:
			sameCat = append(sameCat, p)
		case brandOK && rules.SameMeaningfulBrand(primary, p):
			sameBrand = append(sameBrand, p)
		case table.Deprioritized(primary, p):
			back = append(back, p)
		default:
			rest = append(rest, p)
		}
	}

	out := make([]catalog.Product, 0, len(sameCat)+len(sameBrand)+len(rest)+len(back))
	out = append(out, sameCat...)
	out = append(out, sameBrand...)
	out = append(out, rest...)
	out = append(out, back...)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}
