package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/recoagent/internal/catalog"
)

func samsungPhone() catalog.Product {
	return catalog.Product{
		ID: 1, Name: "Samsung Galaxy A57", Category: "phone", Brand: "Samsung", Model: "A57",
		Attributes: map[string]any{"port_type": "usb_c"},
		Tags:       []string{"android", "samsung"},
	}
}

func TestScore_ComponentBreakdown(t *testing.T) {
	caseP := catalog.Product{
		ID: 2, Category: "phone_case", Brand: "Samsung", ImageURL: "http://img/2.png",
		Attributes: map[string]any{"compatible_model": "A57", "compatible_brand": "Samsung"},
		Tags:       []string{"samsung"},
	}
	got := NewScorer(nil).Score(samsungPhone(), []catalog.Product{caseP})
	require.Len(t, got, 1)
	// 50 exact model + 30 brand + 10 overlap + 20 allowed + 2 image
	assert.Equal(t, 112, got[0].Score)
	assert.Equal(t, 1, got[0].TagOverlap)
}

func TestScore_OrderAndStableTies(t *testing.T) {
	candidates := []catalog.Product{
		{ID: 10, Category: "earbuds"},
		{ID: 11, Category: "pouch"},
		{ID: 12, Category: "charger", Attributes: map[string]any{"port_type": "usb_c"}},
		{ID: 13, Category: "tv"},
	}
	got := NewScorer(nil).Score(samsungPhone(), candidates)
	assert.Equal(t, []int64{12, 10, 11, 13}, IDs(got))
	assert.Equal(t, 45, got[0].Score)
	assert.Equal(t, 20, got[1].Score)
	assert.Equal(t, 0, got[3].Score)
}

func TestScore_Deterministic(t *testing.T) {
	candidates := []catalog.Product{
		{ID: 5, Category: "phone_case"},
		{ID: 6, Category: "phone_case"},
		{ID: 7, Category: "screen_guard"},
		{ID: 8, Category: "phone_case"},
	}
	s := NewScorer(nil)
	first := IDs(s.Score(samsungPhone(), candidates))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, IDs(s.Score(samsungPhone(), candidates)))
	}
}

func TestShortlist(t *testing.T) {
	scored := make([]Candidate, 40)
	for i := range scored {
		scored[i] = Candidate{Product: catalog.Product{ID: int64(i)}}
	}
	assert.Len(t, Shortlist(scored, 0), DefaultShortlistSize)
	assert.Len(t, Shortlist(scored, 3), 3)
	assert.Len(t, Shortlist(scored[:2], 5), 2)
}

func TestIndex(t *testing.T) {
	idx := Index([]Candidate{{Product: catalog.Product{ID: 7}}, {Product: catalog.Product{ID: 9}}})
	assert.Equal(t, map[int64]int{7: 0, 9: 1}, idx)
}
