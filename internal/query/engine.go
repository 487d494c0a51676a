package query

import (
	"sort"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
)

// Apply returns the listings that satisfy every predicate, in snapshot order.
// The snapshot is never modified and the result is always a fresh slice.
func Apply(snapshot []models.Listing, p Predicates) []models.Listing {
	preds := p.Compile()
	out := make([]models.Listing, 0, len(snapshot))
	for i := range snapshot {
		if matchesAll(&snapshot[i], preds) {
			out = append(out, snapshot[i])
		}
	}
	return out
}

func matchesAll(l *models.Listing, preds []Predicate) bool {
	for _, pred := range preds {
		if !pred(l) {
			return false
		}
	}
	return true
}

// Sort keys accepted by Sort.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortViewsDesc = "views_desc"
)

// Sort returns a re-ordered copy. Unknown keys keep the snapshot order.
func Sort(listings []models.Listing, key string) []models.Listing {
	out := append([]models.Listing(nil), listings...)
	var less func(a, b *models.Listing) bool
	switch key {
	case SortPriceAsc:
		less = func(a, b *models.Listing) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b *models.Listing) bool { return a.Price > b.Price }
	case SortViewsDesc:
		less = func(a, b *models.Listing) bool { return a.Views > b.Views }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

// Stats are the catalog counters shown on the home page.
type Stats struct {
	Total   int `json:"total"`
	ForSale int `json:"for_sale"`
	ForRent int `json:"for_rent"`
}

func ComputeStats(snapshot []models.Listing) Stats {
	s := Stats{Total: len(snapshot)}
	for i := range snapshot {
		switch snapshot[i].Type {
		case models.TransactionSale:
			s.ForSale++
		case models.TransactionRent:
			s.ForRent++
		}
	}
	return s
}
