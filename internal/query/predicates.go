package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/models"
)

// Predicates is the declarative filter set. Zero values mean "not set".
// All predicates are conjunctive.
type Predicates struct {
	Search      string
	Type        models.TransactionKind
	MinPrice    *float64
	MaxPrice    *float64
	Bedrooms    *int
	AcceptsPets bool
}

// Predicate reports whether a listing survives one filter.
type Predicate func(l *models.Listing) bool

// Compile turns the set into independent predicates. Unset fields contribute nothing.
func (p Predicates) Compile() []Predicate {
	var preds []Predicate
	if q := strings.TrimSpace(p.Search); q != "" {
		preds = append(preds, MatchesText(q))
	}
	if p.Type != "" {
		preds = append(preds, OfType(p.Type))
	}
	if p.MinPrice != nil {
		preds = append(preds, PriceAtLeast(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		preds = append(preds, PriceAtMost(*p.MaxPrice))
	}
	if p.Bedrooms != nil {
		preds = append(preds, BedroomsAtLeast(*p.Bedrooms))
	}
	if p.AcceptsPets {
		preds = append(preds, PetsAllowed())
	}
	return preds
}

// MatchesText is a case-insensitive substring match on title, location or description.
func MatchesText(q string) Predicate {
	q = strings.ToLower(q)
	return func(l *models.Listing) bool {
		return strings.Contains(strings.ToLower(l.Title), q) ||
			strings.Contains(strings.ToLower(l.Location), q) ||
			strings.Contains(strings.ToLower(l.Description), q)
	}
}

func OfType(kind models.TransactionKind) Predicate {
	return func(l *models.Listing) bool { return l.Type == kind }
}

func PriceAtLeast(min float64) Predicate {
	return func(l *models.Listing) bool { return l.Price >= min }
}

func PriceAtMost(max float64) Predicate {
	return func(l *models.Listing) bool { return l.Price <= max }
}

func BedroomsAtLeast(n int) Predicate {
	return func(l *models.Listing) bool { return l.Bedrooms >= n }
}

// PetsAllowed requires the pets flag; sale listings never set it, so they are excluded.
func PetsAllowed() Predicate {
	return func(l *models.Listing) bool { return l.AcceptsPets }
}

// ParsePredicates reads the filter form as sent by the catalog page.
// Empty or malformed numbers are treated as unset. A type is matched exactly, so an unknown one matches nothing.
func ParsePredicates(values url.Values) Predicates {
	var p Predicates
	p.Search = strings.TrimSpace(values.Get("search"))
	if p.Search == "" {
		p.Search = strings.TrimSpace(values.Get("q"))
	}
	p.Type = models.TransactionKind(strings.TrimSpace(values.Get("type")))
	p.MinPrice = parseFloat(values.Get("minPrice"))
	p.MaxPrice = parseFloat(values.Get("maxPrice"))
	if n, err := strconv.Atoi(strings.TrimSpace(values.Get("bedrooms"))); err == nil && n > 0 {
		p.Bedrooms = &n
	}
	p.AcceptsPets, _ = strconv.ParseBool(values.Get("acceptsPets"))
	return p
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}
