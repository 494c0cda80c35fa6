package ledger

import (
	"errors"

	"shopmunim-backend/internal/domain"
)

// DefaultPerPage is the page size used when none is chosen.
const DefaultPerPage = 10

// PerPageOptions lists the accepted page sizes.
var PerPageOptions = []int{5, 10, 25, 50}

var ErrInvalidPerPage = errors.New("per page must be one of 5, 10, 25, 50")

// ValidPerPage reports whether n is an accepted page size.
func ValidPerPage(n int) bool {
	for _, v := range PerPageOptions {
		if v == n {
			return true
		}
	}
	return false
}

// Page is one slice of a filtered list.
type Page struct {
	Items       []domain.Transaction
	CurrentPage int
	PerPage     int
	TotalPages  int
	TotalItems  int
}

// TotalPages is ceil(n/perPage) with a floor of one page.
func TotalPages(n, perPage int) int {
	if perPage <= 0 || n <= 0 {
		return 1
	}
	return (n + perPage - 1) / perPage
}

// Paginate returns filtered[(page-1)*perPage : min(page*perPage, len)].
// Pages below 1 are treated as 1; pages past the end are empty.
func Paginate(filtered []domain.Transaction, page, perPage int) (Page, error) {
	if !ValidPerPage(perPage) {
		return Page{}, ErrInvalidPerPage
	}
	if page < 1 {
		page = 1
	}
	p := Page{
		CurrentPage: page,
		PerPage:     perPage,
		TotalPages:  TotalPages(len(filtered), perPage),
		TotalItems:  len(filtered),
		Items:       []domain.Transaction{},
	}
	if page > p.TotalPages || len(filtered) == 0 {
		return p, nil
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > len(filtered) {
		end = len(filtered)
	}
	p.Items = append(p.Items, filtered[start:end]...)
	return p, nil
}
