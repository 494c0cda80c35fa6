package ledger

import "shopmunim-backend/internal/domain"

// View is the screen model behind a ledger list: the loaded transactions plus
// the user's current filter and paging choices. The loaded list is sorted once
// in Load and never modified afterwards; every accessor derives from it.
type View struct {
	all      []domain.Transaction
	criteria Criteria
	page     int
	perPage  int
}

// NewView returns an empty view with no filter and the default page size.
func NewView() *View {
	return &View{
		criteria: Criteria{Type: TypeAll},
		page:     1,
		perPage:  DefaultPerPage,
	}
}

// Load replaces the transactions, sorting them newest first, and returns to page 1.
func (v *View) Load(txs []domain.Transaction) {
	v.all = SortByDateDesc(txs)
	v.page = 1
}

// All returns the loaded transactions in display order.
func (v *View) All() []domain.Transaction {
	out := make([]domain.Transaction, len(v.all))
	copy(out, v.all)
	return out
}

func (v *View) Criteria() Criteria { return v.criteria }

// SetCriteria applies a new filter and returns to page 1.
func (v *View) SetCriteria(c Criteria) {
	if c.Type == "" {
		c.Type = TypeAll
	}
	v.criteria = c
	v.page = 1
}

// ClearCriteria removes every filter.
func (v *View) ClearCriteria() {
	v.SetCriteria(Criteria{Type: TypeAll})
}

func (v *View) PerPage() int { return v.perPage }

// SetPerPage changes the page size and returns to page 1.
func (v *View) SetPerPage(n int) error {
	if !ValidPerPage(n) {
		return ErrInvalidPerPage
	}
	v.perPage = n
	v.page = 1
	return nil
}

func (v *View) CurrentPage() int { return v.page }

// SetPage moves to page n, clamped to [1, TotalPages].
func (v *View) SetPage(n int) {
	total := v.TotalPages()
	switch {
	case n < 1:
		n = 1
	case n > total:
		n = total
	}
	v.page = n
}

func (v *View) NextPage() { v.SetPage(v.page + 1) }
func (v *View) PrevPage() { v.SetPage(v.page - 1) }

// Filtered returns the loaded transactions passing the current criteria.
func (v *View) Filtered() []domain.Transaction {
	return Filter(v.all, v.criteria)
}

// Summary aggregates the filtered set.
func (v *View) Summary() Summary {
	return Summarize(v.Filtered())
}

func (v *View) TotalPages() int {
	return TotalPages(len(v.Filtered()), v.perPage)
}

// Visible returns the current page of the filtered set.
func (v *View) Visible() Page {
	p, _ := Paginate(v.Filtered(), v.page, v.perPage)
	return p
}

// Empty reports whether the current filter matches nothing.
func (v *View) Empty() bool {
	return len(v.Filtered()) == 0
}
