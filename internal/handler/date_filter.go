package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shopmunim-backend/internal/ledger"
	"shopmunim-backend/internal/service"
)

const dateLayout = "2006-01-02"

var errBadQuery = errors.New("invalid query parameter")

// parseDateQuery reads a yyyy-mm-dd value in the server's local zone.
func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLedgerQuery reads from, to, type, page and per_page. paged reports
// whether any of them was present.
func parseLedgerQuery(r *http.Request) (q service.LedgerQuery, paged bool, err error) {
	values := r.URL.Query()
	for _, k := range []string{"from", "to", "type", "page", "per_page"} {
		if values.Has(k) {
			paged = true
			break
		}
	}
	if q.Criteria.From, err = parseDateQuery(r, "from"); err != nil {
		return q, paged, errBadQuery
	}
	if q.Criteria.To, err = parseDateQuery(r, "to"); err != nil {
		return q, paged, errBadQuery
	}
	if q.Criteria.Type, err = ledger.ParseTypeFilter(values.Get("type")); err != nil {
		return q, paged, err
	}
	if v := values.Get("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return q, paged, errBadQuery
		}
	}
	if v := values.Get("per_page"); v != "" {
		if q.PerPage, err = strconv.Atoi(v); err != nil {
			return q, paged, errBadQuery
		}
	}
	return q, paged, nil
}

// flexDate accepts RFC 3339 timestamps or plain yyyy-mm-dd dates in JSON.
type flexDate struct {
	time.Time
}

func (d *flexDate) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return errBadQuery
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return errBadQuery
	}
	d.Time = t
	return nil
}

func (d *flexDate) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
