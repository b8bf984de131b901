package pagination

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// MaxPerPage bounds per_page on inbound requests.
const MaxPerPage = 100

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns page 1 with 20 items.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: 20}
}

// FromRequest extracts page and per_page, ignoring values that are not
// positive integers and clamping per_page to MaxPerPage.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		p.PerPage = min(v, MaxPerPage)
	}
	return p
}

// Encode writes the params into q.
func (p Params) Encode(q url.Values) {
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
}

// Meta is the paging block the marketplace backend returns next to list data.
type Meta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

// HasMore reports whether a page after CurrentPage exists.
func (m Meta) HasMore() bool {
	return m.CurrentPage < m.LastPage
}

// Validate rejects meta blocks that cannot describe a real page.
func (m Meta) Validate() error {
	if m.CurrentPage < 1 {
		return fmt.Errorf("current_page %d must be at least 1", m.CurrentPage)
	}
	if m.LastPage < 1 {
		// An empty listing reports last_page 1, never 0.
		return fmt.Errorf("last_page %d must be at least 1", m.LastPage)
	}
	if m.Total < 0 {
		return fmt.Errorf("total %d must not be negative", m.Total)
	}
	return nil
}
