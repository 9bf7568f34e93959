// Package listutil parses the query string of admin list pages and computes pagination.
package listutil

import (
	"net/url"
	"strconv"

	"github.com/samber/lo"
)

// DefaultPerPage is used when per_page is missing or not one of PerPageOptions.
const DefaultPerPage = 25

// maxPageLinks is how many numbered page links are rendered.
const maxPageLinks = 5

// PerPageOptions are the rows-per-page choices offered on list pages.
var PerPageOptions = []int{25, 50, 100}

// ListParams holds paging, sorting and filtering for one list request.
type ListParams struct {
	Page    int
	PerPage int
	Sort    string
	Dir     string // "asc" or "desc"
	Search  string
	Filters map[string]string
}

// Parse reads list parameters from a query string. Unknown sort columns
// and filter keys are dropped.
// POST: Page >= 1, PerPage is one of PerPageOptions, Dir is "asc" or "desc"
func Parse(q url.Values, sortColumns, filterKeys []string) ListParams {
	p := ListParams{
		Page:    atLeastOne(q.Get("page")),
		PerPage: DefaultPerPage,
		Dir:     "asc",
		Search:  q.Get("q"),
		Filters: map[string]string{},
	}
	if n, _ := strconv.Atoi(q.Get("per_page")); lo.Contains(PerPageOptions, n) {
		p.PerPage = n
	}
	if s := q.Get("sort"); lo.Contains(sortColumns, s) {
		p.Sort = s
	}
	if q.Get("dir") == "desc" {
		p.Dir = "desc"
	}
	for _, key := range filterKeys {
		if v := q.Get(key); v != "" {
			p.Filters[key] = v
		}
	}
	return p
}

// Query encodes the parameters back into a query string with page replaced.
func (p ListParams) Query(page int) string {
	q := url.Values{}
	for k, v := range p.Filters {
		q.Set(k, v)
	}
	if p.Search != "" {
		q.Set("q", p.Search)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
		q.Set("dir", p.Dir)
	}
	if p.PerPage != DefaultPerPage {
		q.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return q.Encode()
}

func atLeastOne(s string) int {
	n, _ := strconv.Atoi(s)
	return max(n, 1)
}

// PageInfo describes the page being rendered.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPageInfo clamps page to the pages available for total rows.
// POST: 1 <= Page <= TotalPages and TotalPages >= 1
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	pages := max((total+perPage-1)/perPage, 1)
	return PageInfo{
		Page:       min(max(page, 1), pages),
		PerPage:    perPage,
		Total:      total,
		TotalPages: pages,
	}
}

// Offset is the number of rows before this page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Range returns the 1-based first and last row shown, or 0, 0 for an empty list.
func (p PageInfo) Range() (int, int) {
	if p.Total == 0 {
		return 0, 0
	}
	return p.Offset() + 1, min(p.Offset()+p.PerPage, p.Total)
}

// Links returns up to maxPageLinks page numbers around the current page.
func (p PageInfo) Links() []int {
	first := max(p.Page-maxPageLinks/2, 1)
	last := min(first+maxPageLinks-1, p.TotalPages)
	first = max(last-maxPageLinks+1, 1)
	return lo.RangeFrom(first, last-first+1)
}

// Paginated reports whether there is more than one page.
func (p PageInfo) Paginated() bool {
	return p.TotalPages > 1
}
