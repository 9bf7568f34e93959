package listutil

import (
	"net/url"
	"reflect"
	"testing"
)

var (
	sortCols   = []string{"name", "number"}
	filterKeys = []string{"status"}
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ListParams
	}{
		{
			name:  "defaults",
			query: "",
			want:  ListParams{Page: 1, PerPage: DefaultPerPage, Dir: "asc", Filters: map[string]string{}},
		},
		{
			name:  "all set",
			query: "page=3&per_page=50&sort=number&dir=desc&q=ann&status=active",
			want: ListParams{Page: 3, PerPage: 50, Sort: "number", Dir: "desc", Search: "ann",
				Filters: map[string]string{"status": "active"}},
		},
		{
			name:  "rejects unknown values",
			query: "page=-2&per_page=7&sort=password&dir=sideways&role=admin",
			want:  ListParams{Page: 1, PerPage: DefaultPerPage, Dir: "asc", Filters: map[string]string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got := Parse(q, sortCols, filterKeys)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestQuery_RoundTrips(t *testing.T) {
	q, _ := url.ParseQuery("per_page=100&sort=name&dir=desc&q=zf00&status=archived")
	p := Parse(q, sortCols, filterKeys)

	back, _ := url.ParseQuery(p.Query(4))
	again := Parse(back, sortCols, filterKeys)
	if again.Page != 4 {
		t.Errorf("page = %d, want 4", again.Page)
	}
	again.Page = p.Page
	if !reflect.DeepEqual(again, p) {
		t.Errorf("round trip = %+v, want %+v", again, p)
	}
	if got := (ListParams{PerPage: DefaultPerPage}).Query(1); got != "" {
		t.Errorf("default query = %q, want empty", got)
	}
}

func TestNewPageInfo(t *testing.T) {
	tests := []struct {
		page, perPage, total int
		wantPage, wantPages  int
		wantFirst, wantLast  int
	}{
		{1, 25, 0, 1, 1, 0, 0},
		{1, 25, 10, 1, 1, 1, 10},
		{2, 25, 60, 2, 3, 26, 50},
		{9, 25, 60, 3, 3, 51, 60},
		{0, 0, 30, 1, 2, 1, 25},
	}
	for _, tt := range tests {
		p := NewPageInfo(tt.page, tt.perPage, tt.total)
		first, last := p.Range()
		if p.Page != tt.wantPage || p.TotalPages != tt.wantPages || first != tt.wantFirst || last != tt.wantLast {
			t.Errorf("NewPageInfo(%d, %d, %d) = page %d of %d rows %d-%d, want page %d of %d rows %d-%d",
				tt.page, tt.perPage, tt.total, p.Page, p.TotalPages, first, last,
				tt.wantPage, tt.wantPages, tt.wantFirst, tt.wantLast)
		}
	}
}

func TestLinks(t *testing.T) {
	tests := []struct {
		page, pages int
		want        []int
	}{
		{1, 1, []int{1}},
		{1, 10, []int{1, 2, 3, 4, 5}},
		{6, 10, []int{4, 5, 6, 7, 8}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{2, 3, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		p := PageInfo{Page: tt.page, PerPage: 10, Total: tt.pages * 10, TotalPages: tt.pages}
		if got := p.Links(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Links() page %d of %d = %v, want %v", tt.page, tt.pages, got, tt.want)
		}
		if p.Paginated() != (tt.pages > 1) {
			t.Errorf("Paginated() page %d of %d = %v", tt.page, tt.pages, p.Paginated())
		}
	}
}
