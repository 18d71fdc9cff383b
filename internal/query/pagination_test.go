package query

import (
	"net/url"
	"testing"
)

func TestParsePageSizeWhitelist(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"10", 10},
		{"25", 25},
		{"200", 200},
		{"15", DefaultPageSize},  // off the whitelist
		{"0", DefaultPageSize},
		{"-10", DefaultPageSize},
		{"abc", DefaultPageSize},
		{"", DefaultPageSize},
		{"1000", DefaultPageSize},
	}
	for _, tc := range cases {
		if got := ParsePageSize(tc.raw); got != tc.want {
			t.Errorf("ParsePageSize(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParsePage(t *testing.T) {
	if got := ParsePage("3"); got != 3 {
		t.Fatalf("got %d", got)
	}
	for _, raw := range []string{"", "0", "-1", "x"} {
		if got := ParsePage(raw); got != 1 {
			t.Errorf("ParsePage(%q) = %d, want 1", raw, got)
		}
	}
}

func TestPaginateEnvelope(t *testing.T) {
	items := make([]int, 27)
	for i := range items {
		items[i] = i
	}
	u, _ := url.Parse("http://api.test/api/v1/jobs?page=2&page_size=10&status=new")

	page := Paginate(items, 2, 10, u)
	if page.Count != 27 || page.TotalPages != 3 || page.CurrentPage != 2 {
		t.Fatalf("metadata wrong: %+v", page)
	}
	if len(page.Results) != 10 || page.Results[0] != 10 {
		t.Fatalf("window wrong: %v", page.Results)
	}
	if page.Next == nil || page.Previous == nil {
		t.Fatalf("middle page should link both ways")
	}
	nu, _ := url.Parse(*page.Next)
	if nu.Query().Get("page") != "3" || nu.Query().Get("status") != "new" {
		t.Fatalf("next link should preserve filters: %s", *page.Next)
	}
	pu, _ := url.Parse(*page.Previous)
	if pu.Query().Get("page") != "" {
		t.Fatalf("previous link to first page should drop the page param: %s", *page.Previous)
	}
}

func TestPaginateEdges(t *testing.T) {
	items := []string{"a", "b", "c"}
	u, _ := url.Parse("http://api.test/api/v1/jobs")

	first := Paginate(items, 1, 10, u)
	if first.Next != nil || first.Previous != nil {
		t.Fatalf("single page should have no links: %+v", first)
	}
	if first.TotalPages != 1 {
		t.Fatalf("total pages: %d", first.TotalPages)
	}

	past := Paginate(items, 9, 10, u)
	if len(past.Results) != 0 || past.Count != 3 || past.CurrentPage != 9 {
		t.Fatalf("page past the end should be empty with intact metadata: %+v", past)
	}

	empty := Paginate([]string{}, 1, 10, u)
	if empty.TotalPages != 1 || empty.Count != 0 || empty.Results == nil {
		t.Fatalf("empty collection still has one page: %+v", empty)
	}
}
