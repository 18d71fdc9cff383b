package query

import (
	"net/url"
	"strconv"

	"alarmtrack/internal/domain"
)

// DefaultPageSize is used whenever the client value is absent or not on the
// whitelist.
const DefaultPageSize = 10

// allowedPageSizes is the closed set of client-selectable page sizes.
var allowedPageSizes = map[int]bool{10: true, 25: true, 50: true, 100: true, 200: true}

// ParsePage parses the page parameter, falling back to 1.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParsePageSize parses the page_size parameter. Values off the whitelist,
// including unparseable ones, silently fall back to DefaultPageSize.
func ParsePageSize(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || !allowedPageSizes[n] {
		return DefaultPageSize
	}
	return n
}

// Window clamps the half-open slice bounds for a page over total items.
func Window(page, size, total int) (start, end int) {
	if page < 1 {
		page = 1
	}
	start = (page - 1) * size
	if start > total {
		start = total
	}
	end = start + size
	if end > total {
		end = total
	}
	return start, end
}

// TotalPages returns the page count, at least 1 so an empty collection still
// has a first page.
func TotalPages(count, size int) int {
	if count <= 0 {
		return 1
	}
	pages := (count + size - 1) / size
	return pages
}

// Paginate slices items to the requested window and builds the list
// envelope. reqURL, when non-nil, is used to derive the next and previous
// links by rewriting its page parameter; a page past the end yields empty
// results with intact metadata.
func Paginate[T any](items []T, page, size int, reqURL *url.URL) domain.Page[T] {
	total := len(items)
	start, end := Window(page, size, total)
	return Envelope(items[start:end], total, page, size, reqURL)
}

// Envelope builds the list envelope around an already-windowed page of
// results, as returned by the store list methods.
func Envelope[T any](results []T, total, page, size int, reqURL *url.URL) domain.Page[T] {
	if results == nil {
		results = []T{}
	}
	pages := TotalPages(total, size)
	out := domain.Page[T]{
		Count:       total,
		Results:     results,
		TotalPages:  pages,
		CurrentPage: page,
	}
	if reqURL != nil {
		if page < pages {
			out.Next = pageLink(reqURL, page+1)
		}
		if page > 1 && (page-1)*size < total {
			out.Previous = pageLink(reqURL, page-1)
		}
	}
	return out
}

func pageLink(reqURL *url.URL, page int) *string {
	u := *reqURL
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}
