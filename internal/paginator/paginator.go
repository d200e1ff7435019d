// Package paginator splits ordered listings into fixed-size pages.
//
// Requested page numbers never produce an error: a missing or malformed number
// selects the first page and numbers outside [1, NumPages] are clamped to the
// nearest valid page. An empty listing still has one (empty) page.
package paginator

import (
	"strconv"
	"strings"
)

// PerPage is the page size used by every listing.
const PerPage = 10

type Paginator struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
}

func New(count, perPage int) Paginator {
	if perPage <= 0 {
		perPage = PerPage
	}
	if count < 0 {
		count = 0
	}
	return Paginator{Count: count, PerPage: perPage}
}

// NumPages is at least 1.
func (p Paginator) NumPages() int {
	if p.Count == 0 {
		return 1
	}
	return (p.Count + p.PerPage - 1) / p.PerPage
}

// Number clamps a page number into the valid range.
func (p Paginator) Number(n int) int {
	if n < 1 {
		return 1
	}
	if last := p.NumPages(); n > last {
		return last
	}
	return n
}

// Window returns LIMIT and OFFSET for page n; n must already be clamped.
func (p Paginator) Window(n int) (limit, offset int) {
	return p.PerPage, (n - 1) * p.PerPage
}

// ParseNumber reads the raw ?page= value. Anything that is not an integer
// selects page 1.
func ParseNumber(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return n
}

type Page[T any] struct {
	Items       []T  `json:"items"`
	Number      int  `json:"number"`
	NumPages    int  `json:"num_pages"`
	Count       int  `json:"count"`
	PerPage     int  `json:"per_page"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPage assembles the page metadata around the already fetched items.
func NewPage[T any](p Paginator, number int, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	number = p.Number(number)
	return Page[T]{
		Items:       items,
		Number:      number,
		NumPages:    p.NumPages(),
		Count:       p.Count,
		PerPage:     p.PerPage,
		HasNext:     number < p.NumPages(),
		HasPrevious: number > 1,
	}
}

// StartIndex is the 1-based index of the first item on the page.
func (pg Page[T]) StartIndex() int {
	if pg.Count == 0 {
		return 0
	}
	return (pg.Number-1)*pg.PerPage + 1
}
