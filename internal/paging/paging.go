// Package paging implements fixed-size, clamped pagination over an
// in-memory list.
package paging

// DefaultPageSize is the number of problems shown per page.
const DefaultPageSize = 10

// State is the current position in a paginated list. Page is 1-based.
// The zero value is not usable; call New.
type State struct {
	PageSize int
	Page     int
}

// New returns a State on page 1 with the given page size. A non-positive
// size selects DefaultPageSize.
func New(pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{PageSize: pageSize, Page: 1}
}

// PageCount is the number of pages n items span. It is at least 1, so an
// empty list still has a page to show.
func (s State) PageCount(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + s.PageSize - 1) / s.PageSize
}

// Next advances one page unless already on the last page.
func (s *State) Next(n int) bool {
	if s.Page >= s.PageCount(n) {
		return false
	}
	s.Page++
	return true
}

// Previous goes back one page unless already on page 1.
func (s *State) Previous() bool {
	if s.Page <= 1 {
		return false
	}
	s.Page--
	return true
}

// Reset returns to page 1.
func (s *State) Reset() { s.Page = 1 }

// Goto jumps to page p, clamped to [1, PageCount(n)].
func (s *State) Goto(p, n int) {
	s.Page = max(1, min(p, s.PageCount(n)))
}

// Bounds returns the half-open index range [start, end) of the current page
// for a list of n items. The range is empty when n is 0.
func (s State) Bounds(n int) (start, end int) {
	page := max(1, min(s.Page, s.PageCount(n)))
	start = min((page-1)*s.PageSize, max(n, 0))
	end = min(start+s.PageSize, max(n, 0))
	return start, end
}

// Slice returns the visible window of items.
func Slice[T any](s State, items []T) []T {
	start, end := s.Bounds(len(items))
	return items[start:end]
}
