// ABOUTME: Page coordinate arithmetic over a virtual row collection.
// ABOUTME: Tracks current page, page size and total; never fetches anything itself.

package window

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPageSize = errors.New("page size must be greater than zero")
	ErrNegativeTotal   = errors.New("total items must not be negative")
	ErrInvalidPage     = errors.New("page must be at least 1")
)

// Range is a half-open index range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices covered.
func (r Range) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range covers nothing.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Service maps pages onto index ranges. Not safe for concurrent use; callers
// that share one guard it themselves.
type Service struct {
	pageSize    int
	currentPage int
	totalItems  int
}

// New returns a Service positioned on page 1 with no known items.
func New(pageSize int) (*Service, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, pageSize)
	}
	return &Service{pageSize: pageSize, currentPage: 1}, nil
}

// SetTotalItems records the authoritative collection size. The current page is
// left alone even when the total shrinks past it.
func (s *Service) SetTotalItems(total int) error {
	if total < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeTotal, total)
	}
	s.totalItems = total
	return nil
}

// NextPage advances one page if rows exist past the current window.
func (s *Service) NextPage() bool {
	if s.EndIndex() < s.totalItems {
		s.currentPage++
		return true
	}
	return false
}

// PreviousPage steps back one page unless already on the first.
func (s *Service) PreviousPage() bool {
	if s.currentPage > 1 {
		s.currentPage--
		return true
	}
	return false
}

// GoTo jumps to page. Pages beyond the end are allowed and yield an empty window.
func (s *Service) GoTo(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	s.currentPage = page
	return nil
}

func (s *Service) CurrentPage() int { return s.currentPage }
func (s *Service) PageSize() int    { return s.pageSize }
func (s *Service) TotalItems() int  { return s.totalItems }

// StartIndex is the first index of the current page.
func (s *Service) StartIndex() int {
	return (s.currentPage - 1) * s.pageSize
}

// EndIndex is one past the last index of the current page, clamped to the
// total. If the total shrank below StartIndex the window is empty rather than
// inverted.
func (s *Service) EndIndex() int {
	start := s.StartIndex()
	end := min(start+s.pageSize, s.totalItems)
	return max(start, end)
}

// Range returns the current window.
func (s *Service) Range() Range {
	return Range{Start: s.StartIndex(), End: s.EndIndex()}
}

// TotalPages is the number of pages needed for the total, at least 1.
func (s *Service) TotalPages() int {
	if s.totalItems == 0 {
		return 1
	}
	return (s.totalItems + s.pageSize - 1) / s.pageSize
}
