// Package budget splits result sets into pages that fit a token ceiling.
package budget

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/apperr"
)

// Default ceilings. DefaultCeiling leaves headroom under MaxTokens for the
// response wrapper.
const (
	MaxTokens      = 25000
	DefaultCeiling = 23000
)

// TruncationMarker is appended to text cut down to a token ceiling.
const TruncationMarker = "\n\n... [content truncated]"

// Page is one slice of a paginated result set.
type Page[T any] struct {
	Items       []T  `json:"items"`
	PageNumber  int  `json:"page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Split packs items into consecutive pages whose estimated cost stays within
// ceiling. An item costing more than ceiling on its own gets a page to
// itself. Order is preserved and nothing is dropped. A nil est selects
// DefaultCharRatio.
func Split[T any](items []T, ceiling int, est Estimator) [][]T {
	if est == nil {
		est = DefaultCharRatio()
	}
	var (
		pages   [][]T
		current []T
		used    int
	)
	for _, item := range items {
		cost := est.EstimateValue(item)
		if len(current) > 0 && used+cost > ceiling {
			pages = append(pages, current)
			current, used = nil, 0
		}
		current = append(current, item)
		used += cost
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}
	return pages
}

// BuildBudgetedPage returns page pageNumber (1-based) of items packed under
// ceiling. Pages outside [1, TotalPages] fail with apperr.ErrInvalidRequest,
// except that page 1 of an empty set is an empty page.
func BuildBudgetedPage[T any](items []T, pageNumber, ceiling int, est Estimator) (Page[T], error) {
	if ceiling <= 0 {
		return Page[T]{}, fmt.Errorf("%w: token ceiling must be positive, got %d", apperr.ErrInvalidRequest, ceiling)
	}
	return pick(Split(items, ceiling, est), len(items), pageNumber)
}

// Paginate returns page pageNumber of items in fixed pages of pageSize.
// A pageSize of zero or less selects budgeted pages at DefaultCeiling.
func Paginate[T any](items []T, pageNumber, pageSize int) (Page[T], error) {
	if pageSize <= 0 {
		return BuildBudgetedPage(items, pageNumber, DefaultCeiling, DefaultCharRatio())
	}
	var pages [][]T
	for start := 0; start < len(items); start += pageSize {
		end := min(start+pageSize, len(items))
		pages = append(pages, items[start:end])
	}
	return pick(pages, len(items), pageNumber)
}

func pick[T any](pages [][]T, total, pageNumber int) (Page[T], error) {
	totalPages := len(pages)
	if totalPages == 0 {
		if pageNumber != 1 {
			return Page[T]{}, fmt.Errorf("%w: page %d out of range, result set is empty", apperr.ErrInvalidRequest, pageNumber)
		}
		return Page[T]{Items: []T{}, PageNumber: 1}, nil
	}
	if pageNumber < 1 || pageNumber > totalPages {
		return Page[T]{}, fmt.Errorf("%w: page %d out of range [1, %d]", apperr.ErrInvalidRequest, pageNumber, totalPages)
	}
	return Page[T]{
		Items:       pages[pageNumber-1],
		PageNumber:  pageNumber,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     pageNumber < totalPages,
		HasPrevious: pageNumber > 1,
	}, nil
}

// Truncate shortens text to at most limit runes, cutting at the last word
// boundary and appending "...". The flag reports whether anything was cut.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	cut := limit
	for i := limit; i > limit/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + "...", true
}

// Fit shortens text until its estimated cost, marker included, is within
// maxTokens. The flag reports whether anything was cut.
func Fit(text string, maxTokens int, est Estimator) (string, bool) {
	if est == nil {
		est = DefaultCharRatio()
	}
	if est.Estimate(text) <= maxTokens {
		return text, false
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est.Estimate(string(runes[:mid])+TruncationMarker) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	cut := lo
	for i := lo; i > lo/2 && i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + TruncationMarker, true
}
