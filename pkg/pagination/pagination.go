package pagination

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any page can request.
	MaxLimit = 100
	// MaxSearchLength caps free-text search input.
	MaxSearchLength = 100
)

// Params holds page based pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize applies defaults and bounds to page and limit.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizePage clamps page numbers to 1 or above.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Page is the list envelope returned by paginated endpoints.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPage wraps items with the metadata derived from params and total.
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	n := params.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(n.Limit) - 1) / int64(n.Limit))
	}
	return Page[T]{
		Items:      items,
		Page:       n.Page,
		Limit:      n.Limit,
		Total:      total,
		TotalPages: pages,
	}
}

// MapPage converts the items of a page while keeping its metadata.
func MapPage[T, U any](in Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(in.Items))
	for _, item := range in.Items {
		out = append(out, fn(item))
	}
	return Page[U]{Items: out, Page: in.Page, Limit: in.Limit, Total: in.Total, TotalPages: in.TotalPages}
}

// NormalizeSearch trims and caps search input.
func NormalizeSearch(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= MaxSearchLength {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:MaxSearchLength]))
}

// LikePattern escapes LIKE wildcards and wraps value for a contains match.
func LikePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(replacer.Replace(value)) + "%"
}
