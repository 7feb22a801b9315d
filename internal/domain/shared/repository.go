package shared

// Page selects a slice of an ordered result set
type Page struct {
	Page     int
	PageSize int
}

// DefaultPage returns the first page of 20 items
func DefaultPage() Page {
	return Page{Page: 1, PageSize: 20}
}

// Normalize clamps the page to sane bounds
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 500 {
		p.PageSize = 500
	}
	return p
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page Page) Paginated[T] {
	page = page.Normalize()
	totalPages := int(total) / page.PageSize
	if int(total)%page.PageSize > 0 {
		totalPages++
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: totalPages,
	}
}
