package shared

// Pagination describes the position of a fetched page within a collection.
// It mirrors the backend list envelope: {"items": [...], "pagination": {...}}
// and is recomputed wholesale after every list fetch.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
	Pages    int `json:"pages"`
}

// HasNext reports whether another page exists after the current one
func (p Pagination) HasNext() bool {
	return p.Page < p.Pages
}

// DefaultPagination returns the pagination applied before the first fetch
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: 20}
}

// ListEnvelope is the standard backend list response:
// {"items": [...], "pagination": {"page": .., "page_size": .., "total": .., "pages": ..}}
type ListEnvelope[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}
