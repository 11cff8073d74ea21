package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects page Start (0-based) of size Limit.
type PageRequest struct {
	Limit int64
	Start int64
}

// Normalize clamps the request into the accepted range.
func (p PageRequest) Normalize() PageRequest {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Start < 0 {
		p.Start = 0
	}
	return p
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int64 {
	return p.Start * p.Limit
}

// PageMeta describes a paginated result.
type PageMeta struct {
	Total int64 `json:"total"`
	Limit int64 `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPageMeta computes the page count for total rows.
func NewPageMeta(total int64, p PageRequest) PageMeta {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{Total: total, Limit: p.Limit, Pages: pages}
}

// Page is one page of items plus its meta.
type Page[T any] struct {
	Items []T
	Meta  PageMeta
}
