package shared

const (
	defaultPageSize = 20
	defaultOrderBy  = "created_at"
	defaultOrderDir = "desc"
)

// Filter is the paging and ordering every list query accepts. Pages are 1-based.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter is the first page of 20, newest first.
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: defaultPageSize, OrderBy: defaultOrderBy, OrderDir: defaultOrderDir}
}

func (f Filter) Offset() int {
	return max(f.Page-1, 0) * f.PageSize
}

// Paginated is one page of a list together with the size of the whole result.
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
	if size := int64(pageSize); size > 0 {
		p.TotalPages = int((total + size - 1) / size)
	}
	return p
}
