package pagination

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination and list-filter parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
	// Search is a case-insensitive substring filter; empty means no filter.
	Search string
}

// FromContext reads limit, offset and search from the query string.
// "skip" is accepted as an alias for offset.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil {
		offset, _ = strconv.Atoi(c.QueryParam("skip"))
	}
	if offset < 0 {
		offset = 0
	}

	return Params{
		Limit:  limit,
		Offset: offset,
		Search: strings.TrimSpace(c.QueryParam("search")),
	}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// SearchPattern returns an ILIKE pattern for Search with LIKE wildcards
// escaped, or "" when no search was requested.
func (p Params) SearchPattern() string {
	if p.Search == "" {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(p.Search) + "%"
}
