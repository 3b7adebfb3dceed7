package paging

import "strconv"

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Params is 1-based page/limit pagination as taken from query parameters.
type Params struct {
	Page  int
	Limit int
}

// FromQuery parses page and limit strings, falling back to defaults on
// anything missing, unparseable or non-positive.
func FromQuery(page, limit string) Params {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		p.Limit = n
	}
	return p
}

// Offset is limit*(page-1): page 1 starts at row 0.
func (p Params) Offset() int {
	return p.Limit * (p.Page - 1)
}
