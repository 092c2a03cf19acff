package common

import (
	"net/http"
	"strconv"
)

// PageQuery is a zero-based page request as understood by the persistence backend.
type PageQuery struct {
	Page int
	Size int
}

// ParsePageQuery reads page and size from the query string. Page is zero-based;
// size is clamped to maxSize.
func ParsePageQuery(r *http.Request, defaultSize, maxSize int) PageQuery {
	q := PageQuery{Page: 0, Size: defaultSize}
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p >= 0 {
		q.Page = p
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 {
		q.Size = s
	}
	if maxSize > 0 && q.Size > maxSize {
		q.Size = maxSize
	}
	return q
}
