package api

import (
	"net/http"
	"strconv"
)

type PaginationMeta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// parsePagination normalizes limit/offset query params.
// limit=50, offset=0. limit capped at 100, minimum 1.
// offset min 0
func parsePagination(r *http.Request) (int64, int64) {
	l := int64(50)
	o := int64(0)
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil {
		l = v
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64); err == nil {
		o = v
	}
	if l > 100 {
		l = 100
	}
	if l < 1 {
		l = 1
	}
	if o < 0 {
		o = 0
	}
	return l, o
}

func buildPaginationMeta(total, limit, offset int64) PaginationMeta {
	return PaginationMeta{
		Total:   int(total),
		Limit:   int(limit),
		Offset:  int(offset),
		HasMore: offset+limit < total,
	}
}
