package common

import (
	"net/http"
	"strconv"
)

// AtoiDefault parses value or returns def when it is empty or not a number.
func AtoiDefault(value string, def int) int {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

// Window reads limit/offset query values for newest-first feeds. A limit
// outside 1..ceiling falls back to def and a negative offset becomes zero.
func Window(r *http.Request, def, ceiling int) (limit, offset int) {
	q := r.URL.Query()
	limit = AtoiDefault(q.Get("limit"), def)
	if limit <= 0 || limit > ceiling {
		limit = def
	}
	offset = max0(AtoiDefault(q.Get("offset"), 0))
	return limit, offset
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
