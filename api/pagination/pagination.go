// Package pagination defines the shared paging query and result types
// used by list endpoints.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Query is the paging window requested by the caller.
type Query struct {
	Start int `json:"start"`
	Limit int `json:"limit"`
}

// Result wraps one page of data with the total count.
type Result struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
}

// ParseQuery reads the start and limit query parameters, clamping the
// limit to a sane window. Malformed values fall back to defaults.
func ParseQuery(c *gin.Context) *Query {
	q := &Query{Limit: defaultLimit}
	if v, err := strconv.Atoi(c.Query("start")); err == nil && v > 0 {
		q.Start = v
	}

	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		q.Limit = v
	}

	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	return q
}
