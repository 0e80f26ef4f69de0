package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// QueryInt reads an integer query parameter, falling back to def when
// absent or unparseable, adapted from the teacher's BaseHandler.GetQueryParam
// (src/handler/base.go) which only handled strings.
func QueryInt(c *gin.Context, param string, def int) int {
	raw := c.Query(param)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// QueryBool reads a boolean query parameter, falling back to def.
func QueryBool(c *gin.Context, param string, def bool) bool {
	raw := c.Query(param)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}
