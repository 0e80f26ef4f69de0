package sessionserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ssePollInterval matches the WS poll cadence so both transports feel
// equally responsive (spec §6.2 specifies no explicit interval for
// /stream; reuse wsPollInterval's ≤100ms bound from §6.3).
const ssePollInterval = wsPollInterval

// handleStream serves GET /stream as text/event-stream, one "data:"
// line per chunk, starting from the cursor at subscribe time (spec
// §6.2).
func (s *Server) handleStream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	cursor := s.sess.Buffer().Cursor()
	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.sess.Done():
			return
		case <-ticker.C:
			chunk, newCursor := s.sess.Buffer().Since(cursor)
			if len(chunk) == 0 {
				continue
			}
			cursor = newCursor
			fmt.Fprintf(c.Writer, "data: %s\n\n", sseEscape(utf8Decode(chunk)))
			flusher.Flush()
		}
	}
}

// sseEscape ensures a multi-line chunk still parses as a single SSE
// event by prefixing every line with "data: " per the SSE wire format.
// The caller's "data: %s\n\n" format string supplies the first line's
// prefix; this only needs to handle embedded newlines.
func sseEscape(s string) string {
	return strings.ReplaceAll(s, "\n", "\ndata: ")
}
