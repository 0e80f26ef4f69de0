package sessionserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/silc-sh/silc/src/apperror"
	silcapi "github.com/silc-sh/silc/src/api"
	"github.com/silc-sh/silc/src/cleaner"
	"github.com/silc-sh/silc/src/ptyadapter"
)

const defaultRunTimeout = 30 * time.Second

// statusResponse is the body for GET /status (spec §6.2).
type statusResponse struct {
	SessionID       string `json:"session_id"`
	Name            string `json:"name"`
	Port            uint16 `json:"port"`
	Alive           bool   `json:"alive"`
	IdleSeconds     int64  `json:"idle_seconds"`
	WaitingForInput bool   `json:"waiting_for_input"`
	LastLine        string `json:"last_line"`
	RunLocked       bool   `json:"run_locked"`
	RunningCmd      string `json:"running_cmd,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.sess.IsDead() {
		apperror.Respond(c, apperror.Gone("session %s has ended", s.sess.Name))
		return
	}
	runLocked := s.sess.RunLocked()
	c.JSON(http.StatusOK, statusResponse{
		SessionID:       s.sess.SessionID,
		Name:            s.sess.Name,
		Port:            s.sess.Port,
		Alive:           true,
		IdleSeconds:     int64(time.Since(s.sess.LastAccess()).Seconds()),
		WaitingForInput: !runLocked,
		LastLine:        lastLine(s.sess.Buffer().Tail(1)),
		RunLocked:       runLocked,
		RunningCmd:      s.sess.RunningCmd(),
	})
}

// lastLine decodes the most recent buffered line for /status's last_line
// field, trimming the trailing newline Tail(1) includes.
func lastLine(raw []byte) string {
	return strings.TrimRight(utf8Decode(raw), "\r\n")
}

func (s *Server) handleOut(c *gin.Context) {
	lines := silcapi.QueryInt(c, "lines", 0)
	raw := s.sess.Buffer().All()
	if lines > 0 {
		raw = s.sess.Buffer().Tail(lines)
	}
	rows, cols := s.sess.ScreenSize()
	rendered := cleaner.Render(raw, int(rows), int(cols))
	c.JSON(http.StatusOK, gin.H{"output": string(rendered), "lines": lines})
}

func (s *Server) handleRaw(c *gin.Context) {
	lines := silcapi.QueryInt(c, "lines", 0)
	raw := s.sess.Buffer().All()
	if lines > 0 {
		raw = s.sess.Buffer().Tail(lines)
	}
	c.String(http.StatusOK, utf8Decode(raw))
}

func (s *Server) handleLogs(c *gin.Context) {
	n := silcapi.QueryInt(c, "tail", 100)
	c.String(http.StatusOK, s.logTail(n))
}

func (s *Server) handleIn(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apperror.Respond(c, apperror.InvalidInput("read request body: %v", err))
		return
	}
	noNewline := silcapi.QueryBool(c, "nonewline", false)
	if err := s.sess.Write(string(body), noNewline); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type runRequest struct {
	Command string  `json:"command"`
	Timeout float64 `json:"timeout"`
}

func (s *Server) handleRun(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apperror.Respond(c, apperror.InvalidInput("read request body: %v", err))
		return
	}

	command := strings.TrimSpace(string(body))
	timeout := s.defaultTimeout

	if strings.HasPrefix(strings.TrimSpace(c.ContentType()), "application/json") {
		var req runRequest
		if jsonErr := json.Unmarshal(body, &req); jsonErr == nil && req.Command != "" {
			command = req.Command
			if req.Timeout > 0 {
				timeout = time.Duration(req.Timeout * float64(time.Second))
			}
		}
	}

	result, err := s.sess.Run(command, timeout)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInterrupt(c *gin.Context) {
	if err := s.sess.Interrupt(); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleClear(c *gin.Context) {
	s.sess.Clear()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.sess.Reset(); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleResize(c *gin.Context) {
	rows := silcapi.QueryInt(c, "rows", 0)
	cols := silcapi.QueryInt(c, "cols", 0)
	if err := s.sess.Resize(uint16(rows), uint16(cols)); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSigterm(c *gin.Context) {
	if err := s.sess.Signal(ptyadapter.SignalTerminate); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSigkill(c *gin.Context) {
	if err := s.sess.Signal(ptyadapter.SignalKill); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"token": s.sess.APIToken})
}

func (s *Server) handleWeb(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(webUIHTML()))
}

// utf8Decode replaces invalid UTF-8 sequences rather than erroring,
// matching spec §6.2's "raw bytes decoded as UTF-8 (replace errors)".
func utf8Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
