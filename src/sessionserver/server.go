// Package sessionserver implements the per-session HTTP/WebSocket
// server of spec §4.8/§6.2/§6.3: one gin.Engine bound to a pre-reserved
// socket, sharing one *session.Session reference with the daemon. It is
// grounded on the teacher's gin handler shape (src/api/router.go,
// former src/handler/terminal.go) generalized from a single fixed
// terminal route to the full session HTTP+WS contract.
package sessionserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	silcapi "github.com/silc-sh/silc/src/api"
	"github.com/silc-sh/silc/src/session"
)

// Server is one session's HTTP/WS endpoint (spec §4.8: "Every endpoint
// shares one Session reference").
type Server struct {
	sess           *session.Session
	logPath        string
	defaultTimeout time.Duration

	engine *gin.Engine
	http   *http.Server
}

// New builds the gin router for sess. logPath points at this session's
// per-session log file (spec §6.2: GET /logs). defaultTimeout is the
// /run timeout used when a request omits one (spec §6.7:
// sessions.default_timeout); zero falls back to defaultRunTimeout.
func New(sess *session.Session, logPath string, defaultTimeout time.Duration) *Server {
	if defaultTimeout <= 0 {
		defaultTimeout = defaultRunTimeout
	}
	s := &Server{sess: sess, logPath: logPath, defaultTimeout: defaultTimeout}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(silcapi.CORSMiddleware())
	r.Use(silcapi.NoCacheMiddleware())
	r.Use(silcapi.LogrusMiddleware())
	r.Use(silcapi.TokenAuthMiddleware(func() string { return sess.APIToken }))

	r.GET("/status", s.handleStatus)
	r.GET("/out", s.handleOut)
	r.GET("/raw", s.handleRaw)
	r.GET("/logs", s.handleLogs)
	r.GET("/stream", s.handleStream)
	r.POST("/in", s.handleIn)
	r.POST("/run", s.handleRun)
	r.POST("/interrupt", s.handleInterrupt)
	r.POST("/clear", s.handleClear)
	r.POST("/reset", s.handleReset)
	r.POST("/resize", s.handleResize)
	r.POST("/sigterm", s.handleSigterm)
	r.POST("/sigkill", s.handleSigkill)
	r.GET("/token", s.handleToken)
	r.GET("/web", s.handleWeb)
	r.GET("/ws", s.handleWS)
	r.HEAD("/status", silcapi.HeadHandler())

	s.engine = r
	return s
}

// Serve binds to ln and blocks until ctx is canceled or the server errs.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{Handler: s.engine}

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logrus.WithField("port", s.sess.Port).WithError(err).Warn("session endpoint shutdown error")
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) logTail(n int) string {
	if s.logPath == "" || n <= 0 {
		return ""
	}
	lines, err := tailLines(s.logPath, n)
	if err != nil {
		logrus.WithError(err).Debug("read session log tail failed")
		return ""
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
