// Package management implements the daemon's management HTTP API (spec
// §4.9/§6.1): session create/list/resolve/lifecycle, process-wide
// shutdown/restart, and resurrection. Per spec §9's redesign note on
// avoiding cyclic ownership ("one endpoint type that holds a borrowed
// reference... obtain the session via registry lookup"), this package
// depends only on the Controller interface below, not on the concrete
// daemon type, so daemon can import management without a cycle.
package management

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	silcapi "github.com/silc-sh/silc/src/api"
	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/shelldialect"
)

// CreateSessionRequest is the body for POST /sessions (spec §6.1).
type CreateSessionRequest struct {
	Port     uint16 `json:"port"`
	Name     string `json:"name"`
	IsGlobal bool   `json:"is_global"`
	Token    string `json:"token"`
	Shell    string `json:"shell"`
	Cwd      string `json:"cwd"`
}

// SessionSummary is one entry of GET /sessions and the shape of
// GET /resolve/{name} and POST /sessions' 200 response (spec §6.1).
type SessionSummary struct {
	Port        uint16            `json:"port"`
	Name        string            `json:"name"`
	SessionID   string            `json:"session_id"`
	Shell       shelldialect.Kind `json:"shell"`
	Cwd         string            `json:"cwd,omitempty"`
	IdleSeconds int64             `json:"idle_seconds,omitempty"`
	Alive       bool              `json:"alive"`
}

// RestartResult is the response for POST /sessions/{port}/restart (spec §6.1).
type RestartResult struct {
	Port   uint16 `json:"port"`
	Status string `json:"status"` // "restored" | "relocated"
}

// ResurrectResult is the response for POST /resurrect (spec §6.1).
type ResurrectResult struct {
	Restored []SessionSummary       `json:"restored"`
	Failed   []ResurrectFailure     `json:"failed"`
}

// ResurrectFailure is one entry of ResurrectResult.Failed.
type ResurrectFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// HealthResponse is the body for the supplemented GET /healthz (spec
// supplement; see DESIGN.md).
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	GoVersion     string    `json:"go_version"`
	OS            string    `json:"os"`
	Arch          string    `json:"arch"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	SessionCount  int       `json:"session_count"`
}

// Controller is everything the management HTTP layer needs from the
// daemon, kept narrow and interface-shaped to avoid a management↔daemon
// import cycle.
type Controller interface {
	CreateSession(req CreateSessionRequest) (SessionSummary, error)
	ListSessions() []SessionSummary
	ResolveSession(name string) (SessionSummary, error)
	CloseSession(port uint16) error
	KillSession(port uint16) error
	RestartSession(port uint16) (RestartResult, error)
	Shutdown() error
	KillAll() error
	RestartServer() error
	Resurrect() ResurrectResult
	Health() HealthResponse
}

// Server is the management HTTP endpoint (spec §4.9: "Management
// endpoint on a fixed port, default 19999").
type Server struct {
	ctl    Controller
	token  string
	engine *gin.Engine
	http   *http.Server
}

// New builds the management router bound to ctl. token, if non-empty,
// gates non-loopback access the same way a session's api_token does
// (spec §6.4 applies uniformly to both endpoint types).
func New(ctl Controller, token string) *Server {
	s := &Server{ctl: ctl, token: token}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(silcapi.CORSMiddleware())
	r.Use(silcapi.LogrusMiddleware())
	r.Use(silcapi.TokenAuthMiddleware(func() string { return s.token }))

	r.POST("/sessions", s.handleCreateSession)
	r.GET("/sessions", s.handleListSessions)
	r.GET("/resolve/:name", s.handleResolve)
	r.POST("/sessions/:port/close", s.handleClose)
	r.POST("/sessions/:port/kill", s.handleKill)
	r.POST("/sessions/:port/restart", s.handleRestart)
	r.POST("/shutdown", s.handleShutdown)
	r.POST("/killall", s.handleKillAll)
	r.POST("/restart-server", s.handleRestartServer)
	r.POST("/resurrect", s.handleResurrect)
	r.GET("/healthz", s.handleHealthz)
	r.GET("/version", s.handleVersion)

	s.engine = r
	return s
}

// Handler exposes the underlying gin.Engine for http.Server wiring in the daemon.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		apperror.Respond(c, apperror.InvalidInput("invalid request body: %v", err))
		return
	}
	summary, err := s.ctl.CreateSession(req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.ListSessions())
}

func (s *Server) handleResolve(c *gin.Context) {
	summary, err := s.ctl.ResolveSession(c.Param("name"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleClose(c *gin.Context) {
	port, err := portFromParam(c)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	if err := s.ctl.CloseSession(uint16(port)); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleKill(c *gin.Context) {
	port, err := portFromParam(c)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	if err := s.ctl.KillSession(uint16(port)); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRestart(c *gin.Context) {
	port, err := portFromParam(c)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	result, err := s.ctl.RestartSession(uint16(port))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleShutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
	go func() { _ = s.ctl.Shutdown() }()
}

func (s *Server) handleKillAll(c *gin.Context) {
	if err := s.ctl.KillAll(); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRestartServer(c *gin.Context) {
	if err := s.ctl.RestartServer(); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleResurrect(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Resurrect())
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Health())
}

func (s *Server) handleVersion(c *gin.Context) {
	h := s.ctl.Health()
	c.JSON(http.StatusOK, gin.H{"version": h.Version, "go_version": h.GoVersion})
}

func portFromParam(c *gin.Context) (int, error) {
	raw := c.Param("port")
	n, err := parsePort(raw)
	if err != nil {
		return 0, apperror.InvalidInput("invalid port %q", raw)
	}
	return n, nil
}
