// Package daemon implements the management-level orchestration of spec
// §4.9: the registry of live sessions, port reservation, session
// creation/lifecycle, idle GC, and graceful shutdown/restart. It
// implements management.Controller so the management HTTP layer stays
// decoupled from this package (spec §9 redesign note).
//
// Grounded on other_examples' spaceterm SessionManager (Destroy/
// DestroyAll/SweepDead/List) for the map-of-sessions + sweep shape, and
// on the teacher's ManagedSession registry idiom for the
// mutex-guarded-map pattern generalized here to own whole sessions
// rather than just buffers.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/config"
	"github.com/silc-sh/silc/src/management"
	"github.com/silc-sh/silc/src/persistence"
	"github.com/silc-sh/silc/src/registry"
	"github.com/silc-sh/silc/src/session"
	"github.com/silc-sh/silc/src/sessionserver"
)

// DefaultMaxSessions is spec §4.9 step 3's cap; not exposed via
// silc.toml since §6.7's recognized options list omits it.
const DefaultMaxSessions = 100

// runningSession bundles a live Session with the endpoint serving it,
// so the daemon can tear both down together.
type runningSession struct {
	sess   *session.Session
	server *sessionserver.Server
	cancel context.CancelFunc
}

// Daemon owns every live session and the management endpoint itself
// (spec §4.9). All exported methods are safe for concurrent use.
type Daemon struct {
	cfg     *config.Config
	reg     *registry.Registry
	store   *persistence.Store
	version string
	token   string

	mu          sync.Mutex
	sessions    map[uint16]*runningSession
	sessionCMu  sync.Mutex // session_create_mutex (spec §4.9)
	maxSessions int

	startedAt time.Time

	mgmtMu     sync.Mutex
	mgmtHTTP   *http.Server
	mgmtCancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs a Daemon bound to cfg. It does not bind any sockets;
// call ListenManagement and Resurrect separately.
func New(cfg *config.Config, version, token string) *Daemon {
	return &Daemon{
		cfg:         cfg,
		reg:         registry.New(),
		store:       persistence.New(cfg.Paths.DataDir),
		version:     version,
		token:       token,
		sessions:    make(map[uint16]*runningSession),
		maxSessions: DefaultMaxSessions,
		startedAt:   time.Now(),
		shutdownCh:  make(chan struct{}),
	}
}

// ListenManagement binds the management endpoint (spec §4.9: "Management
// endpoint on a fixed port") and serves it until the process restarts or
// shuts it down. It blocks until the server stops.
func (d *Daemon) ListenManagement() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", d.cfg.ManagementPort))
	if err != nil {
		return apperror.Wrap(err, "bind management port %d", d.cfg.ManagementPort)
	}
	return d.serveManagement(ln)
}

func (d *Daemon) serveManagement(ln net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())

	mgmt := management.New(d, d.token)
	httpSrv := &http.Server{Handler: mgmt.Handler()}

	d.mgmtMu.Lock()
	d.mgmtHTTP = httpSrv
	d.mgmtCancel = cancel
	d.mgmtMu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// RestartServer rebinds the management endpoint on the same port,
// leaving every session endpoint untouched (spec §4.9: "Restart HTTP
// layer (keep sessions alive)").
func (d *Daemon) RestartServer() error {
	d.mgmtMu.Lock()
	cancel := d.mgmtCancel
	d.mgmtMu.Unlock()
	if cancel != nil {
		cancel()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", d.cfg.ManagementPort))
	if err != nil {
		return apperror.Wrap(err, "rebind management port %d", d.cfg.ManagementPort)
	}
	go func() {
		if err := d.serveManagement(ln); err != nil {
			logrus.WithError(err).Error("management endpoint exited")
		}
	}()
	return nil
}

// Health reports process-wide status (spec supplement: GET /healthz).
func (d *Daemon) Health() management.HealthResponse {
	d.mu.Lock()
	count := len(d.sessions)
	d.mu.Unlock()

	return management.HealthResponse{
		Status:        "ok",
		Version:       d.version,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		StartedAt:     d.startedAt,
		UptimeSeconds: int64(time.Since(d.startedAt).Seconds()),
		SessionCount:  count,
	}
}
