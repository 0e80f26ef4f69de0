package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/management"
	"github.com/silc-sh/silc/src/persistence"
	"github.com/silc-sh/silc/src/registry"
	"github.com/silc-sh/silc/src/session"
	"github.com/silc-sh/silc/src/sessionserver"
	"github.com/silc-sh/silc/src/shelldialect"
)

// CreateSession implements spec §4.9's 7-step session creation,
// serialized under session_create_mutex and rolling back every partial
// side effect (reserved socket, registry entry, persisted record,
// spawned session) on any later failure.
func (d *Daemon) CreateSession(req management.CreateSessionRequest) (management.SessionSummary, error) {
	d.sessionCMu.Lock()
	defer d.sessionCMu.Unlock()

	name, err := d.resolveName(req.Name)
	if err != nil {
		return management.SessionSummary{}, err
	}

	shell := shelldialect.Kind(req.Shell)
	if shell == "" {
		shell = shelldialect.Bash
	}
	if !shell.Valid() {
		return management.SessionSummary{}, apperror.InvalidInput("unknown shell %q", req.Shell)
	}

	ln, port, err := d.reservePort(req.Port, req.IsGlobal)
	if err != nil {
		return management.SessionSummary{}, err
	}

	if d.reg.Len() >= d.maxSessions {
		_ = ln.Close()
		return management.SessionSummary{}, apperror.Unavailable("MAX_SESSIONS (%d) reached", d.maxSessions)
	}

	token := req.Token
	if token == "" && d.cfg.Tokens.RequireToken {
		token, err = generateToken(d.cfg.Tokens.Length)
		if err != nil {
			_ = ln.Close()
			return management.SessionSummary{}, apperror.Wrap(err, "generate session token")
		}
	}

	summary, err := d.spawnSession(ln, port, name, shell, req.Cwd, req.IsGlobal, token)
	if err != nil {
		_ = ln.Close()
		return management.SessionSummary{}, err
	}
	return summary, nil
}

// resolveName validates an explicit name or generates one, retrying up
// to 10 times on collision (spec §4.9 step 1).
func (d *Daemon) resolveName(requested string) (string, error) {
	if requested != "" {
		if err := registry.ValidateName(requested); err != nil {
			return "", err
		}
		if _, exists := d.reg.GetByName(requested); exists {
			return "", apperror.Conflict("session name %q is already taken", requested)
		}
		return requested, nil
	}

	for attempt := 0; attempt < 10; attempt++ {
		candidate, err := generateName()
		if err != nil {
			return "", apperror.Wrap(err, "generate session name")
		}
		if _, exists := d.reg.GetByName(candidate); !exists {
			return candidate, nil
		}
	}
	return "", apperror.Conflict("could not generate a unique session name after 10 attempts")
}

// reservePort binds the listener before any session is spawned (spec
// §4.9 step 2: "Reservation MUST create the listener before spawning the
// endpoint to avoid races"). requested==0 scans the configured range.
// Per spec §4.8, the bind address is loopback-only unless isGlobal.
func (d *Daemon) reservePort(requested uint16, isGlobal bool) (net.Listener, uint16, error) {
	bindHost := "127.0.0.1"
	if isGlobal {
		bindHost = ""
	}

	if requested != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindHost, requested))
		if err != nil {
			return nil, 0, apperror.Conflict("port %d is already in use", requested)
		}
		return ln, requested, nil
	}

	start := d.cfg.Ports.SessionStart
	end := d.cfg.Ports.SessionEnd
	span := end - start + 1
	attempts := d.cfg.Ports.MaxAttempts
	if attempts <= 0 {
		attempts = span
	}

	for i := 0; i < attempts; i++ {
		offset, err := randomInt(span)
		if err != nil {
			return nil, 0, apperror.Wrap(err, "allocate session port")
		}
		candidate := uint16(start + offset)
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindHost, candidate))
		if err == nil {
			return ln, candidate, nil
		}
	}
	return nil, 0, apperror.Unavailable("no free port in range %d-%d after %d attempts", start, end, attempts)
}

// spawnSession performs steps 4-7 of spec §4.9: start the PTY, register,
// persist, and serve the reserved listener. It rolls back everything it
// already did if a later step fails.
func (d *Daemon) spawnSession(ln net.Listener, port uint16, name string, shell shelldialect.Kind, cwd string, isGlobal bool, token string) (management.SessionSummary, error) {
	logPath := filepath.Join(d.cfg.Paths.LogDir, fmt.Sprintf("session_%d.log", port))
	logFile, logErr := openAppend(logPath)
	if logErr != nil {
		logPath = ""
	}

	sess, err := session.New(session.Params{
		Port:           port,
		Name:           name,
		ShellType:      shell,
		ShellPath:      shell.DefaultShellPath(),
		Cwd:            cwd,
		IsGlobal:       isGlobal,
		APIToken:       token,
		LogWriter:      logFile,
		BufferCapacity: d.cfg.Sessions.MaxBufferBytes,
	})
	if err != nil {
		return management.SessionSummary{}, apperror.Wrap(err, "create session")
	}

	if err := sess.Start(sessionEnviron(cwd)); err != nil {
		return management.SessionSummary{}, err
	}

	entry, err := d.reg.Add(port, name, sess.SessionID, shell, isGlobal)
	if err != nil {
		_ = sess.Close(false)
		return management.SessionSummary{}, err
	}

	rec := persistence.Record{
		Port:      port,
		Name:      name,
		SessionID: sess.SessionID,
		Shell:     shell,
		IsGlobal:  isGlobal,
		Cwd:       cwd,
		CreatedAt: entry.CreatedAt,
	}
	if err := d.store.Append(rec); err != nil {
		d.reg.Remove(port)
		_ = sess.Close(false)
		return management.SessionSummary{}, apperror.Wrap(err, "persist session record")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defaultTimeout := time.Duration(d.cfg.Sessions.DefaultTimeoutSeconds * float64(time.Second))
	srv := sessionserver.New(sess, logPath, defaultTimeout)

	d.mu.Lock()
	d.sessions[port] = &runningSession{sess: sess, server: srv, cancel: cancel}
	d.mu.Unlock()

	go func() {
		if err := srv.Serve(ctx, ln); err != nil {
			logrus.WithField("port", port).WithError(err).Warn("session endpoint exited")
		}
	}()

	return management.SessionSummary{
		Port:      port,
		Name:      name,
		SessionID: sess.SessionID,
		Shell:     shell,
		Cwd:       cwd,
		Alive:     true,
	}, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// sessionEnviron builds the child's environment (spec §4.1: "full
// environment, already merged with overrides" — SILC has no per-session
// overrides beyond cwd, which ptyadapter.Params.Cwd already carries).
func sessionEnviron(cwd string) []string {
	return os.Environ()
}
