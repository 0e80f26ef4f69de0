// Package session implements the per-session PTY lifecycle, the
// run-protocol (spec §4.4), and the read loop (spec §4.5) — the
// single most important component in SILC (spec §2). It is grounded on
// the teacher's ManagedSession (src/handler/terminal/session_manager.go)
// and TerminalSession (src/handler/terminal/terminal.go), generalized
// with a monotonic-cursor ring buffer and the sentinel run protocol,
// neither of which the teacher implements.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/ptyadapter"
	"github.com/silc-sh/silc/src/ringbuffer"
	"github.com/silc-sh/silc/src/shelldialect"
)

// State is the session lifecycle state machine of spec §4.4:
// Starting → Running → {Running|GracefulClose|ForceKill} → Dead.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateGracefulClose
	StateForceKill
	StateDead
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateGracefulClose:
		return "closing"
	case StateForceKill:
		return "killing"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

const (
	// DefaultRows/DefaultCols match spec §3's "defaults 30×120" (rows×cols).
	DefaultRows = 30
	DefaultCols = 120

	// MaxCollectedBytes is the run() output cap from spec §4.4 (default 5 MiB).
	MaxCollectedBytes = 5 * 1024 * 1024

	// pollInterval bounds the run() polling loop (spec §4.4: "Sleep briefly ≤50ms").
	pollInterval = 50 * time.Millisecond

	// closeJoinBudget bounds how long Close() waits for the read loop to
	// notice PTY closure (spec §5: "a bounded join (≤1s)").
	closeJoinBudget = 1 * time.Second
)

// Params configures a new Session at creation time (spec §3 attributes).
type Params struct {
	Port      uint16
	Name      string
	ShellType shelldialect.Kind
	ShellPath string
	Cwd       string
	IsGlobal  bool
	APIToken  string
	Env       map[string]string
	Rows      uint16
	Cols      uint16
	// LogWriter receives every byte read from the PTY, for the per-session
	// log file (spec §4.7: "one session_<port>.log per session").
	LogWriter io.Writer
	// BufferCapacity overrides the ring buffer size (spec §3/§6.7:
	// max_buffer_bytes, default 64 KiB). Zero falls back to
	// ringbuffer.DefaultCapacity.
	BufferCapacity int
}

// Session owns one PTY + one ring buffer + one read loop + run-mutex
// (spec §2 item 4). All exported methods are safe for concurrent use.
type Session struct {
	Port      uint16
	Name      string
	SessionID string
	ShellType shelldialect.Kind
	ShellPath string
	Cwd       string
	IsGlobal  bool
	APIToken  string
	CreatedAt time.Time

	buffer *ringbuffer.Buffer
	pty    ptyadapter.PTY

	logWriter io.Writer

	mu          sync.Mutex
	state       State
	lastAccess  time.Time
	lastOutput  time.Time
	screenRows  uint16
	screenCols  uint16
	tuiClients  int // WebSocket clients currently attached
	runningCmd  string

	// runSem is a 1-buffered semaphore implementing run_lock with a
	// non-blocking try-acquire, so a second concurrent Run() observes
	// "busy" instead of queuing (spec §4.4 step 1).
	runSem chan struct{}

	doneCh    chan struct{} // closed once the read loop exits (session is Dead)
	closeOnce sync.Once
}

// New constructs a Session without starting its PTY. Call Start to spawn
// the shell and begin the read loop.
func New(p Params) (*Session, error) {
	id, err := randomHex(4)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	rows := p.Rows
	if rows == 0 {
		rows = DefaultRows
	}
	cols := p.Cols
	if cols == 0 {
		cols = DefaultCols
	}
	bufCap := p.BufferCapacity
	if bufCap <= 0 {
		bufCap = ringbuffer.DefaultCapacity
	}

	s := &Session{
		Port:       p.Port,
		Name:       p.Name,
		SessionID:  id,
		ShellType:  p.ShellType,
		ShellPath:  p.ShellPath,
		Cwd:        p.Cwd,
		IsGlobal:   p.IsGlobal,
		APIToken:   p.APIToken,
		CreatedAt:  time.Now(),
		buffer:     ringbuffer.New(bufCap),
		logWriter:  p.LogWriter,
		state:      StateStarting,
		lastAccess: time.Now(),
		lastOutput: time.Now(),
		screenRows: ptyadapter.ClampSize(rows),
		screenCols: ptyadapter.ClampSize(cols),
		runSem:     make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}
	return s, nil
}

func randomHex(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Start spawns the PTY, injects the shell's run-protocol helper, and
// begins the read loop. Spec §3 lifecycle: "created by daemon on
// request → start() spawns PTY + injects helper → services traffic".
func (s *Session) Start(env []string) error {
	s.mu.Lock()
	rows, cols := s.screenRows, s.screenCols
	s.mu.Unlock()

	p, err := ptyadapter.Spawn(ptyadapter.Params{
		ShellPath: s.ShellPath,
		Env:       env,
		Cwd:       s.Cwd,
		Rows:      rows,
		Cols:      cols,
	})
	if err != nil {
		return apperror.Wrap(err, "spawn pty for session %s", s.Name)
	}
	s.pty = p

	if helper := s.ShellType.HelperInjection(); len(helper) > 0 {
		if _, err := s.pty.Write(helper); err != nil {
			logrus.WithFields(logrus.Fields{"session_id": s.SessionID, "op": "inject_helper"}).
				WithError(err).Warn("failed to inject run-protocol helper")
		}
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	go s.readLoop()
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsDead reports whether the read loop has exited.
func (s *Session) IsDead() bool {
	select {
	case <-s.doneCh:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the session transitions to Dead.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// touch records client activity for idle-GC purposes (spec §4.9).
func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// LastAccess returns the last time a client interacted with the session.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// LastOutput returns the last time the PTY produced output.
func (s *Session) LastOutput() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutput
}

// SetTUIActive records a WebSocket client attaching (true) or detaching
// (false); tui_active stays set while at least one client is attached
// (spec §6.3: "On connect, set tui_active=true; on disconnect clear it").
func (s *Session) SetTUIActive(active bool) {
	s.mu.Lock()
	if active {
		s.tuiClients++
	} else if s.tuiClients > 0 {
		s.tuiClients--
	}
	s.mu.Unlock()
}

// TUIActive reports whether any WebSocket client is currently attached.
func (s *Session) TUIActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tuiClients > 0
}

// RunLocked reports whether a Run() is currently in flight.
func (s *Session) RunLocked() bool {
	select {
	case s.runSem <- struct{}{}:
		<-s.runSem
		return false
	default:
		return true
	}
}

// RunningCmd returns the command currently executing under Run(), if any.
func (s *Session) RunningCmd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningCmd
}

// ScreenSize returns the current (rows, cols).
func (s *Session) ScreenSize() (rows, cols uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenRows, s.screenCols
}

// Buffer exposes the underlying ring buffer for /out, /raw, /stream handlers.
func (s *Session) Buffer() *ringbuffer.Buffer {
	return s.buffer
}

// Pid returns the underlying shell process's PID, or 0 if not started.
func (s *Session) Pid() int {
	if s.pty == nil {
		return 0
	}
	return s.pty.Pid()
}
