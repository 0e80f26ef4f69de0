package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/ptyadapter"
)

const readChunkSize = 4096

// readLoop copies PTY output into the ring buffer until the PTY closes,
// grounded on the teacher's ManagedSession read goroutine
// (src/handler/terminal/session_manager.go) and spaceterm's
// UTF-8-boundary-aware Session read loop (other_examples). SILC's ring
// buffer is byte-oriented rather than line-oriented, so unlike spaceterm
// no UTF-8 tail buffering is needed here: partial multi-byte runes are
// simply completed by the next read and resolved by Clean()'s consumers.
func (s *Session) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			s.buffer.Append(chunk)

			s.mu.Lock()
			s.lastOutput = time.Now()
			s.mu.Unlock()

			if s.logWriter != nil {
				if _, werr := s.logWriter.Write(chunk); werr != nil {
					logrus.WithFields(logrus.Fields{"session_id": s.SessionID}).
						WithError(werr).Warn("session log write failed")
				}
			}
		}
		if err != nil {
			break
		}
	}

	s.mu.Lock()
	s.state = StateDead
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.doneCh) })
}

// Write sends raw bytes to the PTY, appending the shell's newline unless
// noNewline is set (spec §6.2: POST /in?nonewline=true).
func (s *Session) Write(data string, noNewline bool) error {
	if s.State() != StateRunning {
		return apperror.Gone("session %s is not running", s.Name)
	}
	s.touch()
	payload := []byte(data)
	if !noNewline {
		payload = append(payload, []byte(s.ShellType.Newline())...)
	}
	if _, err := s.pty.Write(payload); err != nil {
		return apperror.Wrap(err, "write to session %s", s.Name)
	}
	return nil
}

// Interrupt sends Ctrl-C (spec §4.1 / §6.2: POST /interrupt).
func (s *Session) Interrupt() error {
	if s.State() != StateRunning {
		return apperror.Gone("session %s is not running", s.Name)
	}
	s.touch()
	if _, err := s.pty.Write([]byte{0x03}); err != nil {
		return apperror.Wrap(err, "interrupt session %s", s.Name)
	}
	return nil
}

// Signal sends SIGTERM or SIGKILL to the session's process group (spec
// §6.2: POST /sigterm, POST /sigkill).
func (s *Session) Signal(sig ptyadapter.Signal) error {
	if s.pty == nil {
		return apperror.Gone("session %s has no active pty", s.Name)
	}
	s.touch()
	if err := s.pty.Signal(sig); err != nil {
		return apperror.Wrap(err, "signal session %s", s.Name)
	}
	return nil
}

// Resize changes the PTY's window size, clamping per ptyadapter.ClampSize
// (spec §4.1 / §6.2: POST /resize).
func (s *Session) Resize(rows, cols uint16) error {
	if s.State() != StateRunning {
		return apperror.Gone("session %s is not running", s.Name)
	}
	rows = ptyadapter.ClampSize(rows)
	cols = ptyadapter.ClampSize(cols)

	if err := s.pty.Resize(rows, cols); err != nil {
		return apperror.Wrap(err, "resize session %s", s.Name)
	}

	s.mu.Lock()
	s.screenRows, s.screenCols = rows, cols
	s.mu.Unlock()
	s.touch()
	return nil
}

// Clear empties the ring buffer's visible history while preserving its
// cursor, so an in-flight /stream client doesn't see its cursor jump
// backwards (spec §6.2: POST /clear).
func (s *Session) Clear() {
	s.buffer.Clear()
	s.touch()
}

// Reset sends a terminal reset sequence and clears the ring buffer,
// giving a client a clean screen without restarting the shell (spec
// §6.2: POST /reset).
func (s *Session) Reset() error {
	if s.State() != StateRunning {
		return apperror.Gone("session %s is not running", s.Name)
	}
	if _, err := s.pty.Write([]byte("\x1bc")); err != nil {
		return apperror.Wrap(err, "reset session %s", s.Name)
	}
	s.buffer.Clear()
	s.touch()
	return nil
}

// Close terminates the session. graceful requests SIGTERM and waits up
// to closeJoinBudget for the shell to exit before escalating to SIGKILL
// itself; !graceful kills immediately (spec §4.4 close()/§5 lifecycle).
func (s *Session) Close(graceful bool) error {
	s.mu.Lock()
	if s.state == StateDead {
		s.mu.Unlock()
		return nil
	}
	s.state = StateGracefulClose
	if !graceful {
		s.state = StateForceKill
	}
	s.mu.Unlock()

	if s.pty == nil {
		s.closeOnce.Do(func() { close(s.doneCh) })
		return nil
	}

	if graceful {
		_ = s.pty.Signal(ptyadapter.SignalTerminate)
		select {
		case <-s.doneCh:
			return s.pty.Close()
		case <-time.After(closeJoinBudget):
		}
		s.mu.Lock()
		s.state = StateForceKill
		s.mu.Unlock()
	}

	_ = s.pty.Signal(ptyadapter.SignalKill)
	return s.pty.Close()
}
