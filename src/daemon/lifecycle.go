package daemon

import (
	"time"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/management"
)

// ListSessions returns every live session sorted by port (spec §6.1:
// GET /sessions).
func (d *Daemon) ListSessions() []management.SessionSummary {
	entries := d.reg.ListSortedByPort()
	out := make([]management.SessionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, d.summarize(e.Port))
	}
	return out
}

// ResolveSession looks a session up by name (spec §6.1: GET /resolve/{name}).
func (d *Daemon) ResolveSession(name string) (management.SessionSummary, error) {
	entry, ok := d.reg.GetByName(name)
	if !ok {
		return management.SessionSummary{}, apperror.NotFound("session %q not found", name)
	}
	return d.summarize(entry.Port), nil
}

func (d *Daemon) summarize(port uint16) management.SessionSummary {
	entry, _ := d.reg.Get(port)

	d.mu.Lock()
	rs, running := d.sessions[port]
	d.mu.Unlock()

	summary := management.SessionSummary{
		Port:      entry.Port,
		Name:      entry.Name,
		SessionID: entry.SessionID,
		Shell:     entry.ShellType,
	}
	if running {
		summary.Cwd = rs.sess.Cwd
		summary.Alive = !rs.sess.IsDead()
		summary.IdleSeconds = int64(time.Since(rs.sess.LastAccess()).Seconds())
	}
	return summary
}

// CloseSession gracefully closes the session at port via the management
// endpoint (spec §4.9: "lifecycle commands go to the daemon, not the
// per-session endpoint, so they work even when the endpoint is
// unresponsive").
func (d *Daemon) CloseSession(port uint16) error {
	return d.teardown(port, true)
}

// KillSession force-kills the session at port (spec §6.1: POST /sessions/{port}/kill).
func (d *Daemon) KillSession(port uint16) error {
	return d.teardown(port, false)
}

func (d *Daemon) teardown(port uint16, graceful bool) error {
	d.mu.Lock()
	rs, ok := d.sessions[port]
	if ok {
		delete(d.sessions, port)
	}
	d.mu.Unlock()

	if !ok {
		return apperror.NotFound("no session on port %d", port)
	}

	rs.cancel()
	err := rs.sess.Close(graceful)

	d.reg.Remove(port)
	_ = d.store.RemoveByPort(port)
	return err
}

// RestartSession closes and recreates a session preserving its
// identity, relocating to a new port on conflict (spec §6.1: POST
// /sessions/{port}/restart).
func (d *Daemon) RestartSession(port uint16) (management.RestartResult, error) {
	entry, ok := d.reg.Get(port)
	if !ok {
		return management.RestartResult{}, apperror.NotFound("no session on port %d", port)
	}
	name, shell, isGlobal := entry.Name, entry.ShellType, entry.IsGlobal

	d.mu.Lock()
	rs, running := d.sessions[port]
	d.mu.Unlock()
	cwd := ""
	if running {
		cwd = rs.sess.Cwd
	}

	if err := d.teardown(port, true); err != nil {
		return management.RestartResult{}, err
	}

	status := "restored"
	req := management.CreateSessionRequest{Port: port, Name: name, IsGlobal: isGlobal, Shell: string(shell), Cwd: cwd}

	d.sessionCMu.Lock()
	ln, newPort, perr := d.reservePort(req.Port, isGlobal)
	d.sessionCMu.Unlock()
	if perr != nil {
		// Original port unavailable: relocate to any free port.
		d.sessionCMu.Lock()
		ln, newPort, perr = d.reservePort(0, isGlobal)
		d.sessionCMu.Unlock()
		if perr != nil {
			return management.RestartResult{}, perr
		}
		status = "relocated"
	}

	d.sessionCMu.Lock()
	_, err := d.spawnSession(ln, newPort, name, shell, cwd, isGlobal, "")
	d.sessionCMu.Unlock()
	if err != nil {
		_ = ln.Close()
		return management.RestartResult{}, err
	}

	return management.RestartResult{Port: newPort, Status: status}, nil
}

// KillAll force-kills every live session (spec §6.1: POST /killall).
func (d *Daemon) KillAll() error {
	d.mu.Lock()
	ports := make([]uint16, 0, len(d.sessions))
	for port := range d.sessions {
		ports = append(ports, port)
	}
	d.mu.Unlock()

	for _, port := range ports {
		_ = d.teardown(port, false)
	}
	return nil
}

// shutdownWatchdogBudget is the hard-exit deadline (spec §4.9: "default 30s").
const shutdownWatchdogBudget = 30 * time.Second

// sessionCloseBudget bounds each session's cleanup task during shutdown
// (spec §4.9: "cleanup task with a ≤2s budget").
const sessionCloseBudget = 2 * time.Second

// Shutdown gracefully closes every session (bounded per-session) then
// the management endpoint, arming a hard-exit watchdog so a stuck
// subsystem cannot hang the process indefinitely (spec §4.9, §5).
func (d *Daemon) Shutdown() error {
	var result error
	d.shutdownOnce.Do(func() {
		close(d.shutdownCh)

		watchdog := time.AfterFunc(shutdownWatchdogBudget, func() {
			hardExit(2)
		})
		defer watchdog.Stop()

		d.mu.Lock()
		ports := make([]uint16, 0, len(d.sessions))
		for port := range d.sessions {
			ports = append(ports, port)
		}
		d.mu.Unlock()

		for _, port := range ports {
			done := make(chan struct{})
			go func(p uint16) {
				_ = d.teardown(p, true)
				close(done)
			}(port)
			select {
			case <-done:
			case <-time.After(sessionCloseBudget):
			}
		}

		d.mgmtMu.Lock()
		cancel := d.mgmtCancel
		d.mgmtMu.Unlock()
		if cancel != nil {
			cancel()
		}

		d.ReleasePIDFile()
		result = nil
		hardExit(0)
	})
	return result
}
