package daemon

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silc-sh/silc/src/persistence"
)

// RunGC blocks, sweeping idle sessions and rotating the daemon log every
// GC_INTERVAL until stop is closed (spec §4.9: "Idle GC: every
// GC_INTERVAL... sessions with (now - last_access) > IDLE_TIMEOUT are
// closed — unless tui_active is set or run_lock is held. Rotate daemon
// log each tick."). Each live session's session_<port>.log is rotated on
// the same tick.
func (d *Daemon) RunGC(stop <-chan struct{}) {
	interval := time.Duration(d.cfg.Sessions.GCIntervalSeconds * float64(time.Second))
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.sweepIdle()
			d.rotateDaemonLog()
			d.rotateSessionLogs()
		}
	}
}

func (d *Daemon) sweepIdle() {
	removed := d.reg.CleanupIdle(d.cfg.Sessions.IdleTimeoutSeconds, d.gcEligible)
	for _, port := range removed {
		logrus.WithField("port", port).Info("idle session reclaimed by gc")
		_ = d.teardown(port, true)
	}
}

// gcEligible reports whether the session at port may be idle-reclaimed:
// no client activity on the session within IDLE_TIMEOUT, not currently
// attached to a terminal UI, and not mid-run() (spec §4.9).
func (d *Daemon) gcEligible(port uint16) bool {
	d.mu.Lock()
	rs, ok := d.sessions[port]
	d.mu.Unlock()
	if !ok {
		return true
	}
	idle := time.Duration(d.cfg.Sessions.IdleTimeoutSeconds * float64(time.Second))
	if time.Since(rs.sess.LastAccess()) <= idle {
		return false
	}
	return !rs.sess.TUIActive() && !rs.sess.RunLocked()
}

func (d *Daemon) rotateDaemonLog() {
	path := filepath.Join(d.cfg.Paths.LogDir, "daemon.log")
	if err := persistence.RotateByLineCount(path, d.cfg.Logging.MaxLogLines); err != nil {
		logrus.WithError(err).Warn("daemon log rotation failed")
	}
}

func (d *Daemon) rotateSessionLogs() {
	d.mu.Lock()
	ports := make([]uint16, 0, len(d.sessions))
	for port := range d.sessions {
		ports = append(ports, port)
	}
	d.mu.Unlock()

	for _, port := range ports {
		path := filepath.Join(d.cfg.Paths.LogDir, fmt.Sprintf("session_%d.log", port))
		if err := persistence.RotateByLineCount(path, d.cfg.Logging.MaxLogLines); err != nil {
			logrus.WithField("port", port).WithError(err).Warn("session log rotation failed")
		}
	}
}
