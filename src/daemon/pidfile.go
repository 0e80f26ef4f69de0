package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// pidPath returns DATA_DIR/daemon.pid (spec §6.6).
func (d *Daemon) pidPath() string {
	return filepath.Join(d.cfg.Paths.DataDir, "daemon.pid")
}

// AcquirePIDFile writes this process's PID to daemon.pid, refusing to
// start if another daemon is already running there (spec §4.9: "PID
// file at data-dir/daemon.pid prevents duplicate daemons").
func (d *Daemon) AcquirePIDFile() error {
	path := d.pidPath()

	if existing, ok := readPID(path); ok && processAlive(existing) {
		return errAlreadyRunning(existing, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReleasePIDFile removes daemon.pid (spec §4.9: "remove PID file").
func (d *Daemon) ReleasePIDFile() {
	_ = os.Remove(d.pidPath())
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}
