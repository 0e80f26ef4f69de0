//go:build !windows

package ptyadapter

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// unixPTY adapts creack/pty, grounded on the teacher's TerminalSession
// (src/handler/terminal/terminal.go) and on vibemux's PTYSession
// (other_examples), generalized to the full PTY interface (signal
// family, Done channel, Pid) spec §4.1 requires.
type unixPTY struct {
	ptmx *os.File
	cmd  *exec.Cmd

	mu     sync.Mutex
	closed bool

	done chan struct{}
}

func spawn(p Params) (PTY, error) {
	cmd := exec.Command(p.ShellPath, p.Args...)
	if p.Cwd != "" {
		cmd.Dir = p.Cwd
	}
	cmd.Env = p.Env

	// New session leader so SIGINT/SIGTERM/SIGKILL can target the whole
	// foreground process group spawned by the shell, not just the shell
	// itself (spec §4.1: "child becomes session leader (setsid)").
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: ClampSize(p.Rows),
		Cols: ClampSize(p.Cols),
	})
	if err != nil {
		return nil, err
	}

	up := &unixPTY{
		ptmx: ptmx,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go up.waitLoop()
	return up, nil
}

func (u *unixPTY) waitLoop() {
	_ = u.cmd.Wait()
	close(u.done)
}

func (u *unixPTY) Read(buf []byte) (int, error) {
	return u.ptmx.Read(buf)
}

func (u *unixPTY) Write(buf []byte) (int, error) {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		// Fails silently when pty closed (spec §4.1): callers rely on
		// the subsequent Read EOF, not on this error.
		return len(buf), nil
	}
	return u.ptmx.Write(buf)
}

func (u *unixPTY) Resize(rows, cols uint16) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	return pty.Setsize(u.ptmx, &pty.Winsize{
		Rows: ClampSize(rows),
		Cols: ClampSize(cols),
	})
}

func (u *unixPTY) Signal(s Signal) error {
	pid := u.Pid()
	if pid <= 0 {
		return nil
	}

	var sig syscall.Signal
	switch s {
	case SignalInterrupt:
		sig = syscall.SIGINT
	case SignalTerminate:
		sig = syscall.SIGTERM
	case SignalKill:
		sig = syscall.SIGKILL
	default:
		return nil
	}

	// Negative pid targets the whole process group created by Setsid.
	if err := unix.Kill(-pid, sig); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

func (u *unixPTY) Kill() error {
	return u.Signal(SignalKill)
}

func (u *unixPTY) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()

	err := u.ptmx.Close()

	select {
	case <-u.done:
	case <-time.After(closeEOFBudget):
	}

	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (u *unixPTY) Done() <-chan struct{} {
	return u.done
}

func (u *unixPTY) Pid() int {
	if u.cmd == nil || u.cmd.Process == nil {
		return 0
	}
	return u.cmd.Process.Pid
}
