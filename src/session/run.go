package session

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/cleaner"
	"github.com/silc-sh/silc/src/ptyadapter"
	"github.com/silc-sh/silc/src/shelldialect"
)

// RunStatus is the outcome of a Run() call (spec §4.4/§7).
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunTimeout   RunStatus = "timeout"
	RunBusy      RunStatus = "busy"
	RunError     RunStatus = "error"
)

// RunResult is the response body for POST /run (spec §6.2/§7: busy and
// overflow are both 200 responses distinguished by Status, not HTTP errors).
type RunResult struct {
	Status     RunStatus `json:"status"`
	Output     string    `json:"output,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	RunningCmd string    `json:"running_cmd,omitempty"`
}

// Run implements spec §4.4's sentinel run-protocol: wrap command in a
// shell-specific begin/end marker pair, write it to the PTY, and poll
// the ring buffer until the end marker appears, the MaxCollectedBytes
// cap is hit, or timeout elapses. Only one Run() may be in flight per
// session; a concurrent call observes RunBusy rather than blocking.
func (s *Session) Run(command string, timeout time.Duration) (RunResult, error) {
	if strings.ContainsAny(command, "\r\n") {
		return RunResult{}, apperror.InvalidInput("run command must not contain embedded newlines")
	}
	if s.State() != StateRunning {
		return RunResult{}, apperror.Gone("session %s is not running", s.Name)
	}

	select {
	case s.runSem <- struct{}{}:
	default:
		return RunResult{Status: RunBusy, RunningCmd: s.RunningCmd()}, nil
	}
	defer func() {
		s.mu.Lock()
		s.runningCmd = ""
		s.mu.Unlock()
		<-s.runSem
	}()

	s.mu.Lock()
	s.runningCmd = command
	s.mu.Unlock()
	s.touch()

	token, err := randomHex(4)
	if err != nil {
		return RunResult{}, apperror.Wrap(err, "generate run token")
	}

	c0 := s.buffer.Cursor()
	invocation := s.ShellType.Invocation(command, token)
	invocation = append(invocation, []byte(s.ShellType.Newline())...)
	if _, err := s.pty.Write(invocation); err != nil {
		return RunResult{}, apperror.Wrap(err, "write run invocation")
	}

	begin := []byte(shelldialect.BeginSentinel(token))
	endPrefix := []byte(shelldialect.EndSentinelPrefix(token))

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// collected accumulates independently of the ring buffer's own
	// capacity (spec §4.4 step 3): the buffer may trim well before 5 MiB,
	// so each iteration pulls only what's new since cPrev and appends it
	// here rather than re-reading since(c0) against a buffer that won't
	// retain that much history.
	var collected []byte
	cPrev := c0

	for {
		chunk, cNew := s.buffer.Since(cPrev)
		if len(chunk) > 0 {
			collected = append(collected, chunk...)
			cPrev = cNew
		}

		if result, ok := tryExtractRun(collected, begin, endPrefix); ok {
			return result, nil
		}

		if len(collected) > MaxCollectedBytes {
			_ = s.pty.Signal(ptyadapter.SignalInterrupt)
			return RunResult{Status: RunError, Error: "buffer_overflow"}, nil
		}

		if time.Now().After(deadline) {
			return RunResult{Status: RunTimeout, Output: string(cleaner.Clean(collected))}, nil
		}

		select {
		case <-ticker.C:
		case <-s.doneCh:
			return RunResult{Status: RunCompleted, Output: string(cleaner.Clean(collected))}, apperror.Gone("session %s exited mid-run", s.Name)
		}
	}
}

// tryExtractRun looks for a complete begin...end marker pair in data and,
// if found, returns the cleaned output between them plus the parsed exit
// code. It reports ok=false when the markers aren't fully present yet.
func tryExtractRun(data, begin, endPrefix []byte) (RunResult, bool) {
	beginIdx := bytes.Index(data, begin)
	if beginIdx < 0 {
		return RunResult{}, false
	}
	outputStart := beginIdx + len(begin)
	if nl := bytes.IndexByte(data[outputStart:], '\n'); nl >= 0 {
		outputStart += nl + 1
	} else {
		return RunResult{}, false // begin marker's own line isn't complete yet
	}

	endIdx := bytes.Index(data[outputStart:], endPrefix)
	if endIdx < 0 {
		return RunResult{}, false
	}
	endIdx += outputStart

	exitCode, ok := parseExitCode(data[endIdx+len(endPrefix):])
	if !ok {
		return RunResult{}, false // exit code digits not fully flushed yet
	}

	output := cleaner.Clean(data[outputStart:endIdx])
	code := exitCode
	return RunResult{Status: RunCompleted, Output: string(output), ExitCode: &code}, true
}

// parseExitCode reads the decimal exit code following "END_<token>__:" up
// to the first non-digit byte, requiring that terminator be present so a
// still-streaming number isn't read as complete.
func parseExitCode(tail []byte) (int, bool) {
	end := 0
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}
	if end == 0 || end == len(tail) {
		return 0, false
	}
	n, err := strconv.Atoi(string(tail[:end]))
	if err != nil {
		return 0, false
	}
	return n, true
}
