// Package registry implements the in-memory session registry of spec
// §4.6: a dual index (port ↔ name) under one mutex, mirroring the
// teacher's ManagedSession map in src/handler/terminal/session_manager.go
// but keyed two ways instead of one, since SILC sessions are addressable
// by either port or name (spec §6.5).
package registry

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/shelldialect"
)

// nameRegex is spec §4.6's exact validation pattern: lowercase start,
// lowercase/digit/hyphen body, lowercase/digit end, length ≥ 2.
var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidateName reports whether name satisfies spec §4.6: it must match
// nameRegex and must not be all-digits (all-digit names are reserved so
// CLI subcommands can distinguish a port argument from a name argument,
// spec §6.5).
func ValidateName(name string) error {
	if !nameRegex.MatchString(name) {
		return apperror.InvalidInput("session name %q must match %s", name, nameRegex.String())
	}
	if isAllDigits(name) {
		return apperror.InvalidInput("session name %q must not be all-digit (reserved for ports)", name)
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Entry mirrors Session metadata plus registry-private timestamps (spec
// §4.6: "Entry mirrors Session metadata plus timestamps").
type Entry struct {
	Port       uint16
	Name       string
	SessionID  string
	ShellType  shelldialect.Kind
	IsGlobal   bool
	CreatedAt  time.Time
	LastAccess time.Time
}

// Registry is the dual-indexed in-memory store. All operations run
// under a single mutex (spec §4.6 header).
type Registry struct {
	mu     sync.Mutex
	byPort map[uint16]*Entry
	byName map[string]uint16
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		byPort: make(map[uint16]*Entry),
		byName: make(map[string]uint16),
	}
}

// Add validates name and inserts a new Entry, failing with a Conflict
// apperror ("NameTaken") if the name is already registered (spec §4.6).
func (r *Registry) Add(port uint16, name, sessionID string, shell shelldialect.Kind, isGlobal bool) (*Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[name]; taken {
		return nil, apperror.Conflict("session name %q is already taken", name)
	}
	if _, taken := r.byPort[port]; taken {
		return nil, apperror.Conflict("port %d is already registered", port)
	}

	now := time.Now()
	e := &Entry{
		Port:       port,
		Name:       name,
		SessionID:  sessionID,
		ShellType:  shell,
		IsGlobal:   isGlobal,
		CreatedAt:  now,
		LastAccess: now,
	}
	r.byPort[port] = e
	r.byName[name] = port
	return e, nil
}

// Remove deletes the entry for port, if any. It is not an error to
// remove an absent port (close/kill paths may race with GC).
func (r *Registry) Remove(port uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byPort[port]
	if !ok {
		return
	}
	delete(r.byPort, port)
	delete(r.byName, e.Name)
}

// Get looks up an entry by port.
func (r *Registry) Get(port uint16) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byPort[port]
	return e, ok
}

// GetByName looks up an entry by name.
func (r *Registry) GetByName(name string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	port, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.byPort[port], true
}

// Touch refreshes an entry's LastAccess timestamp.
func (r *Registry) Touch(port uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byPort[port]; ok {
		e.LastAccess = time.Now()
	}
}

// ListSortedByPort returns all entries ordered by port ascending (spec
// §4.6: list_sorted_by_port()).
func (r *Registry) ListSortedByPort() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Entry, 0, len(r.byPort))
	for _, e := range r.byPort {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// CleanupIdle removes every entry whose LastAccess is older than
// idleSeconds and returns the removed ports (spec §4.6:
// cleanup_idle(idle_seconds) → removed_ports). eligible, when non-nil,
// is asked about each stale port and a port it rejects is kept; checks
// such as tui_active/run_locked on the live Session belong in it, since
// the registry itself only tracks the timestamp.
func (r *Registry) CleanupIdle(idleSeconds float64, eligible func(port uint16) bool) []uint16 {
	cutoff := time.Now().Add(-time.Duration(idleSeconds * float64(time.Second)))

	r.mu.Lock()
	var stale []uint16
	for port, e := range r.byPort {
		if e.LastAccess.Before(cutoff) {
			stale = append(stale, port)
		}
	}
	r.mu.Unlock()

	var removed []uint16
	for _, port := range stale {
		if eligible != nil && !eligible(port) {
			continue
		}
		r.Remove(port)
		removed = append(removed, port)
	}
	return removed
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPort)
}
