// Package persistence implements sessions.json, the on-disk resurrection
// manifest (spec §3/§4.7), grounded on the teacher's ProcessManager
// SaveState/LoadState (src/handler/process/state.go): atomic temp-file +
// rename writes, and reads that tolerate a missing or corrupt file by
// returning an empty list rather than failing startup.
package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/silc-sh/silc/src/shelldialect"
)

// Record is one entry of sessions.json (spec §3: "Shape: {port, name,
// session_id, shell, is_global, cwd, created_at}").
type Record struct {
	Port      uint16            `json:"port"`
	Name      string            `json:"name"`
	SessionID string            `json:"session_id"`
	Shell     shelldialect.Kind `json:"shell"`
	IsGlobal  bool              `json:"is_global"`
	Cwd       string            `json:"cwd"`
	CreatedAt time.Time         `json:"created_at"`
}

// manifest is the on-disk document shape.
type manifest struct {
	Sessions []Record `json:"sessions"`
}

// Store owns the path to sessions.json and serializes writes.
//
// The registry mutex (spec §4.7: "writers serialize via registry mutex")
// is the caller's responsibility; Store itself only guarantees the
// temp-file+rename is atomic at the filesystem level.
type Store struct {
	path string
}

// New returns a Store backed by the sessions.json file at dataDir.
func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, "sessions.json")}
}

// Load reads all records, tolerating a missing or corrupt file by
// returning an empty slice (spec §4.7: "reads tolerate missing/corrupt
// files by returning an empty list").
func (st *Store) Load() []Record {
	data, err := os.ReadFile(st.path)
	if err != nil {
		return nil
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m.Sessions
}

// Append inserts or overwrites rec, deduplicating by both port and name
// (spec §4.7: "append(entry) deduplicates by both port and name").
func (st *Store) Append(rec Record) error {
	records := st.Load()
	out := make([]Record, 0, len(records)+1)
	for _, r := range records {
		if r.Port == rec.Port || r.Name == rec.Name {
			continue
		}
		out = append(out, r)
	}
	out = append(out, rec)
	return st.write(out)
}

// RemoveByPort deletes the record for port, if present (spec §4.7:
// remove_by_port(port)).
func (st *Store) RemoveByPort(port uint16) error {
	records := st.Load()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Port != port {
			out = append(out, r)
		}
	}
	return st.write(out)
}

// write persists records atomically: write to a temp file in the same
// directory, then rename over the target (spec §3: "Written atomically
// (temp + rename)").
func (st *Store) write(records []Record) error {
	data, err := json.MarshalIndent(manifest{Sessions: records}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sessions-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, st.path)
}
