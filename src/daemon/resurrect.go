package daemon

import (
	"errors"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/management"
)

// Resurrect reads sessions.json and recreates each entry, preserving
// name/port/cwd/shell; a taken port relocates to a new free one (spec
// §4.9: "Resurrect"). Failures are reported per-entry without aborting
// the batch (spec §7: "Resurrect reports per-entry failures without
// aborting the batch").
func (d *Daemon) Resurrect() management.ResurrectResult {
	records := d.store.Load()
	result := management.ResurrectResult{}

	for _, rec := range records {
		if _, exists := d.reg.GetByName(rec.Name); exists {
			continue
		}

		req := management.CreateSessionRequest{
			Port:     rec.Port,
			Name:     rec.Name,
			IsGlobal: rec.IsGlobal,
			Shell:    string(rec.Shell),
			Cwd:      rec.Cwd,
		}
		summary, err := d.CreateSession(req)
		if err != nil && isPortConflict(err) {
			// Spec §4.9: "if the original port is taken, allocate a new
			// free port and report relocated" — decided (DESIGN.md Open
			// Question) to relocate immediately on first bind failure,
			// not retry/backoff.
			req.Port = 0
			summary, err = d.CreateSession(req)
		}
		if err != nil {
			result.Failed = append(result.Failed, management.ResurrectFailure{
				Name:   rec.Name,
				Reason: err.Error(),
			})
			continue
		}
		result.Restored = append(result.Restored, summary)
	}
	return result
}

func isPortConflict(err error) bool {
	var appErr *apperror.Error
	return errors.As(err, &appErr) && appErr.Kind == apperror.KindConflict
}
