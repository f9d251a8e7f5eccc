package relocate

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/migrate"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
)

// Status is the terminal state of a relocation.
type Status string

const (
	StatusDone           Status = "done"
	StatusPartialSuccess Status = "partial_success"
	StatusFailed         Status = "failed"
)

// Phase names a step of the relocation state machine.
type Phase string

const (
	PhaseValidating          Phase = "validating"
	PhaseMigratingFiles      Phase = "migrating_files"
	PhaseRewritingReferences Phase = "rewriting_references"
	PhasePersisting          Phase = "persisting"
	PhaseReclaimingOldRoot   Phase = "reclaiming_old_root"
)

// Phases lists the non-terminal phases in order.
var Phases = []Phase{
	PhaseValidating,
	PhaseMigratingFiles,
	PhaseRewritingReferences,
	PhasePersisting,
	PhaseReclaimingOldRoot,
}

// ReferenceCounts reports what the reference rewrite touched.
type ReferenceCounts struct {
	EnvironmentVariables int `json:"environment_variables"`
	SearchPathEntries    int `json:"search_path_entries"`
	HistoryRecords       int `json:"history_records"`
}

// Result describes one relocation attempt.
type Result struct {
	JobID       string              `json:"job_id"`
	Source      string              `json:"source"`
	Destination string              `json:"destination"`
	Status      Status              `json:"status"`
	Phase       Phase               `json:"phase"`
	Summary     string              `json:"summary"`
	Moved       int                 `json:"moved"`
	CopiedOnly  int                 `json:"copied_only"`
	Failed      int                 `json:"failed"`
	Migration   []migrate.Summary   `json:"migration,omitempty"`
	References  ReferenceCounts     `json:"references"`
	Reclamation *reaper.Reclamation `json:"reclamation,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`

	Err error `json:"-"`
}

// HasResidual reports whether any source file was copied but not removed.
func (r *Result) HasResidual() bool { return r.CopiedOnly > 0 }

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// describe fills Summary with the single user-facing message for the
// terminal state.
func (r *Result) describe() {
	switch r.Status {
	case StatusDone:
		r.Summary = fmt.Sprintf("Moved %d files from %s to %s; the old root was removed.", r.Moved, r.Source, r.Destination)
	case StatusPartialSuccess:
		r.Summary = fmt.Sprintf("Moved %d files from %s to %s. %s", r.Moved, r.Source, r.Destination, r.reclamationAdvice())
	case StatusFailed:
		r.Summary = fmt.Sprintf("Relocation to %s failed during %s: %s", r.Destination, r.Phase, r.Error)
		if r.Phase == PhasePersisting {
			r.Summary += fmt.Sprintf(" Files are now under %s but %s is still the active root; re-run the move to finish.", r.Destination, r.Source)
		} else if r.Phase == PhaseMigratingFiles {
			r.Summary += " Nothing was deleted; both locations keep their files and the move can be retried."
		}
	}
	if len(r.Warnings) > 0 {
		r.Summary += fmt.Sprintf(" (%d warnings)", len(r.Warnings))
	}
}

func (r *Result) reclamationAdvice() string {
	if r.Reclamation == nil {
		return ""
	}
	switch r.Reclamation.Outcome {
	case reaper.ScheduledOnReboot:
		return fmt.Sprintf("The old root %s will be deleted at the next restart.", r.Source)
	case reaper.PartiallyRemoved:
		return fmt.Sprintf("Some files under %s are still in use (%s); close the programs using them and run `devenv root cleanup`.",
			r.Source, sampleList(r.Reclamation.Remaining))
	default:
		return fmt.Sprintf("The old root %s could not be deleted; remove it manually or run `devenv root cleanup` later.", r.Source)
	}
}

func sampleList(paths []string) string {
	if len(paths) <= 3 {
		return strings.Join(paths, ", ")
	}
	return strings.Join(paths[:3], ", ") + "..."
}
