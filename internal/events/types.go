package events

// Relocation event types.
const (
	TypeRelocationStarted   = "relocation.started"
	TypeRelocationPhase     = "relocation.phase"
	TypeRelocationSubdir    = "relocation.subdir"
	TypeRelocationWarning   = "relocation.warning"
	TypeRelocationCompleted = "relocation.completed"
	TypeReclamation         = "reclamation.completed"
)

type StartedPayload struct {
	JobID       string `json:"job_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type PhasePayload struct {
	JobID string `json:"job_id"`
	Phase string `json:"phase"`
}

type SubdirPayload struct {
	JobID      string `json:"job_id"`
	Subdir     string `json:"subdir"`
	Moved      int    `json:"moved"`
	CopiedOnly int    `json:"copied_only"`
	Failed     int    `json:"failed"`
}

type WarningPayload struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type CompletedPayload struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

type ReclamationPayload struct {
	Path    string `json:"path"`
	Outcome string `json:"outcome"`
}
