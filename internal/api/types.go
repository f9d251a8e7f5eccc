package api

import (
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

// RelocationRequest is the JSON body for POST /relocations.
type RelocationRequest struct {
	Destination string `json:"destination"`
}

// RelocationAccepted is returned when a relocation job starts.
type RelocationAccepted struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

// RelocationStatusResponse is returned by GET /relocations/{id}.
type RelocationStatusResponse struct {
	JobID  string           `json:"job_id"`
	Status string           `json:"status"`
	Result *relocate.Result `json:"result,omitempty"`
}

// RootResponse is returned by GET /root.
type RootResponse struct {
	Root       string            `json:"root"`
	Subdirs    map[string]string `json:"subdirs,omitempty"`
	Orphans    []ledger.Orphan   `json:"orphans"`
	Relocating bool              `json:"relocating"`
}

// ReclaimResponse is returned by POST /reclaim.
type ReclaimResponse struct {
	Reclamations []reaper.Reclamation `json:"reclamations"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Relocating    bool   `json:"relocating"`
}
