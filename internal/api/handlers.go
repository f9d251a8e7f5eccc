package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

const maxRequestBody = 64 << 10

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Relocating:    s.relocator.Running(),
	})
}

// handleRoot handles GET /root.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	root := s.roots.CurrentRoot()
	resp := RootResponse{
		Root:       root.Path,
		Orphans:    s.roots.Orphans(),
		Relocating: s.relocator.Running(),
	}
	if resp.Orphans == nil {
		resp.Orphans = []ledger.Orphan{}
	}
	if !root.IsZero() {
		resp.Subdirs = make(map[string]string, len(ledger.Subdirs))
		for _, name := range ledger.Subdirs {
			resp.Subdirs[name] = root.Subdir(name)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleCreateRelocation handles POST /relocations. The job runs in the
// background; its outcome is read from GET /relocations/{jobID}.
func (s *Server) handleCreateRelocation(w http.ResponseWriter, r *http.Request) {
	var req RelocationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		s.writeError(w, http.StatusBadRequest, "destination is required")
		return
	}
	if s.relocator.Running() {
		s.writeError(w, http.StatusConflict, relocate.ErrRelocationInProgress.Error())
		return
	}

	id := s.newJobID()
	if !s.jobs.begin(id) {
		s.writeError(w, http.StatusConflict, relocate.ErrRelocationInProgress.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		res, err := s.relocator.Relocate(ctx, relocate.Request{JobID: id, Destination: dest})
		if err != nil {
			s.logger.Error("relocation job failed", "job_id", id, "error", err)
		}
		s.jobs.finish(id, res)
	}()

	respondJSON(w, http.StatusAccepted, RelocationAccepted{
		JobID:    id,
		Status:   jobStatusRunning,
		Location: "/relocations/" + id,
	})
}

// handleGetRelocation handles GET /relocations/{jobID}.
func (s *Server) handleGetRelocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	j, ok := s.jobs.get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "relocation not found")
		return
	}
	respondJSON(w, http.StatusOK, RelocationStatusResponse{
		JobID:  j.id,
		Status: j.status(),
		Result: j.result,
	})
}

// handleReclaim handles POST /reclaim.
func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	if s.relocator.Running() {
		s.writeError(w, http.StatusConflict, relocate.ErrRelocationInProgress.Error())
		return
	}
	recs, err := s.relocator.ReclaimOrphans(r.Context())
	if errors.Is(err, relocate.ErrRelocationInProgress) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("orphan cleanup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "orphan cleanup failed: "+err.Error())
		return
	}
	if recs == nil {
		recs = []reaper.Reclamation{}
	}
	respondJSON(w, http.StatusOK, ReclaimResponse{Reclamations: recs})
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
