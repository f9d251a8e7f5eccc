package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

const testKey = "test-key"

// mockRelocator implements Relocator for testing
type mockRelocator struct {
	relocateFunc func(ctx context.Context, req relocate.Request) (*relocate.Result, error)
	reclaimFunc  func(ctx context.Context) ([]reaper.Reclamation, error)
	running      atomic.Bool
}

func (m *mockRelocator) Relocate(ctx context.Context, req relocate.Request) (*relocate.Result, error) {
	return m.relocateFunc(ctx, req)
}

func (m *mockRelocator) ReclaimOrphans(ctx context.Context) ([]reaper.Reclamation, error) {
	return m.reclaimFunc(ctx)
}

func (m *mockRelocator) Running() bool { return m.running.Load() }

// mockRoots implements RootReader for testing
type mockRoots struct {
	root    ledger.Root
	orphans []ledger.Orphan
}

func (m *mockRoots) CurrentRoot() ledger.Root { return m.root }
func (m *mockRoots) Orphans() []ledger.Orphan { return m.orphans }

func newTestServer(rel *mockRelocator, roots *mockRoots, hub *events.Hub) *Server {
	if hub == nil {
		hub = events.NewHub(16)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := New(Config{Listen: "127.0.0.1:0", APIKey: testKey}, rel, roots, hub, logger)
	s.newJobID = func() string { return "job-1" }
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	return rr
}

func TestHandleHealthz_NoAuth(t *testing.T) {
	rel := &mockRelocator{}
	rel.running.Store(true)
	server := newTestServer(rel, &mockRoots{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp HealthzResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || !resp.Relocating {
		t.Fatalf("unexpected healthz response: %+v", resp)
	}
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	server := newTestServer(&mockRelocator{}, &mockRoots{}, nil)
	router := server.setupRoutes()

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong key", header: "Bearer nope"},
		{name: "basic", header: "Basic abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/root", "/relocations/job-1", "/events"} {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				rr := httptest.NewRecorder()
				router.ServeHTTP(rr, req)
				if rr.Code != http.StatusUnauthorized {
					t.Fatalf("GET %s: expected 401, got %d", path, rr.Code)
				}
			}
		})
	}
}

func TestHandleRoot(t *testing.T) {
	roots := &mockRoots{
		root:    ledger.Root{Path: "/opt/DevEnv"},
		orphans: []ledger.Orphan{{Path: "/old/DevEnv", Outcome: "scheduled_on_reboot"}},
	}
	server := newTestServer(&mockRelocator{}, roots, nil)

	rr := doRequest(t, server, http.MethodGet, "/root", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp RootResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Root != "/opt/DevEnv" {
		t.Fatalf("expected root /opt/DevEnv, got %q", resp.Root)
	}
	if len(resp.Subdirs) != len(ledger.Subdirs) {
		t.Fatalf("expected %d subdirs, got %v", len(ledger.Subdirs), resp.Subdirs)
	}
	if len(resp.Orphans) != 1 || resp.Orphans[0].Path != "/old/DevEnv" {
		t.Fatalf("unexpected orphans: %+v", resp.Orphans)
	}
}

func TestCreateRelocation_RunsInBackground(t *testing.T) {
	release := make(chan struct{})
	rel := &mockRelocator{
		relocateFunc: func(ctx context.Context, req relocate.Request) (*relocate.Result, error) {
			if req.JobID != "job-1" || req.Destination != "/new/DevEnv" {
				t.Errorf("unexpected request: %+v", req)
			}
			<-release
			return &relocate.Result{JobID: req.JobID, Status: relocate.StatusDone, Summary: "moved"}, nil
		},
	}
	server := newTestServer(rel, &mockRoots{}, nil)

	rr := doRequest(t, server, http.MethodPost, "/relocations", RelocationRequest{Destination: " /new/DevEnv "})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var accepted RelocationAccepted
	if err := json.NewDecoder(rr.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.JobID != "job-1" || accepted.Location != "/relocations/job-1" {
		t.Fatalf("unexpected accepted response: %+v", accepted)
	}

	status := getJob(t, server, "job-1")
	if status.Status != jobStatusRunning {
		t.Fatalf("expected running, got %q", status.Status)
	}

	second := doRequest(t, server, http.MethodPost, "/relocations", RelocationRequest{Destination: "/other"})
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a job runs, got %d", second.Code)
	}

	close(release)
	server.inflight.Wait()

	status = getJob(t, server, "job-1")
	if status.Status != string(relocate.StatusDone) || status.Result == nil || status.Result.Summary != "moved" {
		t.Fatalf("unexpected final status: %+v", status)
	}
}

func getJob(t *testing.T, s *Server, id string) RelocationStatusResponse {
	t.Helper()
	rr := doRequest(t, s, http.MethodGet, "/relocations/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp RelocationStatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestCreateRelocation_Rejections(t *testing.T) {
	rel := &mockRelocator{
		relocateFunc: func(context.Context, relocate.Request) (*relocate.Result, error) {
			t.Error("relocate should not be called")
			return nil, nil
		},
	}
	server := newTestServer(rel, &mockRoots{}, nil)

	rr := doRequest(t, server, http.MethodPost, "/relocations", RelocationRequest{Destination: "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty destination, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/relocations", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testKey)
	bad := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(bad, req)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", bad.Code)
	}

	rel.running.Store(true)
	busy := doRequest(t, server, http.MethodPost, "/relocations", RelocationRequest{Destination: "/new"})
	if busy.Code != http.StatusConflict {
		t.Fatalf("expected 409 while coordinator is busy, got %d", busy.Code)
	}
}

func TestGetRelocation_NotFound(t *testing.T) {
	server := newTestServer(&mockRelocator{}, &mockRoots{}, nil)
	rr := doRequest(t, server, http.MethodGet, "/relocations/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandleReclaim(t *testing.T) {
	rel := &mockRelocator{
		reclaimFunc: func(context.Context) ([]reaper.Reclamation, error) {
			return []reaper.Reclamation{{Path: "/old/DevEnv", OutcomeName: "removed"}}, nil
		},
	}
	server := newTestServer(rel, &mockRoots{}, nil)

	rr := doRequest(t, server, http.MethodPost, "/reclaim", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ReclaimResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Reclamations) != 1 || resp.Reclamations[0].OutcomeName != "removed" {
		t.Fatalf("unexpected reclamations: %+v", resp.Reclamations)
	}

	rel.reclaimFunc = func(context.Context) ([]reaper.Reclamation, error) {
		return nil, relocate.ErrRelocationInProgress
	}
	conflict := doRequest(t, server, http.MethodPost, "/reclaim", nil)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", conflict.Code)
	}
}

func TestHandleEvents_ReplaysAfterLastEventID(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(events.TypeRelocationStarted, events.StartedPayload{JobID: "j"})
	hub.Publish(events.TypeRelocationPhase, events.PhasePayload{JobID: "j", Phase: "validating"})
	hub.Publish(events.TypeRelocationPhase, events.PhasePayload{JobID: "j", Phase: "migrating_files"})

	server := newTestServer(&mockRelocator{}, &mockRoots{}, hub)
	ts := httptest.NewServer(server.setupRoutes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	var ids []string
	published := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "id: ") {
			ids = append(ids, strings.TrimPrefix(line, "id: "))
		}
		if len(ids) == 2 && !published {
			published = true
			hub.Publish(events.TypeRelocationCompleted, events.CompletedPayload{JobID: "j", Status: "done"})
		}
		if len(ids) == 3 {
			break
		}
	}
	if strings.Join(ids, ",") != "2,3,4" {
		t.Fatalf("expected ids 2,3,4, got %v", ids)
	}
}

func TestJobTableEvictsFinishedJobs(t *testing.T) {
	table := newJobTable(2)
	for _, id := range []string{"a", "b", "c"} {
		if !table.begin(id) {
			t.Fatalf("begin(%s) should succeed", id)
		}
		table.finish(id, &relocate.Result{Status: relocate.StatusDone})
	}
	if _, ok := table.get("a"); ok {
		t.Fatal("oldest job should be evicted")
	}
	if j, ok := table.get("c"); !ok || j.status() != "done" {
		t.Fatalf("latest job should be kept, got %+v %v", j, ok)
	}
}
