package api

import (
	"sync"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

const jobStatusRunning = "running"

type job struct {
	id     string
	result *relocate.Result
}

func (j job) status() string {
	if j.result == nil {
		return jobStatusRunning
	}
	return string(j.result.Status)
}

// jobTable tracks the running relocation and a bounded history of finished
// ones. At most one job runs at a time.
type jobTable struct {
	mu     sync.Mutex
	max    int
	active string
	order  []string
	byID   map[string]*job
}

func newJobTable(max int) *jobTable {
	return &jobTable{max: max, byID: make(map[string]*job)}
}

// begin registers id as the running job. It reports false when another job
// is still running.
func (t *jobTable) begin(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != "" {
		return false
	}
	t.active = id
	t.byID[id] = &job{id: id}
	t.order = append(t.order, id)
	t.evictLocked()
	return true
}

func (t *jobTable) finish(id string, res *relocate.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.byID[id]; ok {
		j.result = res
	}
	if t.active == id {
		t.active = ""
	}
}

func (t *jobTable) get(id string) (job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.byID[id]
	if !ok {
		return job{}, false
	}
	return *j, true
}

func (t *jobTable) evictLocked() {
	for len(t.order) > t.max {
		oldest := t.order[0]
		if oldest == t.active {
			return
		}
		t.order = t.order[1:]
		delete(t.byID, oldest)
	}
}
