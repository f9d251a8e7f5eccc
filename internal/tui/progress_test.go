package tui

import (
	"bufio"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

func publishAll(hub *events.Hub) []events.Event {
	return []events.Event{
		hub.Publish(events.TypeRelocationStarted, events.StartedPayload{JobID: "job-1", Source: "/old/DevEnv", Destination: "/new/DevEnv"}),
		hub.Publish(events.TypeRelocationPhase, events.PhasePayload{JobID: "job-1", Phase: string(relocate.PhaseValidating)}),
		hub.Publish(events.TypeRelocationPhase, events.PhasePayload{JobID: "job-1", Phase: string(relocate.PhaseMigratingFiles)}),
		hub.Publish(events.TypeRelocationSubdir, events.SubdirPayload{JobID: "job-1", Subdir: "apps", Moved: 12, CopiedOnly: 1}),
		hub.Publish(events.TypeRelocationWarning, events.WarningPayload{JobID: "job-1", Message: "history rewrite failed"}),
	}
}

func feed(t *testing.T, m tea.Model, evs ...events.Event) (tea.Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, ev := range evs {
		m, cmd = m.Update(eventMsg(ev))
	}
	return m, cmd
}

// closedSource keeps the receive command returned by Update from blocking.
func closedSource() <-chan events.Event {
	ch := make(chan events.Event)
	close(ch)
	return ch
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestProgressFollowsRelocation(t *testing.T) {
	hub := events.NewHub(16)
	m, cmd := feed(t, NewProgress(closedSource()), publishAll(hub)...)
	require.False(t, isQuit(cmd))

	view := m.View()
	assert.Contains(t, view, "/old/DevEnv")
	assert.Contains(t, view, "/new/DevEnv")
	assert.Contains(t, view, "Migrate files")
	assert.Contains(t, view, "apps")
	assert.Contains(t, view, "history rewrite failed")

	pm := m.(Model)
	assert.Equal(t, relocate.PhaseMigratingFiles, pm.phase)
	_, done := pm.Completed()
	assert.False(t, done)
}

func TestProgressQuitsOnCompletion(t *testing.T) {
	hub := events.NewHub(16)
	m, _ := feed(t, NewProgress(closedSource()), publishAll(hub)...)
	m, cmd := feed(t, m, hub.Publish(events.TypeRelocationCompleted, events.CompletedPayload{
		JobID:   "job-1",
		Status:  string(relocate.StatusPartialSuccess),
		Summary: "Moved 12 files. The old root will be deleted at the next restart.",
	}))
	require.True(t, isQuit(cmd))

	pm := m.(Model)
	completed, ok := pm.Completed()
	require.True(t, ok)
	assert.Equal(t, string(relocate.StatusPartialSuccess), completed.Status)
	assert.False(t, pm.Interrupted())
	assert.Contains(t, pm.View(), "next restart")
}

func TestWatchKeepsRunningAfterCompletion(t *testing.T) {
	hub := events.NewHub(16)
	w := NewWatch("http://127.0.0.1:1", "key")
	w.source = closedSource()
	m := tea.Model(w)
	m, _ = feed(t, m, publishAll(hub)...)
	m, cmd := feed(t, m, hub.Publish(events.TypeRelocationCompleted, events.CompletedPayload{JobID: "job-1", Status: "done"}))
	assert.False(t, isQuit(cmd))

	// A new job resets the view.
	m, _ = feed(t, m, hub.Publish(events.TypeRelocationStarted, events.StartedPayload{JobID: "job-2", Source: "/a/b", Destination: "/c/d"}))
	pm := m.(Model)
	assert.Equal(t, "job-2", pm.jobID)
	assert.Empty(t, pm.subdirs)
	_, done := pm.Completed()
	assert.False(t, done)
}

func TestProgressQuitsWhenSourceCloses(t *testing.T) {
	_, cmd := NewProgress(nil).Update(sourceClosedMsg{})
	assert.True(t, isQuit(cmd))
}

func TestQuitKeyMarksInterrupted(t *testing.T) {
	m, cmd := NewProgress(nil).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, isQuit(cmd))
	assert.True(t, m.(Model).Interrupted())
}

func TestReceiveNextEvent(t *testing.T) {
	ch := make(chan events.Event, 1)
	ch <- events.Event{ID: 7, Type: events.TypeRelocationPhase}
	msg := receiveNextEvent(ch)()
	ev, ok := msg.(eventMsg)
	require.True(t, ok)
	assert.Equal(t, int64(7), ev.ID)

	close(ch)
	_, closed := receiveNextEvent(ch)().(sourceClosedMsg)
	assert.True(t, closed)
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 3",
		"event: relocation.phase",
		`data: {"job_id":"j","phase":"persisting"}`,
		"",
		"id: 4",
		"event: relocation.completed",
		`data: {"job_id":"j","status":"done"}`,
		"",
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	last := readSSE(bufio.NewScanner(strings.NewReader(stream)), 2, ch)
	close(ch)

	assert.Equal(t, int64(4), last)
	var got []events.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, events.TypeRelocationPhase, got[0].Type)

	var p events.PhasePayload
	require.NoError(t, got[0].Decode(&p))
	assert.Equal(t, "persisting", p.Phase)
}

func TestReadSSEDropsUnterminatedEvent(t *testing.T) {
	stream := strings.Join([]string{
		"id: 5",
		"event: relocation.phase",
		`data: {"job_id":"j","phase":"persisting"}`,
	}, "\n")

	ch := make(chan events.Event, 1)
	last := readSSE(bufio.NewScanner(strings.NewReader(stream)), 4, ch)
	close(ch)

	assert.Equal(t, int64(4), last, "a frame cut off mid-event is replayed on reconnect")
	_, ok := <-ch
	assert.False(t, ok)
}
