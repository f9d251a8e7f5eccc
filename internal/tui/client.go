package tui

import (
	"bufio"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type sourceClosedMsg struct{}

type errMsg error

type sseDisconnectedMsg struct {
	lastID int64
}

type reconnectMsg struct {
	lastID int64
}

// --- Commands ---

// subscribeToEvents connects to the SSE /events endpoint and feeds events
// into ch, resuming after lastID. Returns sseDisconnectedMsg when the
// connection drops.
func subscribeToEvents(apiURL, apiKey string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, strings.TrimRight(apiURL, "/")+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{lastID: lastID}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(&statusError{code: resp.StatusCode})
		}

		lastID = readSSE(bufio.NewScanner(resp.Body), lastID, ch)
		return sseDisconnectedMsg{lastID: lastID}
	}
}

// readSSE parses event frames until the stream ends and returns the last
// event ID seen.
func readSSE(scanner *bufio.Scanner, lastID int64, ch chan<- events.Event) int64 {
	var current struct {
		id   int64
		typ  string
		data string
	}
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current.data != "" {
				ch <- events.Event{
					ID:   current.id,
					Type: current.typ,
					At:   time.Now(),
					Data: []byte(current.data),
				}
				if current.id > lastID {
					lastID = current.id
				}
			}
			current.id, current.typ, current.data = 0, "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				current.id = id
			}
		case strings.HasPrefix(line, "event: "):
			current.typ = line[7:]
		case strings.HasPrefix(line, "data: "):
			current.data = line[6:]
		}
	}
	return lastID
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return sourceClosedMsg{}
		}
		return eventMsg(ev)
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "event stream returned HTTP " + strconv.Itoa(e.code)
}
