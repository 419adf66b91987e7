package exam

import (
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// EventType names a server-pushed session event.
type EventType string

const (
	EventStage          EventType = "stage"
	EventTick           EventType = "tick"
	EventWarning        EventType = "warning"
	EventWarningCleared EventType = "warning_cleared"
	EventNotice         EventType = "notice"
	EventSubmitted      EventType = "submitted"
)

// Event is pushed to every subscriber of a session.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

type StagePayload struct {
	Stage model.Stage `json:"stage"`
}

type TickPayload struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

type WarningPayload struct {
	GraceSeconds int    `json:"grace_seconds"`
	Message      string `json:"message"`
}

type NoticePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SubmittedPayload struct {
	Outcome model.SubmitOutcome `json:"outcome"`
	Trigger model.SubmitTrigger `json:"trigger"`
}

// Hub fans session events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns an event channel and a function that cancels the
// subscription and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Publish delivers ev to every subscriber with room for it and reports how
// many received it.
func (h *Hub) Publish(ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
