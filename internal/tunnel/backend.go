package tunnel

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotConnected = errors.New("tunnel not connected")

// Backend owns the real tunnel. Connect and Disconnect may return before the
// tunnel settles; progress is reported as state events on subscriptions.
type Backend interface {
	Connect(ctx context.Context, config, displayName string) error
	Disconnect(ctx context.Context) error
	Subscribe() *Subscription
}

// StatsPoller is implemented by backends that expose counters on request
// instead of pushing stats events.
type StatsPoller interface {
	Stats(ctx context.Context) (Counters, error)
}

// Counters are cumulative since the tunnel came up.
type Counters struct {
	BytesIn       uint64
	BytesOut      uint64
	IPAddress     string
	LastHandshake time.Time
}

type EventKind int

const (
	EventState EventKind = iota
	EventStats
)

type Event struct {
	Kind     EventKind
	Token    string // backend-native state token, see MapState
	Message  string
	Counters Counters
}

func StateEvent(token, message string) Event {
	return Event{Kind: EventState, Token: token, Message: message}
}

func StatsEvent(c Counters) Event {
	return Event{Kind: EventStats, Counters: c}
}

// Subscription delivers backend events in emission order. The events
// channel is never closed; use Done to learn that the subscription ended.
type Subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
	hub  *Hub
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.hub != nil {
			s.hub.remove(s)
		}
	})
}

// Hub fans events out to subscriptions. State events wait for room in the
// subscriber buffer; stats events are dropped when the buffer is full since
// the next sample supersedes them.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	buf  int

	// serializes publishers so every subscriber sees the same order
	pubMu sync.Mutex
}

func NewHub(buf int) *Hub {
	if buf <= 0 {
		buf = 16
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buf: buf}
}

func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		ch:   make(chan Event, h.buf),
		done: make(chan struct{}),
		hub:  h,
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Publish(ev Event) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if ev.Kind == EventStats {
			select {
			case s.ch <- ev:
			case <-s.done:
			default:
			}
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}
