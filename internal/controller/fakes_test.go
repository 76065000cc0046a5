package controller

import (
	"context"
	"sync"
	"time"

	"shieldvpn/internal/models"
	"shieldvpn/internal/tunnel"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, period: d, next: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves time forward, firing due tickers and timers in order.
// Timer callbacks run on the caller's goroutine.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var (
			at     time.Time
			ticker *fakeTicker
			timer  *fakeTimer
		)
		for _, t := range f.tickers {
			if !t.stopped && !t.next.After(target) && (at.IsZero() || t.next.Before(at)) {
				at, ticker, timer = t.next, t, nil
			}
		}
		for _, t := range f.timers {
			if !t.done && !t.at.After(target) && (at.IsZero() || t.at.Before(at)) {
				at, ticker, timer = t.at, nil, t
			}
		}
		if ticker == nil && timer == nil {
			f.now = target
			f.mu.Unlock()
			return
		}

		f.now = at
		if ticker != nil {
			ticker.next = ticker.next.Add(ticker.period)
			select {
			case ticker.ch <- at:
			default:
			}
			f.mu.Unlock()
			continue
		}
		timer.done = true
		f.mu.Unlock()
		timer.fn()
	}
}

// PendingTimers counts timers that are armed and not yet fired.
func (f *fakeClock) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (f *fakeClock) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	clock   *fakeClock
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// fakeBackend records calls and emits only what the test tells it to.
type fakeBackend struct {
	hub *tunnel.Hub

	mu            sync.Mutex
	connects      []string
	disconnects   int
	connectErr    error
	disconnectErr error
	blockConnect  bool
	subs          []*tunnel.Subscription
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{hub: tunnel.NewHub(64)}
}

func (f *fakeBackend) Connect(ctx context.Context, _, displayName string) error {
	f.mu.Lock()
	f.connects = append(f.connects, displayName)
	err, block := f.connectErr, f.blockConnect
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeBackend) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return f.disconnectErr
}

func (f *fakeBackend) Subscribe() *tunnel.Subscription {
	s := f.hub.Subscribe()
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

func (f *fakeBackend) Emit(token string) {
	f.hub.Publish(tunnel.StateEvent(token, ""))
}

func (f *fakeBackend) EmitError(message string) {
	f.hub.Publish(tunnel.StateEvent("ERROR", message))
}

func (f *fakeBackend) EmitStats(in, out uint64) {
	f.hub.Publish(tunnel.StatsEvent(tunnel.Counters{BytesIn: in, BytesOut: out}))
}

func (f *fakeBackend) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects)
}

func (f *fakeBackend) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

// pollingBackend answers Stats from a channel the test feeds.
type pollingBackend struct {
	*fakeBackend
	polls   chan struct{}
	answers chan tunnel.Counters
}

func newPollingBackend() *pollingBackend {
	return &pollingBackend{
		fakeBackend: newFakeBackend(),
		polls:       make(chan struct{}, 8),
		answers:     make(chan tunnel.Counters),
	}
}

func (p *pollingBackend) Stats(ctx context.Context) (tunnel.Counters, error) {
	p.polls <- struct{}{}
	select {
	case c := <-p.answers:
		return c, nil
	case <-ctx.Done():
		return tunnel.Counters{}, ctx.Err()
	}
}

type staticServers map[string]models.Server

func (s staticServers) Get(id string) (models.Server, bool) {
	v, ok := s[id]
	return v, ok
}
