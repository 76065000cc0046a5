package tunnel

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	simulatedAddress = "10.66.0.2"
	simulatedRateIn  = 512 * 1024 // bytes per second
	simulatedRateOut = 96 * 1024
)

// Simulator is an in-process backend that walks the native state tokens
// without touching the network. It is the default driver and the one the
// tests use.
type Simulator struct {
	hub *Hub

	ConnectDelay time.Duration
	RateIn       uint64
	RateOut      uint64
	Address      string

	mu       sync.Mutex
	gen      uint64
	timer    *time.Timer
	up       bool
	upSince  time.Time
	failNext error
	now      func() time.Time
}

func NewSimulator(connectDelay time.Duration) *Simulator {
	return &Simulator{
		hub:          NewHub(0),
		ConnectDelay: connectDelay,
		RateIn:       simulatedRateIn,
		RateOut:      simulatedRateOut,
		Address:      simulatedAddress,
		now:          time.Now,
	}
}

func (s *Simulator) Subscribe() *Subscription {
	return s.hub.Subscribe()
}

// FailNextConnect makes the next Connect return err without emitting
// anything.
func (s *Simulator) FailNextConnect(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Emit publishes an arbitrary native state token, as an OS tunnel service
// would when the link changes on its own.
func (s *Simulator) Emit(token, message string) {
	status := MapState(token)
	s.mu.Lock()
	if status.IsResting() {
		s.gen++
		s.stopTimerLocked()
		s.up = false
	}
	s.mu.Unlock()

	s.hub.Publish(StateEvent(token, message))
}

func (s *Simulator) Connect(ctx context.Context, config, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		s.mu.Unlock()
		return err
	}
	s.gen++
	gen := s.gen
	s.stopTimerLocked()
	s.up = false
	s.mu.Unlock()

	log.WithField("server", displayName).Info("simulated tunnel connecting")
	s.hub.Publish(StateEvent("CONNECTING", ""))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.timer = time.AfterFunc(s.ConnectDelay, func() { s.finishConnect(gen, displayName) })
	return nil
}

func (s *Simulator) finishConnect(gen uint64, displayName string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.up = true
	s.upSince = s.now()
	s.mu.Unlock()

	log.WithField("server", displayName).Info("simulated tunnel up")
	s.hub.Publish(StateEvent("CONNECTED", ""))
}

func (s *Simulator) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	s.stopTimerLocked()
	s.up = false
	s.mu.Unlock()

	s.hub.Publish(StateEvent("DISCONNECTING", ""))
	s.hub.Publish(StateEvent("DISCONNECTED", ""))
	log.Info("simulated tunnel down")
	return nil
}

// Stats derives counters from the configured rates and the time the
// tunnel has been up.
func (s *Simulator) Stats(ctx context.Context) (Counters, error) {
	if err := ctx.Err(); err != nil {
		return Counters{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.up {
		return Counters{}, ErrNotConnected
	}

	elapsed := s.now().Sub(s.upSince).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return Counters{
		BytesIn:       uint64(elapsed * float64(s.RateIn)),
		BytesOut:      uint64(elapsed * float64(s.RateOut)),
		IPAddress:     s.Address,
		LastHandshake: s.upSince,
	}, nil
}

func (s *Simulator) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
