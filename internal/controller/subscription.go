package controller

import (
	"sync"

	"shieldvpn/internal/models"
)

// Subscription delivers the latest snapshot. Intermediate snapshots are
// replaced when the reader falls behind; the channel is closed by Close or
// when the controller closes.
type Subscription struct {
	ch   chan models.Snapshot
	once sync.Once
	c    *Controller
}

func (s *Subscription) C() <-chan models.Snapshot {
	return s.ch
}

func (s *Subscription) Close() {
	s.c.unsubscribe(s)
}

func (s *Subscription) offer(snap models.Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}
