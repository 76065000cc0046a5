// Package telemetry turns cumulative tunnel counters into the live
// throughput and duration figures shown for a session.
package telemetry

import (
	"time"

	"shieldvpn/internal/models"
	"shieldvpn/internal/tunnel"
)

const DefaultInterval = 2 * time.Second

// Sampler is not safe for concurrent use; the controller loop owns it.
type Sampler struct {
	interval time.Duration

	stats   models.ConnectionStats
	start   time.Time
	prevIn  uint64
	prevOut uint64
	running bool
}

func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{interval: interval}
}

func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Start begins a session at now with all figures at zero.
func (s *Sampler) Start(now time.Time) {
	s.stats = models.ConnectionStats{}
	s.start = now
	s.prevIn, s.prevOut = 0, 0
	s.running = true
}

// ResetCounters forgets the previous cumulative counters so the first
// sample of the next session is measured from zero.
func (s *Sampler) ResetCounters() {
	s.prevIn, s.prevOut = 0, 0
}

// Sample applies one counter reading. It reports false and changes nothing
// when no session is running.
func (s *Sampler) Sample(c tunnel.Counters, now time.Time) bool {
	if !s.running {
		return false
	}

	s.stats.DownloadSpeed = s.speed(s.prevIn, c.BytesIn)
	s.stats.UploadSpeed = s.speed(s.prevOut, c.BytesOut)
	s.prevIn, s.prevOut = c.BytesIn, c.BytesOut

	s.stats.BytesIn = c.BytesIn
	s.stats.BytesOut = c.BytesOut
	s.stats.DataUsed = c.BytesIn + c.BytesOut
	if c.IPAddress != "" {
		s.stats.IPAddress = c.IPAddress
	}
	if !c.LastHandshake.IsZero() {
		s.stats.LastHandshake = c.LastHandshake
	}
	s.stats.ConnectedTime = s.elapsed(now)
	return true
}

// Tick refreshes the connected time from the session start.
func (s *Sampler) Tick(now time.Time) {
	if !s.running {
		return
	}
	s.stats.ConnectedTime = s.elapsed(now)
}

func (s *Sampler) Stop() {
	s.stats = models.ConnectionStats{}
	s.start = time.Time{}
	s.prevIn, s.prevOut = 0, 0
	s.running = false
}

func (s *Sampler) Running() bool {
	return s.running
}

func (s *Sampler) Stats() models.ConnectionStats {
	return s.stats
}

// speed is clamped at zero so a counter reset or rollover never reports a
// negative rate.
func (s *Sampler) speed(prev, cur uint64) float64 {
	v := (float64(cur) - float64(prev)) / s.interval.Seconds()
	if v < 0 {
		return 0
	}
	return v
}

func (s *Sampler) elapsed(now time.Time) time.Duration {
	d := now.Sub(s.start)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}
