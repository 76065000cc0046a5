package telemetry

import (
	"testing"
	"time"

	"shieldvpn/internal/models"
	"shieldvpn/internal/tunnel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSampleSpeed(t *testing.T) {
	s := NewSampler(2 * time.Second)
	s.Start(t0)

	require.True(t, s.Sample(tunnel.Counters{BytesIn: 1000, BytesOut: 200}, t0.Add(2*time.Second)))
	require.True(t, s.Sample(tunnel.Counters{BytesIn: 3000, BytesOut: 600}, t0.Add(4*time.Second)))

	st := s.Stats()
	assert.Equal(t, 1000.0, st.DownloadSpeed)
	assert.Equal(t, 200.0, st.UploadSpeed)
	assert.Equal(t, uint64(3600), st.DataUsed)
	assert.Equal(t, 4*time.Second, st.ConnectedTime)
}

func TestSampleRolloverClampsToZero(t *testing.T) {
	s := NewSampler(2 * time.Second)
	s.Start(t0)

	s.Sample(tunnel.Counters{BytesIn: 5000, BytesOut: 5000}, t0.Add(2*time.Second))
	s.Sample(tunnel.Counters{BytesIn: 100, BytesOut: 4000}, t0.Add(4*time.Second))

	st := s.Stats()
	assert.Zero(t, st.DownloadSpeed)
	assert.Zero(t, st.UploadSpeed)
	assert.Equal(t, uint64(100), st.BytesIn)
}

func TestSampleKeepsAddressAndHandshake(t *testing.T) {
	s := NewSampler(0)
	assert.Equal(t, DefaultInterval, s.Interval())
	s.Start(t0)

	hs := t0.Add(time.Second)
	s.Sample(tunnel.Counters{IPAddress: "10.2.0.2", LastHandshake: hs}, t0.Add(2*time.Second))
	s.Sample(tunnel.Counters{}, t0.Add(4*time.Second))

	assert.Equal(t, "10.2.0.2", s.Stats().IPAddress)
	assert.Equal(t, hs, s.Stats().LastHandshake)
}

func TestTickRecomputesFromStart(t *testing.T) {
	s := NewSampler(2 * time.Second)
	s.Start(t0)

	s.Tick(t0.Add(1500 * time.Millisecond))
	assert.Equal(t, time.Second, s.Stats().ConnectedTime)

	// a late tick catches up instead of counting ticks
	s.Tick(t0.Add(7 * time.Second))
	assert.Equal(t, 7*time.Second, s.Stats().ConnectedTime)
}

func TestStartClearsPreviousSession(t *testing.T) {
	s := NewSampler(2 * time.Second)
	s.Start(t0)
	s.Sample(tunnel.Counters{BytesIn: 9000, IPAddress: "10.0.0.1"}, t0.Add(2*time.Second))

	s.Start(t0.Add(time.Minute))
	assert.Equal(t, models.ConnectionStats{}, s.Stats())

	s.Sample(tunnel.Counters{BytesIn: 400}, t0.Add(time.Minute+2*time.Second))
	assert.Equal(t, 200.0, s.Stats().DownloadSpeed)
}

func TestStoppedSamplerIgnoresInput(t *testing.T) {
	s := NewSampler(2 * time.Second)
	assert.False(t, s.Sample(tunnel.Counters{BytesIn: 1}, t0))

	s.Start(t0)
	s.Sample(tunnel.Counters{BytesIn: 1}, t0.Add(2*time.Second))
	s.Stop()

	assert.False(t, s.Running())
	assert.True(t, s.Stats().IsZero())
	s.Tick(t0.Add(time.Hour))
	assert.True(t, s.Stats().IsZero())
}
