package controller

import (
	"math/rand"
	"testing"

	"shieldvpn/internal/models"

	"github.com/stretchr/testify/assert"
)

const (
	disconnected  = models.StatusDisconnected
	connecting    = models.StatusConnecting
	connected     = models.StatusConnected
	disconnecting = models.StatusDisconnecting
	reconnecting  = models.StatusReconnecting
	failed        = models.StatusError
)

func TestNextTable(t *testing.T) {
	cases := []struct {
		from, reported, want models.ConnectionStatus
		changed              bool
	}{
		{connecting, connected, connected, true},
		{connecting, failed, failed, true},
		{connected, reconnecting, reconnecting, true},
		{connected, disconnecting, disconnecting, true},
		{reconnecting, connected, connected, true},
		{reconnecting, failed, failed, true},
		{disconnecting, disconnected, disconnected, true},
		{connected, disconnected, disconnected, true},
		{reconnecting, disconnected, disconnected, true},
		{failed, disconnected, disconnected, true},
		{disconnected, failed, failed, true},

		{disconnected, connected, disconnected, false},
		{disconnected, connecting, disconnected, false},
		{disconnecting, connected, disconnecting, false},
		{reconnecting, connecting, reconnecting, false},
		{failed, connected, failed, false},
		{connected, connected, connected, false},
		{failed, failed, failed, false},
	}

	for _, tc := range cases {
		got, changed := Next(tc.from, tc.reported)
		assert.Equal(t, tc.want, got, "%s + %s", tc.from, tc.reported)
		assert.Equal(t, tc.changed, changed, "%s + %s", tc.from, tc.reported)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, disconnected, Fold())
	assert.Equal(t, disconnected, Fold(connected, reconnecting))
	assert.Equal(t, failed, Fold(failed, connected))
	assert.Equal(t, disconnected, Fold(failed, connected, disconnected))
	assert.Equal(t, disconnected, Fold(failed, disconnected, disconnected, connecting, connected))
}

// Every fold ends in a status the table can reach, and resting statuses
// are only left through an explicit command.
func TestFoldRandomSequences(t *testing.T) {
	all := []models.ConnectionStatus{disconnected, connecting, connected, disconnecting, reconnecting, failed}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		seq := make([]models.ConnectionStatus, rng.Intn(12))
		for j := range seq {
			seq[j] = all[rng.Intn(len(all))]
		}

		got := Fold(seq...)
		assert.True(t, got == disconnected || got == failed, "events alone never start a tunnel: %v -> %s", seq, got)
	}
}
