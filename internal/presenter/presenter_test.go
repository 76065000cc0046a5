package presenter

import (
	"strings"
	"testing"
	"time"

	"shieldvpn/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "00:01:05", FormatDuration(65*time.Second))
	assert.Equal(t, "01:00:00", FormatDuration(time.Hour+900*time.Millisecond))
	assert.Equal(t, "26:03:09", FormatDuration(26*time.Hour+3*time.Minute+9*time.Second))
	assert.Equal(t, "00:00:00", FormatDuration(-time.Second))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0.0 MB", FormatBytes(0))
	assert.Equal(t, "1.5 MB", FormatBytes(3*mib/2))
	assert.Equal(t, "1023.0 MB", FormatBytes(1023*mib))
	assert.Equal(t, "1.00 GB", FormatBytes(1024*mib))
	assert.Equal(t, "2.50 GB", FormatBytes(2560*mib))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "0.0 Mbps", FormatSpeed(0))
	assert.Equal(t, "8.0 Mbps", FormatSpeed(1e6))
	assert.Equal(t, "0.0 Mbps", FormatSpeed(-50))
}

func TestStatusLine(t *testing.T) {
	server := &models.Server{ID: "ny", City: "New York", Country: "United States", Flag: "🇺🇸"}

	line := StatusLine(models.Snapshot{
		Status:         models.StatusConnected,
		SelectedServer: server,
		Stats: models.ConnectionStats{
			ConnectedTime: 65 * time.Second,
			DownloadSpeed: 125000,
			DataUsed:      3 * mib / 2,
			IPAddress:     "10.2.0.2",
		},
	})
	assert.Equal(t, "[CONNECTED] Your connection is secure | 🇺🇸 New York, United States | 00:01:05 | down 1.0 Mbps up 0.0 Mbps | 1.5 MB | 10.2.0.2", line)

	line = StatusLine(models.Snapshot{Status: models.StatusError, ErrorMessage: "Failed to disconnect: busy"})
	assert.Equal(t, "[ERROR] Your connection is not protected | Failed to disconnect: busy", line)

	line = StatusLine(models.Snapshot{
		Status:        models.StatusConnecting,
		PendingServer: &models.Server{ID: "ams", City: "Amsterdam", Country: "Netherlands"},
	})
	assert.Equal(t, "[CONNECTING] Establishing secure connection... | switch to Amsterdam, Netherlands pending", line)
}

func TestServerRow(t *testing.T) {
	row := ServerRow(models.Server{ID: "ch-zrh-1", City: "Zurich", Country: "Switzerland", Protocol: models.ProtocolOpenVPN, Ping: 31, Load: 18, IsPremium: true}, true, false, true)
	assert.Contains(t, row, " *")
	assert.Contains(t, row, "Zurich, Switzerland")
	assert.Contains(t, row, "premium")
	assert.Contains(t, row, "31ms")
	assert.Contains(t, row, "18%")

	row = ServerRow(models.Server{ID: "nl-ams-3", City: "Amsterdam", Country: "Netherlands", Protocol: models.ProtocolWireGuard, Ping: 12}, false, true, false)
	assert.True(t, strings.HasPrefix(row, "> "))
	assert.NotContains(t, row, "12ms")
	assert.Contains(t, row, "free")
}
