// Package presenter renders snapshots as text for the command line.
package presenter

import (
	"fmt"
	"strings"
	"time"

	"shieldvpn/internal/models"
)

const mib = 1024 * 1024

// FormatDuration renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// FormatBytes renders MB with one decimal below 1024 MB and GB with two
// above.
func FormatBytes(b uint64) string {
	mb := float64(b) / mib
	if mb >= 1024 {
		return fmt.Sprintf("%.2f GB", mb/1024)
	}
	return fmt.Sprintf("%.1f MB", mb)
}

// FormatSpeed converts bytes per second to megabits per second.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return fmt.Sprintf("%.1f Mbps", bytesPerSec*8/1e6)
}

func StatusText(s models.ConnectionStatus) string {
	switch s {
	case models.StatusConnected:
		return "Your connection is secure"
	case models.StatusConnecting:
		return "Establishing secure connection..."
	case models.StatusReconnecting:
		return "Reconnecting..."
	case models.StatusDisconnecting:
		return "Disconnecting..."
	default:
		return "Your connection is not protected"
	}
}

// StatusLine is the one-line summary printed on every snapshot while the
// client runs.
func StatusLine(snap models.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(snap.Status.String()), StatusText(snap.Status))
	if snap.SelectedServer != nil {
		fmt.Fprintf(&b, " | %s", ServerLabel(*snap.SelectedServer))
	}

	switch snap.Status {
	case models.StatusConnected, models.StatusReconnecting:
		st := snap.Stats
		fmt.Fprintf(&b, " | %s | down %s up %s | %s",
			FormatDuration(st.ConnectedTime),
			FormatSpeed(st.DownloadSpeed),
			FormatSpeed(st.UploadSpeed),
			FormatBytes(st.DataUsed),
		)
		if st.IPAddress != "" {
			fmt.Fprintf(&b, " | %s", st.IPAddress)
		}
	case models.StatusError:
		if snap.ErrorMessage != "" {
			fmt.Fprintf(&b, " | %s", snap.ErrorMessage)
		}
	}

	if snap.PendingServer != nil {
		fmt.Fprintf(&b, " | switch to %s pending", snap.PendingServer.DisplayName())
	}
	return b.String()
}

func ServerLabel(s models.Server) string {
	label := s.DisplayName()
	if s.Flag != "" {
		label = s.Flag + " " + label
	}
	return label
}

// ServerRow is one line of the server listing. showLoad adds the ping and
// load columns.
func ServerRow(s models.Server, favorite, selected, showLoad bool) string {
	marks := [2]byte{' ', ' '}
	if selected {
		marks[0] = '>'
	}
	if favorite {
		marks[1] = '*'
	}

	tier := "free"
	if s.IsPremium {
		tier = "premium"
	}
	if !showLoad {
		return fmt.Sprintf("%s %-14s %-32s %-9s %s", string(marks[:]), s.ID, ServerLabel(s), s.Protocol, tier)
	}
	return fmt.Sprintf("%s %-14s %-32s %-9s %4dms %3d%% %s",
		string(marks[:]), s.ID, ServerLabel(s), s.Protocol, s.Ping, s.Load, tier)
}
