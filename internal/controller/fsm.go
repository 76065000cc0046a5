package controller

import "shieldvpn/internal/models"

// Next returns the status reached when the backend reports reported while
// the controller is in from. ok is false when the event does not change
// anything in that state.
func Next(from, reported models.ConnectionStatus) (models.ConnectionStatus, bool) {
	if from == reported {
		return from, false
	}

	switch reported {
	case models.StatusDisconnected, models.StatusError:
		return reported, true
	case models.StatusConnected:
		if from == models.StatusConnecting || from == models.StatusReconnecting {
			return reported, true
		}
	case models.StatusReconnecting, models.StatusDisconnecting:
		if from == models.StatusConnected {
			return reported, true
		}
	}
	return from, false
}

// Fold applies a sequence of reported statuses starting from disconnected.
func Fold(reported ...models.ConnectionStatus) models.ConnectionStatus {
	status := models.StatusDisconnected
	for _, r := range reported {
		status, _ = Next(status, r)
	}
	return status
}
