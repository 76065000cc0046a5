package tunnel

import (
	"strings"

	"shieldvpn/internal/models"
)

var nativeStates = map[string]models.ConnectionStatus{
	"CONNECTING":    models.StatusConnecting,
	"REASSERTING":   models.StatusConnecting,
	"PREPARING":     models.StatusConnecting,
	"CONNECTED":     models.StatusConnected,
	"READY":         models.StatusConnected,
	"DISCONNECTING": models.StatusDisconnecting,
	"RECONNECTING":  models.StatusReconnecting,
	"DISCONNECTED":  models.StatusDisconnected,
	"INVALID":       models.StatusDisconnected,
	"NONE":          models.StatusDisconnected,
	"ERROR":         models.StatusError,
}

// MapState translates a backend-native token. Unknown tokens map to
// disconnected.
func MapState(token string) models.ConnectionStatus {
	if status, ok := nativeStates[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return status
	}
	return models.StatusDisconnected
}
