package models

// Snapshot is the read model handed to the presentation layer. Slices and
// pointers are copies owned by the receiver.
type Snapshot struct {
	Status               ConnectionStatus
	SelectedServer       *Server
	PendingServer        *Server
	Stats                ConnectionStats
	ErrorMessage         string
	FavoriteServerIDs    []string
	Settings             VpnSettings
	IsLoading            bool
	IsOnboardingComplete bool
}

func (s Snapshot) IsFavorite(id string) bool {
	for _, fav := range s.FavoriteServerIDs {
		if fav == id {
			return true
		}
	}
	return false
}
