package storage

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"shieldvpn/internal/models"
	"shieldvpn/pkg/jsonhelper"

	"go.uber.org/zap"
)

const (
	KeyOnboardingComplete = "onboarding_complete"
	KeySelectedServer     = "selected_server_id"
	KeyFavoriteServers    = "favorite_servers"
	KeyVpnSettings        = "vpn_settings"
	KeyPremiumStatus      = "premium_status"
)

// SettingsStore is the persistence contract of the lifecycle controller.
// Loads never fail: unreadable values are logged and replaced by defaults.
// Saves report a *PersistenceError and leave the stored value untouched.
type SettingsStore struct {
	kv  KV
	log *zap.SugaredLogger
}

func NewSettingsStore(kv KV, log *zap.SugaredLogger) *SettingsStore {
	return &SettingsStore{kv: kv, log: log}
}

func (s *SettingsStore) LoadSettings(ctx context.Context) models.VpnSettings {
	raw, ok := s.read(ctx, KeyVpnSettings)
	if !ok {
		return models.DefaultSettings()
	}

	// decoding over the defaults fills in any key the stored blob lacks
	settings := models.DefaultSettings()
	if err := jsonhelper.DecodeInto([]byte(raw), &settings); err != nil {
		s.log.Warnw("stored settings are unreadable, using defaults", "error", err)
		return models.DefaultSettings()
	}

	settings, fixed := settings.Normalize()
	if len(fixed) > 0 {
		s.log.Warnw("stored settings had invalid fields, using defaults for them", "fields", fixed)
	}
	return settings
}

func (s *SettingsStore) SaveSettings(ctx context.Context, settings models.VpnSettings) error {
	if _, fixed := settings.Normalize(); len(fixed) > 0 {
		return &PersistenceError{Op: "save", Key: KeyVpnSettings, Err: errors.New("incomplete settings record")}
	}
	data, err := jsonhelper.Encode(settings)
	if err != nil {
		return &PersistenceError{Op: "save", Key: KeyVpnSettings, Err: err}
	}
	return s.write(ctx, KeyVpnSettings, string(data))
}

func (s *SettingsStore) LoadSelectedServerID(ctx context.Context) (string, bool) {
	id, ok := s.read(ctx, KeySelectedServer)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SaveSelectedServerID stores id; an empty id clears the selection.
func (s *SettingsStore) SaveSelectedServerID(ctx context.Context, id string) error {
	if id == "" {
		if err := s.kv.Delete(ctx, KeySelectedServer); err != nil {
			return &PersistenceError{Op: "delete", Key: KeySelectedServer, Err: err}
		}
		return nil
	}
	return s.write(ctx, KeySelectedServer, id)
}

func (s *SettingsStore) LoadFavorites(ctx context.Context) []string {
	raw, ok := s.read(ctx, KeyFavoriteServers)
	if !ok {
		return []string{}
	}
	ids, err := jsonhelper.Decode[[]string]([]byte(raw))
	if err != nil {
		s.log.Warnw("stored favorites are unreadable, starting empty", "error", err)
		return []string{}
	}
	return normalizeIDs(ids)
}

func (s *SettingsStore) SaveFavorites(ctx context.Context, ids []string) error {
	data, err := jsonhelper.Encode(normalizeIDs(ids))
	if err != nil {
		return &PersistenceError{Op: "save", Key: KeyFavoriteServers, Err: err}
	}
	return s.write(ctx, KeyFavoriteServers, string(data))
}

func (s *SettingsStore) LoadOnboardingComplete(ctx context.Context) bool {
	return s.readBool(ctx, KeyOnboardingComplete)
}

func (s *SettingsStore) SaveOnboardingComplete(ctx context.Context, done bool) error {
	return s.write(ctx, KeyOnboardingComplete, strconv.FormatBool(done))
}

func (s *SettingsStore) LoadPremium(ctx context.Context) bool {
	return s.readBool(ctx, KeyPremiumStatus)
}

func (s *SettingsStore) SavePremium(ctx context.Context, premium bool) error {
	return s.write(ctx, KeyPremiumStatus, strconv.FormatBool(premium))
}

func (s *SettingsStore) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warnw("couldn't read stored value, using default", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *SettingsStore) readBool(ctx context.Context, key string) bool {
	v, ok := s.read(ctx, key)
	return ok && v == "true"
}

func (s *SettingsStore) write(ctx context.Context, key, value string) error {
	if err := s.kv.Set(ctx, key, value); err != nil {
		return &PersistenceError{Op: "save", Key: key, Err: err}
	}
	return nil
}

// normalizeIDs drops blanks and duplicates and sorts, so the stored list
// is a set with a stable encoding.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
