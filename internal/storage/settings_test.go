package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"shieldvpn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// flakyKV wraps a KV and fails reads or writes on demand.
type flakyKV struct {
	KV
	failGet bool
	failSet bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("disk on fire")
	}
	return f.KV.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, key, value)
}

func newFileStore(t *testing.T, path string) (*SettingsStore, KV) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	kv, err := OpenFileKV(path, log)
	require.NoError(t, err)
	return NewSettingsStore(kv, log), kv
}

func TestLoadSettingsDefaultsWhenAbsent(t *testing.T) {
	s, _ := newFileStore(t, filepath.Join(t.TempDir(), "state.json"))
	assert.Equal(t, models.DefaultSettings(), s.LoadSettings(context.Background()))
}

func TestLoadSettingsMergesMissingKeys(t *testing.T) {
	ctx := context.Background()
	s, kv := newFileStore(t, filepath.Join(t.TempDir(), "state.json"))

	require.NoError(t, kv.Set(ctx, KeyVpnSettings, `{"killSwitch":true,"protocol":"OpenVPN"}`))

	got := s.LoadSettings(ctx)
	want := models.DefaultSettings()
	want.KillSwitch = true
	want.Protocol = models.ProtocolOpenVPN
	assert.Equal(t, want, got)
}

func TestLoadSettingsDegradesOnGarbage(t *testing.T) {
	ctx := context.Background()
	s, kv := newFileStore(t, filepath.Join(t.TempDir(), "state.json"))

	require.NoError(t, kv.Set(ctx, KeyVpnSettings, `[1,2,3]`))
	assert.Equal(t, models.DefaultSettings(), s.LoadSettings(ctx))

	require.NoError(t, kv.Set(ctx, KeyVpnSettings, `{"protocol":"SSTP","darkMode":false}`))
	got := s.LoadSettings(ctx)
	assert.Equal(t, models.ProtocolWireGuard, got.Protocol)
	assert.False(t, got.DarkMode)
}

func TestSettingsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, kv := newFileStore(t, path)
	before := models.VpnSettings{AutoConnect: true, SplitTunneling: true, Protocol: models.ProtocolIKEv2}
	require.NoError(t, s.SaveSettings(ctx, before))

	on := true
	merged, err := s.LoadSettings(ctx).Apply(models.SettingsPatch{KillSwitch: &on})
	require.NoError(t, err)
	require.NoError(t, s.SaveSettings(ctx, merged))
	require.NoError(t, kv.Close())

	restarted, _ := newFileStore(t, path)
	got := restarted.LoadSettings(ctx)

	want := before
	want.KillSwitch = true
	assert.Equal(t, want, got)
}

func TestSaveSettingsRejectsIncompleteRecord(t *testing.T) {
	s, _ := newFileStore(t, filepath.Join(t.TempDir(), "state.json"))

	err := s.SaveSettings(context.Background(), models.VpnSettings{})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KeyVpnSettings, perr.Key)
}

func TestSelectionFavoritesAndFlags(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t, filepath.Join(t.TempDir(), "state.json"))

	_, ok := s.LoadSelectedServerID(ctx)
	assert.False(t, ok)
	require.NoError(t, s.SaveSelectedServerID(ctx, "ch-zrh-1"))
	id, ok := s.LoadSelectedServerID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ch-zrh-1", id)
	require.NoError(t, s.SaveSelectedServerID(ctx, ""))
	_, ok = s.LoadSelectedServerID(ctx)
	assert.False(t, ok)

	assert.Empty(t, s.LoadFavorites(ctx))
	require.NoError(t, s.SaveFavorites(ctx, []string{"b", "a", "b", ""}))
	assert.Equal(t, []string{"a", "b"}, s.LoadFavorites(ctx))

	assert.False(t, s.LoadOnboardingComplete(ctx))
	require.NoError(t, s.SaveOnboardingComplete(ctx, true))
	assert.True(t, s.LoadOnboardingComplete(ctx))

	assert.False(t, s.LoadPremium(ctx))
	require.NoError(t, s.SavePremium(ctx, true))
	assert.True(t, s.LoadPremium(ctx))
}

func TestReadFailuresDegradeAndWriteFailuresReport(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t).Sugar()
	inner, err := OpenFileKV(filepath.Join(t.TempDir(), "state.json"), log)
	require.NoError(t, err)

	kv := &flakyKV{KV: inner}
	s := NewSettingsStore(kv, log)
	require.NoError(t, s.SaveFavorites(ctx, []string{"keep"}))

	kv.failGet = true
	assert.Equal(t, models.DefaultSettings(), s.LoadSettings(ctx))
	assert.Empty(t, s.LoadFavorites(ctx))
	assert.False(t, s.LoadOnboardingComplete(ctx))

	kv.failGet = false
	kv.failSet = true
	err = s.SaveFavorites(ctx, []string{"other"})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KeyFavoriteServers, perr.Key)

	kv.failSet = false
	assert.Equal(t, []string{"keep"}, s.LoadFavorites(ctx))
}
