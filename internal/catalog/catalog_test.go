package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"shieldvpn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(servers []models.Server) []string {
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		out = append(out, s.ID)
	}
	return out
}

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Equal(t, 5, c.Len())

	us, ok := c.Get("us-free-154")
	require.True(t, ok)
	assert.Equal(t, models.ProtocolWireGuard, us.Protocol)
	assert.Contains(t, us.Config, "[Interface]")
	assert.False(t, us.IsPremium)

	de, ok := c.Get("de-fra-1")
	require.True(t, ok)
	assert.Empty(t, de.Config)

	_, ok = c.Get("nope")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"ch-zrh-1"}, ids(c.Search("zur", FilterAll, nil)))
	assert.Equal(t, []string{"nl-ams-3"}, ids(c.Search("NETHER", FilterAll, nil)))
	assert.Equal(t, []string{"ch-zrh-1", "jp-tyo-2", "de-fra-1"}, ids(c.Search("", FilterPremium, nil)))
	assert.Equal(t, []string{"nl-ams-3"}, ids(c.Search("", FilterFavorites, []string{"nl-ams-3", "gone"})))
	assert.Empty(t, c.Search("tokyo", FilterFavorites, nil))
}

func TestNewRejectsBadCatalogs(t *testing.T) {
	_, err := New([]models.Server{{ID: "a", Protocol: "WireGuard"}, {ID: "a", Protocol: "WireGuard"}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New([]models.Server{{ID: "a", Protocol: "L2TP"}})
	assert.ErrorContains(t, err, "L2TP")

	_, err = New([]models.Server{{Protocol: "WireGuard"}})
	assert.ErrorContains(t, err, "no id")
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[servers]]
id = "x"
protocol = "openvpn"
bandwidth = 10
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("Premium")
	require.NoError(t, err)
	assert.Equal(t, FilterPremium, f)

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	_, err = ParseFilter("cheap")
	assert.Error(t, err)
}
