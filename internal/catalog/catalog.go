package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"shieldvpn/internal/models"

	"github.com/pelletier/go-toml/v2"
)

//go:embed servers.toml
var defaultCatalog []byte

type file struct {
	Servers []models.Server `toml:"servers"`
}

// Catalog is the immutable set of servers known to the client.
type Catalog struct {
	servers []models.Server
	byID    map[string]int
}

func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return New(f.Servers)
}

func New(servers []models.Server) (*Catalog, error) {
	c := &Catalog{
		servers: make([]models.Server, 0, len(servers)),
		byID:    make(map[string]int, len(servers)),
	}

	for i, s := range servers {
		if s.ID == "" {
			return nil, fmt.Errorf("server #%d has no id", i+1)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate server id %q", s.ID)
		}
		proto, err := models.ParseProtocol(string(s.Protocol))
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", s.ID, err)
		}
		s.Protocol = proto
		s.Config = strings.TrimSpace(s.Config)

		c.byID[s.ID] = len(c.servers)
		c.servers = append(c.servers, s)
	}

	return c, nil
}

func (c *Catalog) Get(id string) (models.Server, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Server{}, false
	}
	return c.servers[i], true
}

func (c *Catalog) All() []models.Server {
	return slices.Clone(c.servers)
}

func (c *Catalog) Len() int {
	return len(c.servers)
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterFavorites Filter = "favorites"
	FilterPremium   Filter = "premium"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(s)); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterFavorites, FilterPremium:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Search returns servers whose country or city contains query (case
// insensitive) and which pass filter, in catalog order.
func (c *Catalog) Search(query string, filter Filter, favorites []string) []models.Server {
	q := strings.ToLower(strings.TrimSpace(query))

	var out []models.Server
	for _, s := range c.servers {
		if q != "" &&
			!strings.Contains(strings.ToLower(s.Country), q) &&
			!strings.Contains(strings.ToLower(s.City), q) {
			continue
		}

		switch filter {
		case FilterFavorites:
			if !slices.Contains(favorites, s.ID) {
				continue
			}
		case FilterPremium:
			if !s.IsPremium {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
