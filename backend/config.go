package backend

import (
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig is bookkeeping about launches, separate from user settings.
type AppConfig struct {
	LastLaunchedVersion string
	LaunchCount         int
	// ShowServerLoad toggles the ping/load columns of the servers listing.
	ShowServerLoad bool
}

type Config struct {
	Application AppConfig
}

func DefaultConfig() *Config {
	return &Config{
		Application: AppConfig{
			ShowServerLoad: true,
		},
	}
}

func ReadConfigFile(filepath string) (*Config, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := DefaultConfig()
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

var writeLock sync.Mutex

func (c *Config) WriteConfigFile(filepath string, write func(path string, data []byte, perm os.FileMode) error) error {
	writeLock.Lock()
	defer writeLock.Unlock()

	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return write(filepath, b, 0o644)
}
