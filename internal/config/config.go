package config

import (
	"fmt"
	"sync"
	"time"

	"shieldvpn/pkg/logger"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"APP_ENV" env-default:"production" env-description:"Environment [production, local, sandbox]"`
	Debug      bool             `yaml:"debug" env:"APP_DEBUG" env-default:"false" env-description:"Enables debug mode"`
	Logger     logger.Config    `yaml:"logger"`
	Storage    StorageConfig    `yaml:"storage"`
	Tunnel     TunnelConfig     `yaml:"tunnel"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Controller ControllerConfig `yaml:"controller"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

type StorageConfig struct {
	Dir    string `yaml:"dir" env:"SHIELD_STORAGE_DIR" env-description:"Base directory for persisted state (defaults to the user config dir)"`
	Driver string `yaml:"driver" env:"SHIELD_STORAGE_DRIVER" env-default:"file" env-description:"Key/value driver [file, sqlite]"`
}

type TunnelConfig struct {
	Driver      string        `yaml:"driver" env:"SHIELD_TUNNEL_DRIVER" env-default:"sim" env-description:"Tunnel backend [sim, wgquick]"`
	Interface   string        `yaml:"interface" env:"SHIELD_TUNNEL_INTERFACE" env-default:"shield0" env-description:"Tunnel interface name used by wg-quick"`
	WgQuickPath string        `yaml:"wg_quick_path" env:"SHIELD_WG_QUICK" env-default:"wg-quick" env-description:"Path to the wg-quick binary"`
	WgPath      string        `yaml:"wg_path" env:"SHIELD_WG" env-default:"wg" env-description:"Path to the wg binary"`
	SimDelay    time.Duration `yaml:"sim_connect_delay" env:"SHIELD_SIM_CONNECT_DELAY" env-default:"1s" env-description:"Connect delay of the simulated backend"`
}

type TelemetryConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval" env:"SHIELD_STATS_INTERVAL" env-default:"2s" env-description:"Counter sampling interval"`
	TickInterval  time.Duration `yaml:"tick_interval" env:"SHIELD_TICK_INTERVAL" env-default:"1s" env-description:"Connected time refresh interval"`
}

type ControllerConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay" env:"SHIELD_SETTLE_DELAY" env-default:"500ms" env-description:"Pause between teardown and reconnect"`
}

type CatalogConfig struct {
	Path string `yaml:"path" env:"SHIELD_CATALOG" env-description:"Optional TOML server catalog replacing the built-in one"`
}

var (
	once   = sync.Once{}
	cfg    = &Config{}
	errCfg error
)

// New loads the process configuration once; later calls return the cached result.
func New(configPath string, skipConfig bool) (*Config, error) {
	once.Do(func() {
		cfg, errCfg = Load(configPath, skipConfig)
	})

	return cfg, errCfg
}

func Load(configPath string, skipConfig bool) (*Config, error) {
	c := &Config{}

	var err error
	if skipConfig {
		err = cleanenv.ReadEnv(c)
	} else {
		err = cleanenv.ReadConfig(configPath, c)
	}
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Tunnel.Driver {
	case "sim", "wgquick":
	default:
		return fmt.Errorf("unknown tunnel driver %q", c.Tunnel.Driver)
	}

	if c.Telemetry.StatsInterval <= 0 || c.Telemetry.TickInterval <= 0 {
		return fmt.Errorf("telemetry intervals must be positive")
	}
	if c.Controller.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative")
	}
	return nil
}
