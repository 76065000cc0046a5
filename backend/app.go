package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shieldvpn/internal/catalog"
	"shieldvpn/internal/config"
	"shieldvpn/internal/controller"
	"shieldvpn/internal/storage"
	"shieldvpn/internal/tunnel"

	"go.uber.org/zap"
)

const (
	configFile  = "app.toml"
	portableDir = "shieldvpn_portable"
)

var ErrNoServerSelected = errors.New("no server selected")

// App wires storage, catalog, tunnel backend and controller together. It is
// built once by the command being run and torn down with Shutdown.
type App struct {
	Config *Config

	Controller  *controller.Controller
	Catalog     *catalog.Catalog
	Settings    *storage.SettingsStore
	Credentials *storage.CredentialStore
	Backend     tunnel.Backend

	storage *storage.AppStorage
	kv      storage.KV
	log     *zap.SugaredLogger

	appVersionTag string
	portableMode  bool
	isFirstLaunch bool
}

func StartupApp(cfg *config.Config, log *zap.SugaredLogger, appVersionTag string) (*App, error) {
	baseDir := cfg.Storage.Dir
	portableMode := false
	if baseDir == "" {
		if p := checkPortablePath(); p != "" {
			baseDir, portableMode = p, true
		}
	}

	appStorage, err := storage.NewAppStorage(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &App{
		storage:       appStorage,
		log:           log,
		appVersionTag: appVersionTag,
		portableMode:  portableMode,
		Credentials:   storage.NewCredentialStore(),
	}
	a.readConfig()

	log.Infow("starting", "version", appVersionTag, "dir", appStorage.BaseDir(), "portable", portableMode)

	a.Catalog, err = catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load server catalog: %w", err)
	}

	a.kv, err = storage.OpenKV(cfg.Storage.Driver, appStorage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	a.Settings = storage.NewSettingsStore(a.kv, log)

	a.Backend, err = newBackend(cfg.Tunnel, appStorage)
	if err != nil {
		_ = a.kv.Close()
		return nil, err
	}

	a.Controller, err = controller.New(controller.Deps{
		Backend: a.Backend,
		Store:   a.Settings,
		Servers: a.Catalog,
		Logger:  log,
	}, controller.Options{
		StatsInterval: cfg.Telemetry.StatsInterval,
		TickInterval:  cfg.Telemetry.TickInterval,
		SettleDelay:   cfg.Controller.SettleDelay,
	})
	if err != nil {
		_ = a.kv.Close()
		return nil, err
	}

	return a, nil
}

func newBackend(cfg config.TunnelConfig, s *storage.AppStorage) (tunnel.Backend, error) {
	switch cfg.Driver {
	case "", "sim":
		return tunnel.NewSimulator(cfg.SimDelay), nil
	case "wgquick":
		return tunnel.NewWgQuick(tunnel.WgQuickOptions{
			Interface:   cfg.Interface,
			Dir:         s.TunnelPath(),
			WgQuickPath: cfg.WgQuickPath,
			WgPath:      cfg.WgPath,
		}), nil
	default:
		return nil, fmt.Errorf("unknown tunnel driver %q", cfg.Driver)
	}
}

// AutoConnect connects on launch when the stored settings ask for it and a
// server is selected. It reports whether a connect was issued.
func (a *App) AutoConnect(ctx context.Context) (bool, error) {
	if err := a.Controller.WaitLoaded(ctx); err != nil {
		return false, err
	}

	snap := a.Controller.Snapshot()
	if !snap.Settings.AutoConnect {
		return false, nil
	}
	if snap.SelectedServer == nil {
		a.log.Infow("auto-connect enabled but no server selected")
		return false, ErrNoServerSelected
	}

	a.log.Infow("auto-connecting", "server", snap.SelectedServer.ID)
	return true, a.Controller.Connect(ctx)
}

func (a *App) IsFirstLaunch() bool {
	return a.isFirstLaunch
}

func (a *App) IsPortableMode() bool {
	return a.portableMode
}

func (a *App) Storage() *storage.AppStorage {
	return a.storage
}

// Shutdown closes the controller before the store it writes to.
func (a *App) Shutdown() {
	if err := a.Controller.Close(); err != nil {
		a.log.Warnw("controller close", "error", err)
	}
	if err := a.kv.Close(); err != nil {
		a.log.Warnw("store close", "error", err)
	}

	a.Config.Application.LastLaunchedVersion = a.appVersionTag
	a.Config.Application.LaunchCount++
	a.SaveConfigFile()
}

func (a *App) SaveConfigFile() {
	if err := a.Config.WriteConfigFile(a.configFilePath(), a.storage.WriteFileAtomic); err != nil {
		a.log.Warnw("couldn't write app config", "error", err)
	}
}

func (a *App) readConfig() {
	cfgPath := a.configFilePath()
	a.isFirstLaunch = !a.storage.FileExists(cfgPath)

	cfg, err := ReadConfigFile(cfgPath)
	if err != nil {
		cfg = DefaultConfig()
		if !a.isFirstLaunch {
			backupPath := filepath.Join(a.storage.ConfigPath(), configFile+".bak")
			a.log.Warnw("app config may be malformed, copying aside", "error", err, "backup", backupPath)
			_ = a.storage.CopyFile(cfgPath, backupPath)
		}
	}
	a.Config = cfg
}

func (a *App) configFilePath() string {
	return filepath.Join(a.storage.ConfigPath(), configFile)
}

func checkPortablePath() string {
	if p, err := os.Executable(); err == nil {
		pdirPath := filepath.Join(filepath.Dir(p), portableDir)
		if s, err := os.Stat(pdirPath); err == nil && s.IsDir() {
			return pdirPath
		}
	}
	return ""
}
