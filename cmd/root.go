package cmd

import (
	"fmt"
	"os"

	"shieldvpn/backend"
	"shieldvpn/internal/config"
	logg "shieldvpn/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath = "config.yml"
	skipConfig = false
)

// rootCmd represents the base command when called without any subcommands.
// Subcommand errors are printed to stderr by cobra and exit non-zero.
var rootCmd = &cobra.Command{
	Use:     "shieldvpn",
	Short:   "ShieldVPN client.",
	Long:    "ShieldVPN is a personal VPN client: pick a server, connect, and watch the tunnel's live throughput.",
	Version: version,

	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// resolveConfig or exit with error
func resolveConfig() *config.Config {
	cfg, err := config.New(configPath, skipConfig)
	if err != nil {
		fmt.Printf("unable to initialize config: %s\n", err.Error())
		os.Exit(1)
	}

	if skipConfig {
		fmt.Println("Skipped file-based configuration, using only ENV")
	}

	return cfg
}

// setupLogging installs the zap globals and aligns the tunnel package's
// logrus output with them.
func setupLogging(cfg *config.Config) *zap.SugaredLogger {
	if cfg.Debug {
		cfg.Logger.Level = "debug"
	}
	logger := logg.New(cfg.Logger)
	zap.ReplaceGlobals(logger.Desugar())

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	return logger
}

// startApp resolves config and logging and starts the application, or
// exits with an error.
func startApp() *backend.App {
	cfg := resolveConfig()
	logger := setupLogging(cfg)

	app, err := backend.StartupApp(cfg, logger, version)
	if err != nil {
		zap.S().Errorw("couldn't start shieldvpn", "error", err)
		os.Exit(1)
	}
	return app
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to yml config")
	rootCmd.PersistentFlags().BoolVar(&skipConfig, "skip-config", false, "skips config and uses ENV only")
}
