// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"

	"fjacquet/sms-ledger/internal/config"
	"fjacquet/sms-ledger/internal/container"
	"fjacquet/sms-ledger/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// AppConfig is the configuration loaded before any subcommand runs
	AppConfig *config.Config

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "smsledger",
		Short: "Ingest MPESA SMS notifications into a transaction ledger.",
		Long: `smsledger receives SMS messages from an SMS gateway, by webhook or by polling,
stores every message once and turns MPESA notifications into structured transactions.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	// Persistent flags. ConfigFile falls back to $SMSLEDGER_CONFIG.
	ConfigFile string
	LogLevel   string
	LogFormat  string
)

// ConfigFileEnv names the variable read when --config is not given.
const ConfigFileEnv = "SMSLEDGER_CONFIG"

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Config file (default: ./config.yaml, .smsledger/ or $HOME/.smsledger/)")
	Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Override the configured log level")
	Cmd.PersistentFlags().StringVar(&LogFormat, "log-format", "", "Override the configured log format (text or json)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	config.LoadEnv(Log)

	file := ConfigFile
	if file == "" {
		file = config.GetEnv(ConfigFileEnv, "")
	}
	cfg, err := config.InitializeConfigFromFile(file)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	if LogFormat != "" {
		cfg.Log.Format = LogFormat
	}

	AppConfig = cfg
	Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// NewContainer wires the application from the loaded configuration.
func NewContainer(ctx context.Context) (*container.Container, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return container.NewContainerWithLogger(ctx, AppConfig, Log)
}

// Close releases the container and logs a failure instead of returning it.
func Close(c *container.Container) {
	if err := c.Close(); err != nil {
		Log.WithError(err).Warn("Failed to close container")
	}
}
