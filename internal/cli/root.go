package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewapps-dev/wfpack/internal/config"
	"github.com/reviewapps-dev/wfpack/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	logStream  string
	outputJSON bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wfpack",
		Short:         "Install WildFly and a JDK for a Java web app and deploy its WAR",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return logging.Init(cfg.Log.Level, cfg.Log.Format)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WFPACK_CONFIG"), "Path to config.toml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Diagnostic log format (text or json)")
	cmd.PersistentFlags().StringVar(&logStream, "log-stream", "", "Websocket URL that receives build output live")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newReleaseCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads --config and applies the logging flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logStream != "" {
		cfg.Log.StreamURL = logStream
	}
	return cfg, nil
}
