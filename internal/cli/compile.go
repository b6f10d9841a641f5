package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reviewapps-dev/wfpack/internal/deploy"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/logstream"
)

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile BUILD_DIR CACHE_DIR [ENV_DIR]",
		Short: "Install the JDK and WildFly, deploy the WAR and declare process types",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runCompile,
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := deploy.Options{
		BuildDir: args[0],
		CacheDir: args[1],
		Config:   cfg,
		Out:      cmd.OutOrStdout(),
		BuildID:  uuid.NewString(),
	}
	if len(args) > 2 {
		opts.EnvDir = args[2]
	}

	if cfg.Log.StreamURL != "" {
		hub := logstream.NewHub()
		sink, err := logstream.Dial(ctx, cfg.Log.StreamURL, hub, opts.BuildID)
		if err != nil {
			// Live streaming is best effort; the build output still goes to stdout.
			logging.Logger.WithError(err).Warn("log stream unavailable")
		} else {
			opts.Hub = hub
			// Compile closes the build on the hub, which lets the sink drain.
			defer sink.Close()
		}
	}

	_, err = deploy.Compile(ctx, opts)
	return err
}

// contextOrBackground keeps commands usable when executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
