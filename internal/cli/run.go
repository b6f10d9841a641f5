package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reviewapps-dev/wfpack/internal/deploy"
	"github.com/reviewapps-dev/wfpack/internal/env"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/process"
	"github.com/reviewapps-dev/wfpack/internal/procfile"
)

var (
	runBuildDir string
	runPort     int
	runGrace    time.Duration
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [PROCESS]",
		Short: "Start a process type from a compiled build dir (default web)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProcess,
	}
	cmd.Flags().StringVar(&runBuildDir, "build-dir", ".", "Compiled build dir")
	cmd.Flags().IntVar(&runPort, "port", 8080, "PORT for the process when the environment sets none")
	cmd.Flags().DurationVar(&runGrace, "grace", 10*time.Second, "Time to wait after SIGTERM before killing")
	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	buildDir, err := absDir(runBuildDir)
	if err != nil {
		return err
	}

	name := procfile.Web
	if len(args) == 1 {
		name = args[0]
	}

	types, err := processTypes(cfg.Install.ServerDir, buildDir)
	if err != nil {
		return err
	}
	command, ok := types[name]
	if !ok {
		return fmt.Errorf("no process type %q; have %v", name, types.Names())
	}

	vars, err := env.ReadFile(deploy.EnvPath(cfg, buildDir))
	if err != nil {
		return fmt.Errorf("build dir has not been compiled: %w", err)
	}
	// Process types refer to the app as $HOME, as they would in a container.
	vars.Set("HOME", buildDir)
	if _, ok := vars.Get("PORT"); !ok && os.Getenv("PORT") == "" {
		vars.Set("PORT", strconv.Itoa(runPort))
	}

	c := process.Command(buildDir, command, vars)
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()

	info, err := process.Start(c)
	if err != nil {
		return err
	}
	logging.Logger.WithFields(logrus.Fields{"process": name, "pid": info.PID}).Info("process started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-info.Done():
		return exitError(name, info.Err())
	case sig := <-sigs:
		logging.Logger.WithField("signal", sig).Info("stopping process")
		return process.Stop(info, runGrace)
	}
}

func exitError(name string, err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return fmt.Errorf("process %s exited with status %d", name, ee.ExitCode())
	}
	return fmt.Errorf("process %s: %w", name, err)
}
