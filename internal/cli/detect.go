package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reviewapps-dev/wfpack/internal/sysprops"
	"github.com/reviewapps-dev/wfpack/internal/war"
)

var errNotDetected = errors.New("no WildFly app detected")

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect BUILD_DIR",
		Short: "Exit 0 and print WildFly when BUILD_DIR looks like a Java web app",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetect,
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	buildDir := args[0]

	for _, marker := range []string{"pom.xml", sysprops.FileName} {
		if _, err := os.Stat(filepath.Join(buildDir, marker)); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "WildFly")
			return nil
		}
	}
	if _, err := war.Discover(buildDir, cfg.Deploy.WarGlobs); err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "WildFly")
		return nil
	}
	return errNotDetected
}
