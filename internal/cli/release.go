package cli

import (
	"github.com/spf13/cobra"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/deploy"
	"github.com/reviewapps-dev/wfpack/internal/install"
	"github.com/reviewapps-dev/wfpack/internal/procfile"
)

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release BUILD_DIR",
		Short: "Print the default process types as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}
}

func runRelease(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	buildDir, err := absDir(args[0])
	if err != nil {
		return err
	}

	types, err := processTypes(cfg.Install.ServerDir, buildDir)
	if err != nil {
		return err
	}

	// A finished build knows its process types even when no Procfile was kept.
	if rec, err := build.Load(deploy.RecordPath(cfg, buildDir)); err == nil && rec.Deployable() {
		for name, command := range rec.Processes {
			if _, ok := types[name]; !ok {
				types[name] = command
			}
		}
	}

	out, err := procfile.Release(types)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// processTypes reads the Procfile and fills in web from the installed server.
func processTypes(serverDir, buildDir string) (procfile.Types, error) {
	declared, err := procfile.Parse(joinPath(buildDir, procfile.FileName))
	if err != nil {
		return nil, err
	}

	serverHome := joinPath(buildDir, serverDir)
	inst, err := install.LoadServer(serverHome)
	if err != nil {
		inst = install.Installation{HomeDir: serverHome}
	}
	types, _ := procfile.Select(declared, inst, buildDir)
	return types, nil
}
