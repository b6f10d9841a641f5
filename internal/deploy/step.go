package deploy

import (
	"context"

	"github.com/reviewapps-dev/wfpack/internal/artifact"
	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/config"
	"github.com/reviewapps-dev/wfpack/internal/env"
	"github.com/reviewapps-dev/wfpack/internal/install"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/procfile"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

type Step interface {
	Name() string
	// Reaches is the build state entered once Run succeeds, or "" when the
	// step does not move the build forward on its own.
	Reaches() build.State
	Run(ctx context.Context, sc *StepContext) error
}

type StepContext struct {
	Config  *config.Config
	Logger  *logging.BuildLogger
	Tracker *build.Tracker
	Cache   *artifact.Cache

	BuildDir string
	EnvDir   string

	// Enriched during pipeline
	Runtime      versions.Spec
	Server       versions.Spec
	ServerEntry  artifact.Entry
	JDK          install.RuntimeInstallation
	Installation install.Installation
	Env          *env.Map
	Deployments  []string

	// Process declarations: name → command. "web" is the primary process.
	// Populated from the Procfile or defaulted to the server's standalone.sh.
	Processes procfile.Types
	// SynthesizedWeb is true when no Procfile declared web.
	SynthesizedWeb bool
}

// Path resolves a path relative to the build dir.
func (sc *StepContext) Path(rel string) string {
	return joinBuild(sc.BuildDir, rel)
}
