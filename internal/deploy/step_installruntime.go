package deploy

import (
	"context"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/install"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

type InstallRuntimeStep struct{}

func (s *InstallRuntimeStep) Name() string { return "install-runtime" }

func (s *InstallRuntimeStep) Reaches() build.State { return "" }

func (s *InstallRuntimeStep) Run(ctx context.Context, sc *StepContext) error {
	version := sc.Runtime.Resolved
	sc.Logger.Topic("Installing JDK %s", version)

	entry, _, err := sc.Cache.Fetch(ctx, versions.Runtime, version)
	if err != nil {
		return err
	}

	jdk, err := install.InstallRuntime(entry, sc.Path(sc.Config.Install.RuntimeDir))
	if err != nil {
		return err
	}
	sc.JDK = jdk
	return nil
}
