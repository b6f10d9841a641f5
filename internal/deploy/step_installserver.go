package deploy

import (
	"context"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/install"
)

type InstallServerStep struct{}

func (s *InstallServerStep) Name() string { return "install-server" }

func (s *InstallServerStep) Reaches() build.State { return build.StateInstalled }

func (s *InstallServerStep) Run(ctx context.Context, sc *StepContext) error {
	sc.Logger.Topic("Installing WildFly %s", sc.Server.Resolved)

	inst, err := install.InstallServer(sc.ServerEntry, sc.Path(sc.Config.Install.ServerDir))
	if err != nil {
		return err
	}
	sc.Installation = inst
	return nil
}
