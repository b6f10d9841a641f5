package deploy

import (
	"context"
	"path/filepath"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/env"
	"github.com/reviewapps-dev/wfpack/internal/failure"
)

const (
	ProfileScript = "wildfly.sh"
	EnvFile       = "env"
)

type ConfigureEnvStep struct{}

func (s *ConfigureEnvStep) Name() string { return "configure-env" }

func (s *ConfigureEnvStep) Reaches() build.State { return build.StateConfigured }

func (s *ConfigureEnvStep) Run(ctx context.Context, sc *StepContext) error {
	overrides, err := env.ReadDir(sc.EnvDir)
	if err != nil {
		return failure.Configuration("%v", err)
	}

	var opts []env.Option
	if sc.JDK.HomeDir != "" {
		opts = append(opts, env.WithRuntime(sc.JDK))
	}
	sc.Env = env.Configure(sc.Installation, overrides, opts...)

	profile := filepath.Join(sc.Path(sc.Config.Install.ProfileDir), ProfileScript)
	if err := env.WriteProfile(profile, sc.Env, sc.BuildDir); err != nil {
		return failure.Configuration("%v", err)
	}
	if err := env.WriteFile(filepath.Join(sc.Path(sc.Config.Install.StateDir), EnvFile), sc.Env); err != nil {
		return failure.Configuration("%v", err)
	}
	return nil
}
