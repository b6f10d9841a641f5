package deploy

import (
	"context"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/sysprops"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

type ResolveVersionsStep struct{}

func (s *ResolveVersionsStep) Name() string { return "resolve-versions" }

func (s *ResolveVersionsStep) Reaches() build.State { return build.StateResolved }

func (s *ResolveVersionsStep) Run(ctx context.Context, sc *StepContext) error {
	declared, err := sysprops.Read(sc.BuildDir)
	if err != nil {
		return err
	}

	d := sc.Config.Defaults
	runtime, server, err := versions.Resolve(declared.RuntimeVersion, declared.ServerVersion, versions.Defaults{
		Runtime:           d.RuntimeVersion,
		Server:            d.ServerVersion,
		RuntimeConstraint: d.RuntimeConstraint,
		ServerConstraint:  d.ServerConstraint,
	})
	if err != nil {
		return err
	}
	sc.Runtime = runtime
	sc.Server = server

	if server.Defaulted() {
		sc.Logger.Info("No %s set in %s, using WildFly %s", sysprops.ServerKey, sysprops.FileName, server.Resolved)
	}

	return sc.Tracker.Update(func(r *build.Record) {
		r.RuntimeVersion = runtime.Resolved
		r.ServerVersion = server.Resolved
	})
}
