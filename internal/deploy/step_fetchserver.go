package deploy

import (
	"context"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

type FetchServerStep struct{}

func (s *FetchServerStep) Name() string { return "fetch-server" }

func (s *FetchServerStep) Reaches() build.State { return build.StateCached }

func (s *FetchServerStep) Run(ctx context.Context, sc *StepContext) error {
	version := sc.Server.Resolved

	if _, ok := sc.Cache.Lookup(versions.Server, version); ok {
		sc.Logger.Topic("Using cached WildFly %s", version)
	} else {
		sc.Logger.Topic("Downloading WildFly %s to cache", version)
	}

	entry, _, err := sc.Cache.Fetch(ctx, versions.Server, version)
	if err != nil {
		return err
	}
	sc.ServerEntry = entry
	return nil
}
