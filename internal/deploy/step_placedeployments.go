package deploy

import (
	"context"
	"path/filepath"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/war"
)

type PlaceDeploymentsStep struct{}

func (s *PlaceDeploymentsStep) Name() string { return "place-deployments" }

func (s *PlaceDeploymentsStep) Reaches() build.State { return build.StatePlaced }

func (s *PlaceDeploymentsStep) Run(ctx context.Context, sc *StepContext) error {
	sc.Logger.Topic("Deploying WAR file(s)")

	wars, err := war.Discover(sc.BuildDir, sc.Config.Deploy.WarGlobs)
	if err != nil {
		return err
	}

	sc.Deployments = sc.Deployments[:0]
	for _, w := range wars {
		if _, err := war.Place(w, sc.Installation); err != nil {
			return err
		}
		name := filepath.Base(w)
		sc.Logger.Info("%s", name)
		sc.Deployments = append(sc.Deployments, name)
	}

	return sc.Tracker.Update(func(r *build.Record) {
		r.Deployments = append([]string(nil), sc.Deployments...)
	})
}
