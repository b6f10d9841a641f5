// Package deploy runs the build steps that turn an app checkout into a
// WildFly deployment ready to start.
package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/logging"
)

type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// DefaultSteps is the full build, in order.
func DefaultSteps() []Step {
	return []Step{
		&ResolveVersionsStep{},
		&InstallRuntimeStep{},
		&FetchServerStep{},
		&InstallServerStep{},
		&ConfigureEnvStep{},
		&PlaceDeploymentsStep{},
		&SelectProcessesStep{},
	}
}

func (p *Pipeline) AddStep(s Step) {
	p.steps = append(p.steps, s)
}

// Run executes every step in order and stops at the first failure. The
// returned error carries the failing step's name as its stage.
func (p *Pipeline) Run(ctx context.Context, sc *StepContext) error {
	log := logging.Logger.WithField("build_id", sc.Tracker.ID())

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			return p.fail(sc, failure.WithStage(fmt.Errorf("build cancelled: %w", ctx.Err()), step.Name()))
		default:
		}

		log.WithField("stage", step.Name()).Debug("step started")
		if err := step.Run(ctx, sc); err != nil {
			return p.fail(sc, failure.WithStage(err, step.Name()))
		}

		if to := step.Reaches(); to != "" {
			if err := sc.Tracker.Advance(to); err != nil {
				return p.fail(sc, failure.WithStage(err, step.Name()))
			}
		}
	}

	sc.Logger.Topic("BUILD SUCCESS")
	log.WithFields(logrus.Fields{
		"runtime": sc.Runtime.Resolved, "server": sc.Server.Resolved,
	}).Info("build complete")
	return nil
}

func (p *Pipeline) fail(sc *StepContext, err error) error {
	sc.Logger.Error("%v", err)
	sc.Logger.Topic("BUILD FAILURE")

	if trackErr := sc.Tracker.Fail(err); trackErr != nil {
		logging.Logger.WithError(trackErr).Warn("record build failure")
	}
	logging.Logger.WithField("build_id", sc.Tracker.ID()).WithField("reason", failure.Reason(err)).Error(err)
	return err
}

func joinBuild(buildDir, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(buildDir, rel)
}
