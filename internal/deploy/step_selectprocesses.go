package deploy

import (
	"context"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/procfile"
)

type SelectProcessesStep struct{}

func (s *SelectProcessesStep) Name() string { return "select-processes" }

func (s *SelectProcessesStep) Reaches() build.State { return build.StateProcessReady }

func (s *SelectProcessesStep) Run(ctx context.Context, sc *StepContext) error {
	sc.Logger.Topic("Creating process configuration")

	path := sc.Path(procfile.FileName)
	declared, err := procfile.Parse(path)
	if err != nil {
		return err
	}

	selected, synthesized := procfile.Select(declared, sc.Installation, sc.BuildDir)
	if synthesized {
		sc.Logger.Info("Adding process type '%s'", procfile.Web)
		if err := procfile.Write(path, selected); err != nil {
			return err
		}
	} else {
		sc.Logger.Info("Using existing process type '%s' in Procfile", procfile.Web)
	}
	sc.Processes = selected
	sc.SynthesizedWeb = synthesized

	return sc.Tracker.Update(func(r *build.Record) {
		r.Processes = map[string]string(selected)
	})
}
