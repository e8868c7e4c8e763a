package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler triggers price runs on a cron spec. Overlapping triggers are
// harmless: the runner serializes runs internally.
type Scheduler struct {
	cron *cron.Cron
	spec string
	run  func(ctx context.Context)
}

func New(spec string, run func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		spec: spec,
		run:  run,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		log.Debug().Str("spec", s.spec).Msg("scheduled price run triggered")
		s.run(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("spec", s.spec).Msg("scheduler started")
	return nil
}

// Stop halts scheduling and waits for an in-flight trigger to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}
