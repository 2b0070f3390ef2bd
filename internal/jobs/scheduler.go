package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Start() error
	Shutdown()
}

// ScheduleConfig describes the periodic digest.
type ScheduleConfig struct {
	DigestCron  string
	DigestLimit int
	Location    *time.Location
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cfg            ScheduleConfig
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, cfg ScheduleConfig, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DigestCron == "" {
		cfg.DigestCron = DefaultDigestCron
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: cfg.Location}),
		cfg:            cfg,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewPendingDigestTask(s.cfg.DigestLimit)
	if err != nil {
		return err
	}

	entryID, err := s.asynqScheduler.Register(s.cfg.DigestCron, task)
	if err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered pending digest task",
		slog.String("cron", s.cfg.DigestCron),
		slog.String("entry_id", entryID),
	)

	return nil
}

// Start runs the cron loop in the background.
func (s *scheduler) Start() error {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	if err := s.asynqScheduler.Start(); err != nil {
		s.log.ErrorContext(context.Background(), "scheduler: start failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")

	s.asynqScheduler.Shutdown()
}
