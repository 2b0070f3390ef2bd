package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// startupDigestWindow dedupes the boot-time digest across quick restarts.
const startupDigestWindow = 5 * time.Minute

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// EnqueueDigest schedules one pending digest outside the cron, e.g. right after boot.
	EnqueueDigest(ctx context.Context, limit int) error
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) EnqueueDigest(ctx context.Context, limit int) error {
	task, err := NewPendingDigestTask(limit)
	if err != nil {
		return err
	}

	info, err := m.Enqueue(ctx, task, asynq.Unique(startupDigestWindow))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			m.log.DebugContext(ctx, "jobs: digest already queued")
			return nil
		}
		return err
	}

	m.log.InfoContext(ctx, "jobs: digest enqueued", slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
