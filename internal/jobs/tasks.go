// Package jobs runs periodic background work on asynq.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypePendingDigest = "notify:digest"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const (
	DefaultDigestCron  = "*/30 * * * *"
	DefaultDigestLimit = 5
	digestTimeout      = time.Minute
)

// Queues weights the asynq queues served by the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// PendingDigestPayload bounds how many payments one digest lists.
type PendingDigestPayload struct {
	Limit int `json:"limit"`
}

// NewPendingDigestTask builds the reminder task listing pending payments to admins.
func NewPendingDigestTask(limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = DefaultDigestLimit
	}

	payload, err := json.Marshal(PendingDigestPayload{Limit: limit})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypePendingDigest, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(1),
		asynq.Timeout(digestTimeout),
	), nil
}
