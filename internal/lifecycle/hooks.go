package lifecycle

import "context"

// Hook is a named shutdown step. Hooks in the same phase run in parallel; phases run in order.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}

// Phase orders shutdown hooks.
type Phase int

const (
	// PhaseIngress stops accepting updates and HTTP traffic.
	PhaseIngress Phase = iota
	// PhaseWorkers stops background jobs, sweepers and collectors.
	PhaseWorkers
	// PhaseStorage closes Redis and the database.
	PhaseStorage
)
