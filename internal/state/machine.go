package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StepFunc mutates the session for one incoming update.
// Returning an error discards every change made to the session.
type StepFunc func(ctx context.Context, session *Session) error

// StateMachine describes the operations supported by the FSM controller.
type StateMachine interface {
	// Current returns a snapshot of the user's session, idle when none is stored.
	Current(ctx context.Context, userID int64) (*Session, error)
	// Do runs fn under the user's lock and persists the resulting session.
	Do(ctx context.Context, userID int64, fn StepFunc) error
	// Reset force-clears the user's session.
	Reset(ctx context.Context, userID int64) error
	// Sessions returns every live session.
	Sessions(ctx context.Context) ([]*Session, error)
}

type machine struct {
	storage Storage
	locker  Locker
	log     *slog.Logger
}

// NewStateMachine creates a FSM controller using the provided storage and per-user locker.
// A nil locker falls back to an in-process one.
func NewStateMachine(storage Storage, locker Locker, log *slog.Logger) StateMachine {
	if log == nil {
		log = slog.Default()
	}
	if locker == nil {
		locker = NewLocalLocker(0)
	}

	return &machine{
		storage: storage,
		locker:  locker,
		log:     log,
	}
}

func (m *machine) Current(ctx context.Context, userID int64) (*Session, error) {
	return m.load(ctx, userID)
}

func (m *machine) Sessions(ctx context.Context) ([]*Session, error) {
	return m.storage.List(ctx)
}

func (m *machine) Do(ctx context.Context, userID int64, fn StepFunc) error {
	unlock, err := m.locker.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := m.load(ctx, userID)
	if err != nil {
		return err
	}

	next := current.Clone()
	if err := fn(ctx, next); err != nil {
		return err
	}
	next.UserID = userID

	if next.State != current.State {
		if !IsTransitionAllowed(current.State, next.State) {
			m.log.Warn("invalid state transition",
				slog.Int64("user_id", userID),
				slog.String("from", string(current.State)),
				slog.String("to", string(next.State)),
			)
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, next.State)
		}
		transitionRecorder(string(current.State), string(next.State))
	}

	if next.State == StateIdle {
		return m.storage.Delete(ctx, userID)
	}

	return m.storage.Save(ctx, next)
}

func (m *machine) Reset(ctx context.Context, userID int64) error {
	unlock, err := m.locker.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	return m.storage.Delete(ctx, userID)
}

func (m *machine) load(ctx context.Context, userID int64) (*Session, error) {
	session, err := m.storage.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return NewSession(userID), nil
		}
		return nil, err
	}
	if session == nil {
		return NewSession(userID), nil
	}

	return session, nil
}
