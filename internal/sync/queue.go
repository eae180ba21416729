package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/storefront-kit/cartengine/pkg/config"
)

// Action is one cart-affecting operation deferred while offline.
type Action struct {
	ID         string
	Kind       string
	EnqueuedAt time.Time

	attempts int
	run      func(context.Context) error
}

// ActionQueue is the bounded FIFO of actions awaiting replay. When the
// queue is full the oldest action is evicted to admit the newest.
type ActionQueue struct {
	mu         gosync.Mutex
	maxSize    int
	maxRetries int
	actions    []*Action
}

// NewActionQueue builds a queue with the configured bounds.
func NewActionQueue(cfg config.QueueConfig) *ActionQueue {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 50
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ActionQueue{maxSize: maxSize, maxRetries: maxRetries}
}

// Enqueue appends an action, evicting the oldest entry when full.
func (q *ActionQueue) Enqueue(kind string, run func(context.Context) error) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) >= q.maxSize {
		q.actions = q.actions[1:]
	}
	action := &Action{
		ID:         uuid.NewString(),
		Kind:       kind,
		EnqueuedAt: time.Now(),
		run:        run,
	}
	q.actions = append(q.actions, action)
	return action.ID
}

// Len returns the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Replay attempts every queued action in FIFO order. A failing action
// never blocks the ones behind it: it is retained for the next replay
// until its attempt count reaches the retry ceiling, then dropped. The
// returned error aggregates every failure seen during this pass.
func (q *ActionQueue) Replay(ctx context.Context) error {
	q.mu.Lock()
	pending := q.actions
	q.actions = nil
	q.mu.Unlock()

	var errs error
	var retained []*Action
	for _, action := range pending {
		if err := ctx.Err(); err != nil {
			retained = append(retained, action)
			continue
		}
		action.attempts++
		if err := action.run(ctx); err != nil {
			wrapped := fmt.Errorf("replay %s (%s, attempt %d): %w", action.Kind, action.ID, action.attempts, err)
			errs = multierr.Append(errs, wrapped)
			if action.attempts < q.maxRetries {
				retained = append(retained, action)
			}
		}
	}

	if len(retained) > 0 {
		q.mu.Lock()
		// Retained actions go back to the front so ordering survives
		// actions enqueued during the replay.
		q.actions = append(retained, q.actions...)
		q.mu.Unlock()
	}
	return errs
}
