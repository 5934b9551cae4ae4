package state

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrStoreClosed is returned by Dispatch after Close
var ErrStoreClosed = errors.New("state store is closed")

type dispatchRequest struct {
	action Action
	reply  chan State
}

// Store owns the current State. All transitions go through a single channel
// served by one goroutine; readers get immutable snapshots.
type Store struct {
	actions chan dispatchRequest
	done    chan struct{}
	stopped chan struct{}
	current atomic.Pointer[State]
	closed  atomic.Bool
	logger  *zap.Logger
}

// NewStore starts a store holding initial
func NewStore(initial State, logger *zap.Logger) *Store {
	s := &Store{
		actions: make(chan dispatchRequest),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	s.current.Store(&initial)
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.actions:
			next := Reduce(*s.current.Load(), req.action)
			s.current.Store(&next)
			s.logger.Debug("Action applied",
				zap.String("action", Name(req.action)),
				zap.Int("books", len(next.Books)),
				zap.Bool("loading", next.IsLoading),
				zap.Bool("saving", next.IsSaving),
			)
			req.reply <- next
		case <-s.done:
			return
		}
	}
}

// Dispatch applies a and returns the resulting state
func (s *Store) Dispatch(ctx context.Context, a Action) (State, error) {
	req := dispatchRequest{action: a, reply: make(chan State, 1)}
	select {
	case s.actions <- req:
	case <-s.done:
		return State{}, ErrStoreClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	// The loop always replies once it has taken the request
	return <-req.reply, nil
}

// State returns the current snapshot
func (s *Store) State() State {
	return *s.current.Load()
}

// Close stops the update loop. It is safe to call more than once.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
		<-s.stopped
	}
}
