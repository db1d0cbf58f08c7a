package framework

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CleanupFunc deletes one provisioned resource
type CleanupFunc func(ctx context.Context) error

type cleanupAction struct {
	name string
	fn   CleanupFunc
}

// CleanupStack records deletions as resources are provisioned and runs them
// last-in first-out. Every action is attempted even when an earlier one fails,
// and a resource that is already gone counts as deleted.
type CleanupStack struct {
	mu      sync.Mutex
	logger  *slog.Logger
	actions []cleanupAction
}

// NewCleanupStack creates an empty cleanup stack
func NewCleanupStack(logger *slog.Logger) *CleanupStack {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupStack{logger: logger}
}

// Push registers the deletion of a resource that was just provisioned
func (s *CleanupStack) Push(name string, fn CleanupFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, cleanupAction{name: name, fn: fn})
}

// Len returns the number of pending actions
func (s *CleanupStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Pending returns the names of pending actions in the order they would run
func (s *CleanupStack) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.actions))
	for i := len(s.actions) - 1; i >= 0; i-- {
		names = append(names, s.actions[i].name)
	}
	return names
}

// Run executes all pending actions in reverse order. It returns a *CleanupError
// joining every failure, or nil. Running an already drained stack is a no-op.
func (s *CleanupStack) Run(ctx context.Context) error {
	s.mu.Lock()
	actions := s.actions
	s.actions = nil
	s.mu.Unlock()

	if len(actions) == 0 {
		return nil
	}

	s.logger.Info("starting cleanup", "actions", len(actions))

	var errs []error
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		start := time.Now()

		err := a.fn(ctx)
		switch {
		case err == nil:
			s.logger.Debug("cleanup action done", "action", a.name, "duration", time.Since(start))
		case IsNotFound(err):
			s.logger.Debug("resource already deleted", "action", a.name)
		default:
			s.logger.Warn("cleanup action failed", "action", a.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
		}
	}

	if len(errs) > 0 {
		return NewCleanupError("scenario", errs...)
	}

	s.logger.Info("cleanup completed")
	return nil
}
