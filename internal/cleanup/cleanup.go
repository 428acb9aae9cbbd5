// Package cleanup collects teardown actions registered during a build.
//
// Components that create temporary resources (keychains, downloaded
// certificates, scratch directories) register a [Task] on the shared
// [Registry] they are handed at construction. Only the build driver drains
// the registry, once, after all primary work has settled.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Zero-argument teardown action.
type Task func(ctx context.Context) error

type entry struct {
	name string
	task Task
}

// Append-only collection of teardown actions. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	drained bool
}

// Creates an empty [Registry].
func New() *Registry {
	return &Registry{}
}

// Registers a named teardown action.
//
// Tasks added after [Registry.Drain] are run immediately, so a late
// registration never leaks a resource.
func (r *Registry) Add(name string, task Task) {
	r.mu.Lock()
	if r.drained {
		r.mu.Unlock()
		slog.Debug("cleanup registered after drain, running now", "task", name)
		if err := task(context.Background()); err != nil {
			slog.Warn("cleanup failed", "task", name, "error", err)
		}
		return
	}
	r.entries = append(r.entries, entry{name: name, task: task})
	r.mu.Unlock()
}

// Returns the number of pending tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Runs every registered task concurrently and waits for all of them.
//
// Each task runs exactly once. All failures are collected into an
// [AggregateError]; a failing task does not prevent the others from running.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.drained = true
	r.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	slog.Debug("running cleanup tasks", "count", len(entries))

	errs := make([]error, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.task(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", e.name, err)
			}
		}()
	}
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &AggregateError{Errs: failed}
}

// One or more teardown actions failed.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d cleanup task(s) failed: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errs
}
