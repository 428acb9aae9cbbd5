package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var errQueueDrained = errors.New("queue already drained")

// Deferred unit of work producing distributables.
type Task struct {
	Name string                          // Short description, used in logs and errors.
	Run  func(ctx context.Context) error // Work to perform. Not started until the queue runs.
}

// Append-only collection of deferred tasks.
//
// Pipelines push tasks while packaging; the driver runs them all once every
// platform has been packaged. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	tasks   []Task
	drained bool
}

// Creates an empty [Queue].
func NewQueue() *Queue {
	return &Queue{}
}

// Appends a task. Tasks pushed after [Queue.Run] started are never run.
func (q *Queue) Push(name string, run func(ctx context.Context) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.drained {
		slog.Warn("task queued after drain, ignoring", "task", name)
		return
	}
	q.tasks = append(q.tasks, Task{Name: name, Run: run})
}

// Returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Runs every queued task concurrently and waits for all of them.
//
// A failing task does not cancel its siblings. The first error is returned
// once all tasks have settled. A queue runs at most once.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.drained {
		q.mu.Unlock()
		return errQueueDrained
	}
	q.drained = true
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			slog.Debug("running deferred task", "task", t.Name)
			if err := t.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
