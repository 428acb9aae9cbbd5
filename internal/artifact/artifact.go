// Package artifact reports files produced by a build.
//
// Pipelines emit one [Event] per produced artifact. Listeners, such as a
// publisher uploading releases, subscribe to an [Emitter] and are invoked
// synchronously in subscription order.
package artifact

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/cruciblehq/cruxpack/internal/platform"
)

// One produced artifact.
type Event struct {
	File         string            // Absolute path of the artifact.
	ArtifactName string            // Optional name to publish the file under.
	Platform     platform.Platform // Platform that produced the artifact.
}

// Receives artifact events. Listeners may be called concurrently from
// different platform pipelines.
type Listener func(Event)

// Dispatches events to listeners. Safe for concurrent use.
type Emitter struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Creates a new [Emitter] with the given listeners.
func NewEmitter(listeners ...Listener) *Emitter {
	return &Emitter{listeners: slices.Clone(listeners)}
}

// Adds a listener.
func (e *Emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Sends an event to every listener.
func (e *Emitter) Emit(ev Event) {
	slog.Info("artifact created", "platform", ev.Platform.ConfigKey, "file", ev.File)

	e.mu.RLock()
	listeners := slices.Clone(e.listeners)
	e.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Listener that keeps every event it receives.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Records an event. Pass the method value to [NewEmitter] or
// [Emitter.Subscribe].
func (c *Collector) Listen(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Returns a copy of the received events in arrival order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// Returns the received files in arrival order.
func (c *Collector) Files() []string {
	events := c.Events()
	files := make([]string, len(events))
	for i, ev := range events {
		files[i] = ev.File
	}
	return files
}
