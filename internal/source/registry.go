// Package source contains the adapters that produce sensor documents: the
// bus subscriber and the polling file and store readers. Each adapter owns a
// pipeline (differ, observer fan-out, alert path) and runs on its own goroutine.
package source

import (
	"runtime/debug"
	"sync"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// Observer receives a change notification from a source adapter. Observers
// must be idempotent and tolerant of out-of-order delivery between distinct
// sources; within one source, documents arrive in order.
type Observer func(source string, doc models.Document)

// Registry is the per-adapter list of observers. Fan-out follows insertion
// order, and each observer is isolated: one panicking observer never blocks
// delivery to the others.
type Registry struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe appends an observer to the fan-out list.
func (r *Registry) Subscribe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Notify delivers the document to every registered observer.
func (r *Registry) Notify(source string, doc models.Document) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()

	for _, fn := range observers {
		notifyOne(fn, source, doc)
	}
}

func notifyOne(fn Observer, source string, doc models.Document) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObserverErrors.WithLabelValues(source).Inc()
			metrics.PanicsRecovered.WithLabelValues("observer").Inc()
			log := logger.WithSource(source)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("observer panic recovered")
		}
	}()
	fn(source, doc)
}
