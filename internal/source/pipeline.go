package source

import (
	"vigil/internal/metrics"
	"vigil/internal/models"
	"vigil/internal/snapshot"
)

// AlertSink receives readings for threshold evaluation.
type AlertSink interface {
	Process(r *models.Reading)
}

// Pipeline is the shared ingestion path behind every adapter:
// differ, then observer fan-out and alert evaluation on change.
type Pipeline struct {
	name      string
	snap      *snapshot.Store
	observers *Registry
	alerts    AlertSink
}

func NewPipeline(name string, alerts AlertSink) *Pipeline {
	return &Pipeline{
		name:      name,
		snap:      snapshot.NewStore(),
		observers: NewRegistry(),
		alerts:    alerts,
	}
}

// Name returns the adapter name this pipeline serves.
func (p *Pipeline) Name() string {
	return p.name
}

// Subscribe registers an observer for this adapter's change notifications.
func (p *Pipeline) Subscribe(fn Observer) {
	p.observers.Subscribe(fn)
}

// Snapshot returns the last-accepted document.
func (p *Pipeline) Snapshot() models.Document {
	return p.snap.Last()
}

// PublishDocument runs a full snapshot through the differ. On change it fans
// the whole document out and evaluates every reading; an unchanged document
// short-circuits, so neither observers nor the evaluator run on idle sensors.
func (p *Pipeline) PublishDocument(doc models.Document) bool {
	if !p.snap.Observe(doc) {
		metrics.DocumentsTotal.WithLabelValues(p.name, "unchanged").Inc()
		return false
	}
	metrics.DocumentsTotal.WithLabelValues(p.name, "changed").Inc()

	p.observers.Notify(p.name, doc)
	for _, r := range doc {
		p.alerts.Process(r)
	}
	return true
}

// PublishReading runs a partially updated snapshot through the differ. On
// change only the updated reading fans out and is evaluated; doc is the full
// running document it belongs to.
func (p *Pipeline) PublishReading(doc models.Document, r *models.Reading) bool {
	if !p.snap.Observe(doc) {
		metrics.DocumentsTotal.WithLabelValues(p.name, "unchanged").Inc()
		return false
	}
	metrics.DocumentsTotal.WithLabelValues(p.name, "changed").Inc()

	p.observers.Notify(p.name, models.Document{r.Kind: r})
	p.alerts.Process(r)
	return true
}
