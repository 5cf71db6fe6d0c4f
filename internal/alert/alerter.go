package alert

import (
	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
)

// Dispatcher starts a notification action, reporting whether it was accepted.
type Dispatcher interface {
	Dispatch(cue string) bool
}

// Alerter runs a reading through the evaluator, the cooldown gate and the
// dispatcher. It is the only writer to the gate on the evaluation path.
type Alerter struct {
	eval *Evaluator
	gate *Gate
	disp Dispatcher

	// OnFire, when set, is called after an alert passes the gate. Used to
	// mirror fired alerts to UI observers.
	OnFire func(kind Kind, reading *models.Reading)
}

func NewAlerter(eval *Evaluator, gate *Gate, disp Dispatcher) *Alerter {
	return &Alerter{eval: eval, gate: gate, disp: disp}
}

// Process evaluates a single reading and fires its alert kind if one is active
// and not suppressed. Suppressed or busy attempts are dropped, never queued.
func (a *Alerter) Process(r *models.Reading) {
	kind, ok := a.eval.Evaluate(r.Kind, r.Value)
	if !ok {
		return
	}
	a.fire(kind, r)
}

// Fire pushes a non-evaluated kind (connectivity, startup) through the gate
// and dispatcher.
func (a *Alerter) Fire(kind Kind) {
	a.fire(kind, nil)
}

func (a *Alerter) fire(kind Kind, r *models.Reading) {
	log := logger.WithComponent("alerter")

	if !a.gate.TryFire(kind) {
		metrics.AlertsSuppressed.WithLabelValues(string(kind)).Inc()
		log.Debug().Str("kind", string(kind)).Msg("alert suppressed by cooldown")
		return
	}

	metrics.AlertsFired.WithLabelValues(string(kind)).Inc()

	evt := log.Info().Str("kind", string(kind)).Str("cue", kind.Cue())
	if r != nil && r.Value != nil {
		evt = evt.Float64("value", *r.Value)
	}
	evt.Msg("alert fired")

	a.disp.Dispatch(kind.Cue())

	if a.OnFire != nil {
		a.OnFire(kind, r)
	}
}

// Evaluator exposes the evaluator for display classification.
func (a *Alerter) Evaluator() *Evaluator {
	return a.eval
}

// Gate exposes the cooldown gate for status reporting.
func (a *Alerter) Gate() *Gate {
	return a.gate
}
