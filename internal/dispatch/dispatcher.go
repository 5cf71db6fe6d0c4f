// Package dispatch runs notification actions with single-flight semantics:
// at most one action in flight system-wide, busy attempts dropped.
package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil/internal/logger"
	"vigil/internal/metrics"
)

// DefaultTimeout bounds how long a single action may run.
const DefaultTimeout = 30 * time.Second

// Player resolves an opaque cue name into an actual notification action.
type Player interface {
	Play(ctx context.Context, cue string) error
}

// Dispatcher guarantees at most one action runs at a time. The guard is a
// non-blocking exclusive flag: an attempt while an action is in flight returns
// false immediately, it is never queued, retried, or blocked on. An overlapping
// or stale queued cue is worse than a missed one.
type Dispatcher struct {
	player  Player
	timeout time.Duration
	busy    atomic.Bool
	wg      sync.WaitGroup
}

func NewDispatcher(player Player, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{player: player, timeout: timeout}
}

// Dispatch starts the action on its own goroutine if no action is in flight.
// The guard is released on every exit path, including the action panicking;
// action failures are logged and never propagate to the caller.
func (d *Dispatcher) Dispatch(cue string) bool {
	log := logger.WithComponent("dispatcher")

	if !d.busy.CompareAndSwap(false, true) {
		metrics.DispatchSkipped.Inc()
		log.Info().Str("cue", cue).Msg("action skipped, another action in flight")
		return false
	}

	metrics.DispatchStarted.Inc()
	id := uuid.New().String()

	d.wg.Add(1)
	go func() {
		start := time.Now()
		defer d.wg.Done()
		defer d.busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("action_id", id).
					Str("cue", cue).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("action panic recovered")
				metrics.PanicsRecovered.WithLabelValues("dispatcher").Inc()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.player.Play(ctx, cue)
		duration := time.Since(start)
		metrics.ActionDuration.Observe(duration.Seconds())

		if err != nil {
			metrics.DispatchFailed.Inc()
			log.Error().
				Err(err).
				Str("action_id", id).
				Str("cue", cue).
				Dur("duration", duration).
				Msg("action failed")
			return
		}

		log.Debug().
			Str("action_id", id).
			Str("cue", cue).
			Dur("duration", duration).
			Msg("action completed")
	}()

	return true
}

// Busy reports whether an action is currently in flight.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// Wait blocks until any in-flight action has completed. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
