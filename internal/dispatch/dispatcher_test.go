package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vigil/internal/dispatch"
)

type blockingPlayer struct {
	release chan struct{}
	plays   atomic.Int32
}

func (p *blockingPlayer) Play(ctx context.Context, cue string) error {
	p.plays.Add(1)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type funcPlayer func(ctx context.Context, cue string) error

func (f funcPlayer) Play(ctx context.Context, cue string) error { return f(ctx, cue) }

func TestDispatchSingleFlight(t *testing.T) {
	player := &blockingPlayer{release: make(chan struct{})}
	d := dispatch.NewDispatcher(player, time.Second)

	const n = 8
	var accepted atomic.Int32
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			if d.Dispatch("alert") {
				accepted.Add(1)
			}
		}()
	}
	start.Done()
	done.Wait()

	if got := accepted.Load(); got != 1 {
		t.Errorf("accepted = %d, want exactly 1", got)
	}

	close(player.release)
	d.Wait()

	if got := player.plays.Load(); got != 1 {
		t.Errorf("player invoked %d times, want 1", got)
	}
}

func TestDispatchReleasesGuardAfterCompletion(t *testing.T) {
	player := funcPlayer(func(ctx context.Context, cue string) error { return nil })
	d := dispatch.NewDispatcher(player, time.Second)

	if !d.Dispatch("first") {
		t.Fatal("first dispatch should be accepted")
	}
	d.Wait()

	if d.Busy() {
		t.Error("guard still held after action completed")
	}
	if !d.Dispatch("second") {
		t.Error("dispatch after completion should be accepted")
	}
	d.Wait()
}

func TestDispatchReleasesGuardAfterPanic(t *testing.T) {
	player := funcPlayer(func(ctx context.Context, cue string) error {
		panic("player exploded")
	})
	d := dispatch.NewDispatcher(player, time.Second)

	if !d.Dispatch("boom") {
		t.Fatal("dispatch should be accepted")
	}
	d.Wait()

	if d.Busy() {
		t.Error("guard still held after action panicked")
	}
	if !d.Dispatch("next") {
		t.Error("dispatch after recovered panic should be accepted")
	}
	d.Wait()
}

func TestDispatchFailureDoesNotPropagate(t *testing.T) {
	player := funcPlayer(func(ctx context.Context, cue string) error {
		return errors.New("device unavailable")
	})
	d := dispatch.NewDispatcher(player, time.Second)

	if !d.Dispatch("cue") {
		t.Fatal("dispatch should be accepted even when the action will fail")
	}
	d.Wait()

	if d.Busy() {
		t.Error("guard still held after failed action")
	}
}

func TestDispatchTimeoutCancelsAction(t *testing.T) {
	done := make(chan error, 1)
	player := funcPlayer(func(ctx context.Context, cue string) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	d := dispatch.NewDispatcher(player, 20*time.Millisecond)

	d.Dispatch("slow")
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v, want deadline exceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("action was never cancelled")
	}
	d.Wait()
}
