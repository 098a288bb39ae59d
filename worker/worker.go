// Package worker holds the background loops that run beside the api
// server.
package worker

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
)

// Worker is a background loop bound to a context.
type Worker interface {
	Run(ctx context.Context) error
}

// TickWorker reruns a task on a fixed interval until the context ends.
type TickWorker struct {
	Delay time.Duration
	Clock clock.Clock
}

// StartTick runs fn once per tick. A failing tick is the tick's problem;
// the loop keeps going.
func (w *TickWorker) StartTick(ctx context.Context, fn func(ctx context.Context) error) error {
	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}
	delay := w.Delay
	if delay <= 0 {
		delay = time.Minute
	}

	ticker := clk.Ticker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = fn(ctx)
		}
	}
}
