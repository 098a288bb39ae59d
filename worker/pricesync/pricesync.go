// Package pricesync keeps the oracle price cache warm so action handlers
// never wait on a cold feed.
package pricesync

import (
	"context"

	"reservoir/core"
	"reservoir/worker"

	"github.com/fox-one/pkg/logger"
)

// Worker price sync worker
type Worker struct {
	worker.TickWorker

	reserves core.IReserveStore
	oracle   core.IPriceOracle
}

// New new price sync worker
func New(reserveStore core.IReserveStore, oracle core.IPriceOracle) *Worker {
	return &Worker{
		reserves: reserveStore,
		oracle:   oracle,
	}
}

// Run run worker
func (w *Worker) Run(ctx context.Context) error {
	return w.StartTick(ctx, func(ctx context.Context) error {
		return w.onWork(ctx)
	})
}

func (w *Worker) onWork(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField("worker", "pricesync")

	assets, err := w.reserves.AddressList(ctx, nil)
	if err != nil {
		log.WithError(err).Errorln("reserves.AddressList")
		return err
	}

	for _, asset := range assets {
		if _, err := w.oracle.Price(ctx, asset); err != nil {
			log.WithError(err).Errorln("pull price:", asset)
		}
	}
	return nil
}
