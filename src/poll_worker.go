package main

import (
	"context"
	"log"
	"time"

	"github.com/ryansname/deyectl/src/inverter"
)

// registerSource is an open inverter connection
type registerSource interface {
	inverter.RegisterReader
	Close() error
}

// pollWorker reads telemetry every interval and forwards each snapshot,
// with generator estimates added when fuel is set. When a poll reads
// nothing at all the connection is dropped and redialled on the next tick.
func pollWorker(
	ctx context.Context,
	dial func(ctx context.Context) (registerSource, error),
	hw inverter.Config,
	interval time.Duration,
	fuel *fuelTracker,
	outputChan chan<- inverter.Telemetry,
) {
	log.Printf("Poll worker started (every %v)\n", interval)

	var source registerSource
	defer func() {
		if source != nil {
			_ = source.Close()
		}
	}()

	poll := func() {
		if source == nil {
			s, err := dial(ctx)
			if err != nil {
				log.Printf("Poll worker: connect failed: %v\n", err)
				return
			}
			source = s
		}

		t, err := inverter.ReadTelemetry(source, hw)
		if err != nil {
			log.Printf("Poll worker: %v\n", err)
		}
		if len(t.Values) == 0 {
			_ = source.Close()
			source = nil
			return
		}
		if fuel != nil {
			fuel.Update(t)
		}

		select {
		case outputChan <- t:
		case <-ctx.Done():
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			log.Println("Poll worker stopped")
			return
		}
	}
}
