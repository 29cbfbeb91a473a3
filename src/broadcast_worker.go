package main

import (
	"context"
	"log"

	"github.com/ryansname/deyectl/src/inverter"
)

// broadcastWorker fans each telemetry snapshot out to every downstream worker.
// A downstream worker that falls behind misses snapshots instead of stalling
// the others.
func broadcastWorker(ctx context.Context, inputChan <-chan inverter.Telemetry, outputChans []chan<- inverter.Telemetry) {
	for {
		select {
		case data := <-inputChan:
			for i, ch := range outputChans {
				select {
				case ch <- data:
				case <-ctx.Done():
					return
				default:
					log.Printf("Warning: downstream worker %d channel full, dropping update\n", i)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
