package main

import (
	"context"
	"log"

	"github.com/ryansname/deyectl/src/inverter"
)

// publishWorker announces the sensors to Home Assistant and publishes every
// snapshot as retained state. Discovery is repeated whenever Home Assistant
// restarts.
func publishWorker(
	ctx context.Context,
	dataChan <-chan inverter.Telemetry,
	haOnline <-chan struct{},
	sender *MQTTSender,
	sensors []inverter.Sensor,
) {
	announce := func() {
		for _, s := range sensors {
			if err := sender.CreateSensorEntity(s); err != nil {
				log.Printf("Failed to create %s entity: %v\n", s.Key, err)
			}
		}
	}

	announce()
	log.Printf("Home Assistant entities created (%d sensors)\n", len(sensors))

	var last map[string]float64
	for {
		select {
		case data := <-dataChan:
			if err := sender.PublishState(data.Values); err != nil {
				log.Printf("Failed to publish state: %v\n", err)
				continue
			}
			last = data.Values

		case <-haOnline:
			announce()
			if last != nil {
				_ = sender.PublishState(last)
			}

		case <-ctx.Done():
			return
		}
	}
}
