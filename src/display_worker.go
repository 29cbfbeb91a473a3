package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ryansname/deyectl/src/inverter"
)

// displayWorker prints one line per telemetry snapshot
func displayWorker(ctx context.Context, dataChan <-chan inverter.Telemetry, out io.Writer, sensors []inverter.Sensor) {
	for {
		select {
		case data := <-dataChan:
			_, _ = fmt.Fprintln(out, formatTelemetry(data, sensors))
		case <-ctx.Done():
			return
		}
	}
}

// formatTelemetry renders the sensors in order, "-" for values that failed to read
func formatTelemetry(data inverter.Telemetry, sensors []inverter.Sensor) string {
	parts := make([]string, 0, len(sensors))
	for _, s := range sensors {
		value := "-"
		if v, ok := data.Get(s.Key); ok {
			value = formatValue(v, s) + " " + s.Unit
		}
		parts = append(parts, s.Name+" "+value)
	}
	return data.Time.Format("15:04:05") + "  " + strings.Join(parts, " | ")
}

func formatValue(v float64, s inverter.Sensor) string {
	return fmt.Sprintf("%.*f", displayPrecision(s), v)
}
