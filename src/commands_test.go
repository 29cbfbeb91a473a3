package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/deyectl/src/discovery"
	"github.com/ryansname/deyectl/src/inverter"
	"github.com/ryansname/deyectl/src/outage"
)

type stubProvider struct{}

func (stubProvider) Name() string  { return "YASNO" }
func (stubProvider) Group() string { return "2.1" }
func (stubProvider) FetchWindows(context.Context) ([]outage.Window, error) {
	return nil, nil
}

func TestPrintOutages(t *testing.T) {
	windows := []outage.Window{
		{StartHour: 8, EndHour: 12},
		{StartHour: 18, StartMinute: 30, EndHour: 22},
	}
	at := func(hour, minute int) time.Time {
		return time.Date(2025, 10, 20, hour, minute, 0, 0, time.Local)
	}

	tests := []struct {
		name     string
		windows  []outage.Window
		now      time.Time
		expected string
	}{
		{"none", nil, at(9, 0), "YASNO, group 2.1\nNo outages scheduled for today.\n"},
		{"before", windows, at(7, 0), "YASNO, group 2.1\n  08:00-12:00\n  18:30-22:00\nNext outage at 08:00.\n"},
		{"during", windows, at(19, 0), "YASNO, group 2.1\n  08:00-12:00\n  18:30-22:00\nOutage in progress until 22:00.\n"},
		{"after", windows, at(23, 0), "YASNO, group 2.1\n  08:00-12:00\n  18:30-22:00\nNo more outages today.\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			printOutages(&out, stubProvider{}, tt.windows, tt.now)
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestPrintDevices(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printDevices(&out, nil, true))
	assert.Equal(t, "[]\n", out.String())

	out.Reset()
	devices := []discovery.Device{{IP: "192.168.1.21", Serial: "3101592415", MAC: "98D863A1B2C3"}}
	require.NoError(t, printDevices(&out, devices, true))
	assert.JSONEq(t, `[{"ip":"192.168.1.21","serial":"3101592415","mac":"98D863A1B2C3"}]`, out.String())

	out.Reset()
	require.NoError(t, printDevices(&out, append(devices, discovery.Device{IP: "192.168.1.30"}), false))
	assert.Contains(t, out.String(), "192.168.1.21     3101592415   98D863A1B2C3       Unknown\n")
	assert.Contains(t, out.String(), "192.168.1.30     -            -                  Unknown\n")

	out.Reset()
	require.NoError(t, printDevices(&out, nil, false))
	assert.Equal(t, "No devices with port 8899 open found.\n", out.String())
}

func TestPrintDetection(t *testing.T) {
	cfg := inverter.Config{Phases: 1, HasBattery: true, PVStrings: 2}

	var out bytes.Buffer
	require.NoError(t, printDetection(&out, cfg, false))
	assert.Equal(t, "Phases:     1\nBattery:    yes\nPV strings: 2\nGenerator:  no\n", out.String())

	out.Reset()
	require.NoError(t, printDetection(&out, cfg, true))
	assert.JSONEq(t, `{"phases":1,"has_battery":true,"pv_strings":2,"has_generator":false}`, out.String())
}

func TestParserRegistersCommands(t *testing.T) {
	parser := newParser()
	for _, name := range []string{"check", "detect", "outage", "discover", "setup", "monitor"} {
		assert.NotNil(t, parser.Find(name), name)
	}
}
