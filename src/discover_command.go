package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ryansname/deyectl/src/discovery"
)

// DiscoverCommand lists loggers found on the local network
type DiscoverCommand struct {
	JSON    bool          `long:"json" description:"Print devices as JSON"`
	Timeout time.Duration `long:"timeout" description:"Give up scanning after this long" default:"30s"`
}

func (c *DiscoverCommand) Execute(_ []string) error {
	quietLogs()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	devices, err := discovery.Scan(ctx, discovery.Options{})
	if errors.Is(err, context.DeadlineExceeded) {
		_, _ = fmt.Fprintf(os.Stderr, "Scan stopped after %v, results may be incomplete.\n", c.Timeout)
	} else if err != nil {
		return err
	}
	return printDevices(os.Stdout, devices, c.JSON)
}

func printDevices(out io.Writer, devices []discovery.Device, asJSON bool) error {
	if asJSON {
		if devices == nil {
			devices = []discovery.Device{}
		}
		return json.NewEncoder(out).Encode(devices)
	}

	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "No devices with port 8899 open found.")
		return err
	}

	_, _ = fmt.Fprintf(out, "%-16s %-12s %-18s %s\n", "IP", "SERIAL", "MAC", "MODEL")
	for _, d := range devices {
		model := d.Model
		if model == "" {
			model = "Unknown"
		}
		_, _ = fmt.Fprintf(out, "%-16s %-12s %-18s %s\n", d.IP, orDash(d.Serial), orDash(d.MAC), model)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
