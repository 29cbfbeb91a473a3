package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/ryansname/deyectl/src/config"
	"github.com/ryansname/deyectl/src/solarman"
)

// GlobalOptions apply to every command
type GlobalOptions struct {
	EnvFile string `short:"e" long:"env" description:"Settings file written by the setup command" default:".env" env:"DEYECTL_ENV_FILE"`
	Verbose bool   `short:"v" long:"verbose" description:"Log protocol and detection details"`
}

var globalOptions GlobalOptions

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			log.Printf("Panic in %s (attempt %d/%d): %v\n", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				log.Printf("%s failed after %d retries, shutting down\n", name, maxRetries)
				cancel()
				return
			}

			log.Printf("%s will retry in %v\n", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// loadConfig reads the settings file named by --env
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalOptions.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return cfg, nil
}

// quietLogs hides log output for one-shot commands unless --verbose is set
func quietLogs() {
	if !globalOptions.Verbose {
		log.SetOutput(io.Discard)
	}
}

// dialInverter connects to the logger configured in cfg
func dialInverter(ctx context.Context, cfg *config.Config) (*solarman.Client, error) {
	return solarman.Dial(ctx,
		solarman.Address(cfg.InverterIP, cfg.InverterPort),
		cfg.LoggerSerial,
		solarman.WithSlaveID(cfg.SlaveID),
	)
}

func newParser() *flags.Parser {
	parser := flags.NewParser(&globalOptions, flags.Default)
	parser.Name = "deyectl"
	parser.LongDescription = "Tools for Deye hybrid inverters behind a Solarman Wi-Fi logger."

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"check", "Check the inverter is reachable", "Checks the logger port, opens a Solarman V5 session and reads a few registers.", &CheckCommand{}},
		{"detect", "Detect the inverter hardware", "Samples registers to find the phase count, battery, PV strings and generator.", &DetectCommand{}},
		{"outage", "Show today's outage schedule", "Fetches today's planned outage windows for the configured group.", &OutageCommand{}},
		{"discover", "Find loggers on the local network", "Scans local subnets for hosts with the logger port open.", &DiscoverCommand{}},
		{"setup", "Write the .env settings file", "Interactive wizard for the inverter, weather, outage, generator and Telegram settings.", &SetupCommand{}},
		{"monitor", "Poll telemetry and publish it", "Detects the hardware, then polls telemetry and publishes it to MQTT and the console.", &MonitorCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			log.Fatalf("Failed to register %s command: %v", c.name, err)
		}
	}
	return parser
}

func main() {
	if _, err := newParser().Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
