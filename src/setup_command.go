package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/chzyer/readline"

	"github.com/ryansname/deyectl/src/config"
	"github.com/ryansname/deyectl/src/discovery"
	"github.com/ryansname/deyectl/src/inverter"
	"github.com/ryansname/deyectl/src/setup"
)

// SetupCommand runs the interactive settings wizard
type SetupCommand struct {
	NoScan      bool          `long:"no-scan" description:"Skip the network scan for loggers"`
	ScanTimeout time.Duration `long:"scan-timeout" description:"Give up scanning after this long" default:"30s"`
}

func (c *SetupCommand) Execute(_ []string) error {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile: historyFilePath("setup_history"),
	})
	if err != nil {
		return fmt.Errorf("readline init failed: %w", err)
	}
	defer func() {
		_ = rl.Close()
	}()

	if globalOptions.Verbose {
		log.SetOutput(&readlineWriter{rl: rl, out: os.Stderr})
	} else {
		quietLogs()
	}

	wizard := &setup.Wizard{
		In:     rl,
		Out:    rl.Stdout(),
		Detect: detectForSetup,
	}
	if !c.NoScan {
		wizard.Discover = func(ctx context.Context) ([]discovery.Device, error) {
			ctx, cancel := context.WithTimeout(ctx, c.ScanTimeout)
			defer cancel()
			return discovery.Scan(ctx, discovery.Options{})
		}
	}

	_, err = wizard.Run(context.Background(), globalOptions.EnvFile)
	return err
}

// detectForSetup connects with the answers given so far and runs detection
func detectForSetup(ctx context.Context, ip, serialText string) (inverter.Config, error) {
	serial, err := strconv.ParseUint(serialText, 10, 32)
	if err != nil {
		return inverter.Config{}, fmt.Errorf("invalid logger serial %q", serialText)
	}

	cfg := &config.Config{InverterIP: ip, LoggerSerial: uint32(serial), InverterPort: config.DefaultInverterPort, SlaveID: 1}
	client, err := dialInverter(ctx, cfg)
	if err != nil {
		return inverter.Config{}, err
	}
	defer func() {
		_ = client.Close()
	}()

	return inverter.Detect(client), nil
}
