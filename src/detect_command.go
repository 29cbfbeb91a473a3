package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ryansname/deyectl/src/inverter"
)

// DetectCommand prints the detected hardware configuration
type DetectCommand struct {
	JSON bool `long:"json" description:"Print the result as JSON"`
}

func (c *DetectCommand) Execute(_ []string) error {
	quietLogs()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireInverter(); err != nil {
		return err
	}

	client, err := dialInverter(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	return printDetection(os.Stdout, inverter.Detect(client), c.JSON)
}

func printDetection(out io.Writer, cfg inverter.Config, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"phases":        cfg.Phases,
			"has_battery":   cfg.HasBattery,
			"pv_strings":    cfg.PVStrings,
			"has_generator": cfg.HasGenerator,
		})
	}

	_, err := fmt.Fprintf(out, "Phases:     %d\nBattery:    %s\nPV strings: %d\nGenerator:  %s\n",
		cfg.Phases, yesNo(cfg.HasBattery), cfg.PVStrings, yesNo(cfg.HasGenerator))
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
