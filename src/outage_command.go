package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ryansname/deyectl/src/outage"
)

// OutageCommand prints today's outage windows
type OutageCommand struct {
	Provider string `long:"provider" description:"Override OUTAGE_PROVIDER (lvivoblenergo, yasno, none)"`
	Group    string `long:"group" description:"Override OUTAGE_GROUP"`
}

func (c *OutageCommand) Execute(_ []string) error {
	quietLogs()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	settings := cfg.Outage
	if c.Provider != "" {
		settings.Provider = c.Provider
	}
	if c.Group != "" {
		settings.Group = c.Group
	}

	provider, err := outage.New(settings)
	if err != nil {
		return err
	}
	if provider == nil {
		fmt.Println("Outage schedule disabled (OUTAGE_PROVIDER=none).")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	windows, err := provider.FetchWindows(ctx)
	if err != nil {
		return err
	}
	printOutages(os.Stdout, provider, windows, time.Now())
	return nil
}

func printOutages(out io.Writer, provider outage.Provider, windows []outage.Window, now time.Time) {
	_, _ = fmt.Fprintf(out, "%s, group %s\n", provider.Name(), provider.Group())
	if len(windows) == 0 {
		_, _ = fmt.Fprintln(out, "No outages scheduled for today.")
		return
	}

	for _, w := range windows {
		_, _ = fmt.Fprintf(out, "  %s\n", w)
	}

	next, ok := outage.Next(windows, now)
	switch {
	case !ok:
		_, _ = fmt.Fprintln(out, "No more outages today.")
	case next.Contains(now):
		_, _ = fmt.Fprintf(out, "Outage in progress until %02d:%02d.\n", next.EndHour, next.EndMinute)
	default:
		_, _ = fmt.Fprintf(out, "Next outage at %02d:%02d.\n", next.StartHour, next.StartMinute)
	}
}
