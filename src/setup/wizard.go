// Package setup implements the interactive .env configuration wizard
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ryansname/deyectl/src/config"
	"github.com/ryansname/deyectl/src/discovery"
	"github.com/ryansname/deyectl/src/inverter"
)

// ANSI color codes
const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[0;32m"
	ansiYellow = "\033[1;33m"
	ansiRed    = "\033[0;31m"
	ansiCyan   = "\033[0;36m"
	ansiBold   = "\033[1m"
)

// placeholderToken is what the sample .env ships with
const placeholderToken = "your-bot-token-here"

var ErrAborted = errors.New("setup aborted")

// LineReader reads one answer per prompt. *readline.Instance satisfies it.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// Wizard asks for every managed setting and writes the .env file
type Wizard struct {
	In  LineReader
	Out io.Writer

	// Discover lists loggers on the local network. Optional.
	Discover func(ctx context.Context) ([]discovery.Device, error)
	// Detect reads the hardware configuration of the chosen inverter. Optional.
	Detect func(ctx context.Context, ip, serial string) (inverter.Config, error)

	err error
}

// Run walks through every section and writes path when confirmed.
// It reports whether the file was written.
func (w *Wizard) Run(ctx context.Context, path string) (bool, error) {
	w.println()
	w.printf("%s%s========================================%s\n", ansiCyan, ansiBold, ansiReset)
	w.printf("%s%s  Deye Inverter Setup%s\n", ansiCyan, ansiBold, ansiReset)
	w.printf("%s%s========================================%s\n", ansiCyan, ansiBold, ansiReset)
	w.println()

	existing, err := LoadExisting(path)
	if err != nil {
		return false, err
	}
	defaults := existing.Values

	if len(defaults) > 0 {
		w.printf("Existing %s found, values shown as defaults in [brackets].\n", path)
	} else {
		w.println("No .env file found. Let's configure your inverter.")
	}
	w.println("Press Enter to accept defaults.")
	w.println()

	values := make(map[string]string)
	sections := []func(context.Context, map[string]string, map[string]string) map[string]string{
		w.sectionInverter,
		w.sectionWeather,
		w.sectionOutage,
		w.sectionGenerator,
		w.sectionTelegram,
	}
	for _, section := range sections {
		for k, v := range section(ctx, defaults, values) {
			values[k] = v
		}
		if w.err != nil {
			return false, w.err
		}
	}

	w.printSummary(values)

	confirmed := w.askYN("Write .env file?", "y")
	if w.err != nil {
		return false, w.err
	}
	if !confirmed {
		w.println("Setup cancelled.")
		return false, nil
	}

	if err := Save(path, values, existing.Extra); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	w.printf("%s%s file created successfully!%s\n", ansiGreen, path, ansiReset)
	w.println()
	return true, nil
}

func (w *Wizard) sectionInverter(ctx context.Context, defaults, _ map[string]string) map[string]string {
	w.printf("%sInverter Settings%s\n", ansiYellow, ansiReset)

	var devices []discovery.Device
	if w.Discover != nil {
		w.println("  Scanning local network for Deye/Solarman inverters...")
		w.println()
		found, err := w.Discover(ctx)
		switch {
		case err != nil && len(found) > 0:
			w.printf("  Scan stopped early (%v), listing what was found.\n", err)
		case err != nil:
			w.printf("  Scan failed: %v\n", err)
		}
		devices = found
	}

	ip, serial := defaults["INVERTER_IP"], defaults["LOGGER_SERIAL"]

	if len(devices) == 0 {
		w.printf("  %sNo inverters found on the local network.%s\n", ansiYellow, ansiReset)
		w.println("  You can enter the details manually.")
		w.println()
		ip = w.ask("Inverter IP address", ip)
		serial = w.ask("Logger serial number", serial)
		w.println()
		return map[string]string{"INVERTER_IP": ip, "LOGGER_SERIAL": serial}
	}

	w.printf("  %sFound %d device(s) with port %d open:%s\n", ansiGreen, len(devices), discovery.DefaultPort, ansiReset)
	w.println()
	for i, dev := range devices {
		model := dev.Model
		if model == "" {
			model = "Unknown"
		}
		w.printf("    %s[%d]%s IP: %s%s%s  |  Model: %s\n", ansiCyan, i+1, ansiReset, ansiBold, dev.IP, ansiReset, model)
	}
	w.printf("    %s[%d]%s Enter manually\n", ansiCyan, len(devices)+1, ansiReset)
	w.println()

	choice := len(devices) + 1
	raw := w.readLine("  Select device [1]: ")
	if raw == "" {
		choice = 1
	} else if n, err := strconv.Atoi(raw); err == nil {
		choice = n
	}

	if choice >= 1 && choice <= len(devices) {
		dev := devices[choice-1]
		ip = dev.IP
		if dev.Serial != "" {
			serial = dev.Serial
		}
		w.printf("  %sSelected: %s%s\n", ansiGreen, ip, ansiReset)
		w.println()
	} else {
		ip = w.ask("Inverter IP address", ip)
	}
	serial = w.ask("Logger serial number", serial)

	w.println()
	return map[string]string{"INVERTER_IP": ip, "LOGGER_SERIAL": serial}
}

func (w *Wizard) sectionWeather(_ context.Context, defaults, _ map[string]string) map[string]string {
	w.printf("%sWeather Settings (Open-Meteo API)%s\n", ansiYellow, ansiReset)
	lat := w.ask("Latitude", withDefault(defaults, "WEATHER_LATITUDE", config.DefaultLatitude))
	lon := w.ask("Longitude", withDefault(defaults, "WEATHER_LONGITUDE", config.DefaultLongitude))
	w.println()
	return map[string]string{"WEATHER_LATITUDE": lat, "WEATHER_LONGITUDE": lon}
}

func (w *Wizard) sectionOutage(_ context.Context, defaults, _ map[string]string) map[string]string {
	w.printf("%sOutage Schedule Provider%s\n", ansiYellow, ansiReset)

	defaultChoice := 1
	switch withDefault(defaults, "OUTAGE_PROVIDER", "lvivoblenergo") {
	case "yasno":
		defaultChoice = 2
	case "none":
		defaultChoice = 3
	}

	provider := w.askChoice("Choose", []choice{
		{"lvivoblenergo", "lvivoblenergo"},
		{"yasno", "yasno"},
		{"none (disable)", "none"},
	}, defaultChoice)

	result := map[string]string{"OUTAGE_PROVIDER": provider}
	switch provider {
	case "lvivoblenergo":
		result["OUTAGE_GROUP"] = w.ask("Outage group (e.g. 1.1)", withDefault(defaults, "OUTAGE_GROUP", "1.1"))
	case "yasno":
		result["OUTAGE_REGION_ID"] = w.ask("YASNO region ID (e.g. 25 = Kyiv)", withDefault(defaults, "OUTAGE_REGION_ID", "25"))
		result["OUTAGE_DSO_ID"] = w.ask("YASNO DSO ID (e.g. 902 = DTEK Kyiv)", withDefault(defaults, "OUTAGE_DSO_ID", "902"))
		result["OUTAGE_GROUP"] = w.ask("Queue/group number (e.g. 2.1)", withDefault(defaults, "OUTAGE_GROUP", "2.1"))
	}

	w.println()
	return result
}

func (w *Wizard) sectionGenerator(ctx context.Context, defaults, values map[string]string) map[string]string {
	w.printf("%sGenerator (optional)%s\n", ansiYellow, ansiReset)

	defaultYN := yn(config.IsTrue(defaults["INVERTER_HAS_GENERATOR"]))

	ip, serial := values["INVERTER_IP"], values["LOGGER_SERIAL"]
	if w.Detect != nil && ip != "" && serial != "" && w.askYN("Auto-detect from the inverter?", "n") {
		cfg, err := w.Detect(ctx, ip, serial)
		if err != nil {
			w.printf("  %sDetection failed: %v%s\n", ansiRed, err, ansiReset)
		} else {
			w.printf("  Detected: %s\n", cfg)
			defaultYN = yn(cfg.HasGenerator)
		}
	}

	if !w.askYN("Has generator connected to GEN/GRID2 port?", defaultYN) {
		w.println()
		return map[string]string{"INVERTER_HAS_GENERATOR": "false"}
	}

	result := map[string]string{"INVERTER_HAS_GENERATOR": "true"}

	fuel := w.ask("Fuel consumption rate in L/hour (0 to skip)", withDefault(defaults, "GENERATOR_FUEL_RATE", "0"))
	if rate, err := strconv.ParseFloat(fuel, 64); err != nil {
		w.printf("  %sNot a number, fuel rate skipped.%s\n", ansiRed, ansiReset)
	} else if rate > 0 {
		result["GENERATOR_FUEL_RATE"] = fuel
	}

	if oil := w.ask("Last oil change date YYYY-MM-DD (empty to skip)", defaults["GENERATOR_OIL_CHANGE_DATE"]); oil != "" {
		result["GENERATOR_OIL_CHANGE_DATE"] = oil
	}

	w.println()
	return result
}

func (w *Wizard) sectionTelegram(_ context.Context, defaults, _ map[string]string) map[string]string {
	w.printf("%sTelegram Bot (optional)%s\n", ansiYellow, ansiReset)

	if !w.askYN("Enable Telegram bot?", yn(config.IsTrue(defaults["TELEGRAM_ENABLED"]))) {
		w.println()
		return map[string]string{"TELEGRAM_ENABLED": "false"}
	}

	result := map[string]string{"TELEGRAM_ENABLED": "true"}

	token := defaults["TELEGRAM_BOT_TOKEN"]
	if token != "" && token != placeholderToken {
		w.printf("  Existing bot token: %s\n", MaskToken(token))
		if !w.askYN("Keep existing bot token?", "y") {
			token = w.ask("Bot token", "")
		}
	} else {
		token = w.ask("Bot token", "")
	}
	result["TELEGRAM_BOT_TOKEN"] = token

	if w.askYN("Public mode? (any user can query the bot)", yn(config.IsTrue(defaults["TELEGRAM_PUBLIC"]))) {
		result["TELEGRAM_PUBLIC"] = "true"
		result["TELEGRAM_ALLOWED_USERS"] = w.ask("Allowed user IDs for broadcasts (comma-separated, optional)", defaults["TELEGRAM_ALLOWED_USERS"])
	} else {
		result["TELEGRAM_PUBLIC"] = "false"
		result["TELEGRAM_ALLOWED_USERS"] = w.ask("Allowed user IDs (comma-separated)", defaults["TELEGRAM_ALLOWED_USERS"])
	}

	w.println()
	return result
}

func (w *Wizard) printSummary(values map[string]string) {
	generator := "no"
	if config.IsTrue(values["INVERTER_HAS_GENERATOR"]) {
		generator = "yes"
	}
	telegram := "disabled"
	if config.IsTrue(values["TELEGRAM_ENABLED"]) {
		telegram = "enabled"
		if config.IsTrue(values["TELEGRAM_PUBLIC"]) {
			telegram += " (public)"
		}
	}

	w.printf("%sSummary:%s\n", ansiCyan, ansiReset)
	w.printf("  Inverter:  %s (serial: %s)\n", values["INVERTER_IP"], values["LOGGER_SERIAL"])
	w.printf("  Weather:   %s, %s\n", values["WEATHER_LATITUDE"], values["WEATHER_LONGITUDE"])
	w.printf("  Outage:    %s\n", values["OUTAGE_PROVIDER"])
	w.printf("  Generator: %s\n", generator)
	w.printf("  Telegram:  %s\n", telegram)
	w.println()
}

// MaskToken shows only the first and last four characters of a secret
func MaskToken(token string) string {
	if len(token) < 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

func withDefault(values map[string]string, key, def string) string {
	if v, ok := values[key]; ok && v != "" {
		return v
	}
	return def
}

func yn(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
