package setup

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ryansname/deyectl/src/config"
)

// ManagedKeys are the settings the wizard asks about, in file order
var ManagedKeys = []string{
	"INVERTER_IP", "LOGGER_SERIAL",
	"WEATHER_LATITUDE", "WEATHER_LONGITUDE",
	"OUTAGE_PROVIDER", "OUTAGE_GROUP", "OUTAGE_REGION_ID", "OUTAGE_DSO_ID",
	"INVERTER_HAS_GENERATOR", "GENERATOR_FUEL_RATE", "GENERATOR_OIL_CHANGE_DATE",
	"TELEGRAM_ENABLED", "TELEGRAM_BOT_TOKEN", "TELEGRAM_ALLOWED_USERS",
	"TELEGRAM_PUBLIC",
}

// Existing is what a previous run left in the .env file
type Existing struct {
	Values map[string]string // managed keys only
	Extra  []string          // every other KEY=value line, in file order
}

// LoadExisting reads path. Comments and blank lines are dropped.
// A missing file yields an empty result.
func LoadExisting(path string) (Existing, error) {
	existing := Existing{Values: make(map[string]string)}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return existing, nil
	}
	if err != nil {
		return existing, err
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !slices.Contains(ManagedKeys, key) {
			existing.Extra = append(existing.Extra, line)
			continue
		}
		existing.Values[key] = envValue(key, strings.TrimSpace(raw))
	}
	if err := scanner.Err(); err != nil {
		return existing, fmt.Errorf("read %s: %w", path, err)
	}
	return existing, nil
}

// envValue unquotes a value the way config.Load will see it
func envValue(key, raw string) string {
	parsed, err := godotenv.Unmarshal(key + "=" + raw)
	if err != nil {
		return raw
	}
	return parsed[key]
}

// Render lays out the .env file
func Render(values map[string]string, extra []string) string {
	get := func(key, def string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return def
	}
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("# Deye Inverter Configuration")
	add("INVERTER_IP=%s", get("INVERTER_IP", ""))
	add("LOGGER_SERIAL=%s", get("LOGGER_SERIAL", ""))
	add("")

	add("# Weather (coordinates for Open-Meteo API)")
	add("WEATHER_LATITUDE=%s", get("WEATHER_LATITUDE", config.DefaultLatitude))
	add("WEATHER_LONGITUDE=%s", get("WEATHER_LONGITUDE", config.DefaultLongitude))
	add("")

	add("# Outage Schedule Provider")
	provider := get("OUTAGE_PROVIDER", "lvivoblenergo")
	add("OUTAGE_PROVIDER=%s", provider)
	switch provider {
	case "lvivoblenergo":
		if v, ok := values["OUTAGE_GROUP"]; ok {
			add("OUTAGE_GROUP=%s", v)
		}
	case "yasno":
		for _, key := range []string{"OUTAGE_REGION_ID", "OUTAGE_DSO_ID", "OUTAGE_GROUP"} {
			if v, ok := values[key]; ok {
				add("%s=%s", key, v)
			}
		}
	}
	add("")

	if config.IsTrue(get("INVERTER_HAS_GENERATOR", "false")) {
		add("# Generator")
		add("INVERTER_HAS_GENERATOR=true")
		for _, key := range []string{"GENERATOR_FUEL_RATE", "GENERATOR_OIL_CHANGE_DATE"} {
			if v, ok := values[key]; ok {
				add("%s=%s", key, v)
			}
		}
		add("")
	}

	add("# Telegram Bot")
	telegram := get("TELEGRAM_ENABLED", "false")
	add("TELEGRAM_ENABLED=%s", telegram)
	if config.IsTrue(telegram) {
		add("TELEGRAM_BOT_TOKEN=%s", get("TELEGRAM_BOT_TOKEN", ""))
		add("TELEGRAM_ALLOWED_USERS=%s", get("TELEGRAM_ALLOWED_USERS", ""))
		add("TELEGRAM_PUBLIC=%s", get("TELEGRAM_PUBLIC", "false"))
	}

	if len(extra) > 0 {
		add("")
		add("# Additional settings")
		lines = append(lines, extra...)
	}

	return strings.Join(lines, "\n") + "\n"
}

// Save writes the rendered file. It holds the bot token, so it is
// readable by the owner only.
func Save(path string, values map[string]string, extra []string) error {
	return os.WriteFile(path, []byte(Render(values, extra)), 0o600)
}
