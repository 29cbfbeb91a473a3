// Package config reads the dashboard settings from a .env file
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ryansname/deyectl/src/outage"
)

// DefaultPath is where the setup wizard writes settings
const DefaultPath = ".env"

// Defaults shared with the setup wizard
const (
	DefaultLatitude     = "50.4501"
	DefaultLongitude    = "30.5234"
	DefaultInverterPort = 8899
)

var ErrMissing = errors.New("missing required setting")

// Modbus unicast slave addresses
const (
	minSlaveID = 1
	maxSlaveID = 247
)

// Config holds every setting the tools understand
type Config struct {
	InverterIP   string
	LoggerSerial uint32
	InverterPort int
	SlaveID      byte

	WeatherLatitude  float64
	WeatherLongitude float64

	Outage outage.Settings

	HasGenerator       bool
	GeneratorFuelRate  float64 // litres per hour
	GeneratorOilChange time.Time

	TelegramEnabled      bool
	TelegramBotToken     string
	TelegramAllowedUsers []int64
	TelegramPublic       bool

	MQTTBroker      string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
}

// Load reads path and overlays the process environment, which wins.
// A missing file is not an error; the environment alone may be enough.
func Load(path string) (*Config, error) {
	values, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return Parse(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	})
}

// Parse builds a Config from a key lookup function
func Parse(get func(string) string) (*Config, error) {
	p := parser{get: get}

	cfg := &Config{
		InverterIP:   strings.TrimSpace(get("INVERTER_IP")),
		LoggerSerial: p.getUint32("LOGGER_SERIAL"),
		InverterPort: p.getInt("INVERTER_PORT", DefaultInverterPort),
		SlaveID:      p.getSlaveID("INVERTER_SLAVE_ID"),

		WeatherLatitude:  p.getFloat("WEATHER_LATITUDE", DefaultLatitude),
		WeatherLongitude: p.getFloat("WEATHER_LONGITUDE", DefaultLongitude),

		Outage: outage.Settings{
			Provider: p.getString("OUTAGE_PROVIDER", outage.ProviderLvivoblenergo),
			Group:    get("OUTAGE_GROUP"),
			RegionID: p.getInt("OUTAGE_REGION_ID", 25),
			DSOID:    p.getInt("OUTAGE_DSO_ID", 902),
		},

		HasGenerator:      IsTrue(get("INVERTER_HAS_GENERATOR")),
		GeneratorFuelRate: p.getFloat("GENERATOR_FUEL_RATE", "0"),

		TelegramEnabled:  IsTrue(get("TELEGRAM_ENABLED")),
		TelegramBotToken: get("TELEGRAM_BOT_TOKEN"),
		TelegramPublic:   IsTrue(get("TELEGRAM_PUBLIC")),

		MQTTBroker:      get("MQTT_BROKER"),
		MQTTUsername:    get("MQTT_USERNAME"),
		MQTTPassword:    get("MQTT_PASSWORD"),
		MQTTTopicPrefix: p.getString("MQTT_TOPIC_PREFIX", "deye"),
	}

	if raw := strings.TrimSpace(get("GENERATOR_OIL_CHANGE_DATE")); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("GENERATOR_OIL_CHANGE_DATE: %w", err))
		}
		cfg.GeneratorOilChange = d
	}

	for _, field := range strings.Split(get("TELEGRAM_ALLOWED_USERS"), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("TELEGRAM_ALLOWED_USERS: %w", err))
			continue
		}
		cfg.TelegramAllowedUsers = append(cfg.TelegramAllowedUsers, id)
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireInverter checks the settings needed to talk to the inverter
func (c *Config) RequireInverter() error {
	if c.InverterIP == "" {
		return fmt.Errorf("%w: INVERTER_IP", ErrMissing)
	}
	if c.LoggerSerial == 0 {
		return fmt.Errorf("%w: LOGGER_SERIAL", ErrMissing)
	}
	return nil
}

// IsTrue interprets the boolean spellings the .env file accepts
func IsTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// parser collects conversion errors so every bad key is reported at once
type parser struct {
	get  func(string) string
	errs []error
}

func (p *parser) getString(key, def string) string {
	if v := strings.TrimSpace(p.get(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) getInt(key string, def int) int {
	v := strings.TrimSpace(p.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) getSlaveID(key string) byte {
	n := p.getInt(key, minSlaveID)
	if n < minSlaveID || n > maxSlaveID {
		p.errs = append(p.errs, fmt.Errorf("%s: %d out of range %d-%d", key, n, minSlaveID, maxSlaveID))
		return minSlaveID
	}
	return byte(n)
}

func (p *parser) getUint32(key string) uint32 {
	v := strings.TrimSpace(p.get(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return 0
	}
	return uint32(n)
}

func (p *parser) getFloat(key, def string) float64 {
	v := p.getString(key, def)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return 0
	}
	return f
}
