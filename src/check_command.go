package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ryansname/deyectl/src/discovery"
	"github.com/ryansname/deyectl/src/inverter"
	"github.com/ryansname/deyectl/src/solarman"
)

const portCheckTimeout = 3 * time.Second

var errCheckFailed = errors.New("inverter check failed")

// CheckCommand probes the inverter in three steps
type CheckCommand struct {
	Port    int           `short:"p" long:"port" description:"Logger TCP port" env:"INVERTER_PORT" default:"8899"`
	Timeout time.Duration `long:"timeout" description:"Timeout for each Solarman request" default:"10s"`
	Args    struct {
		IP     string `positional-arg-name:"IP"`
		Serial string `positional-arg-name:"LOGGER_SERIAL"`
	} `positional-args:"yes"`
}

func (c *CheckCommand) Execute(_ []string) error {
	quietLogs()

	ip, serialText := c.Args.IP, c.Args.Serial
	if ip == "" || serialText == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if ip == "" {
			ip = cfg.InverterIP
		}
		if serialText == "" && cfg.LoggerSerial != 0 {
			serialText = strconv.FormatUint(uint64(cfg.LoggerSerial), 10)
		}
	}
	if ip == "" || serialText == "" {
		fmt.Println("Usage: deyectl check <IP> <LOGGER_SERIAL>")
		fmt.Println("Example: deyectl check 192.168.88.254 3101592415")
		return errCheckFailed
	}

	serial, err := strconv.ParseUint(serialText, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid logger serial %q: %w", serialText, err)
	}

	if !runCheck(context.Background(), os.Stdout, ip, c.Port, uint32(serial), c.Timeout) {
		return errCheckFailed
	}
	return nil
}

// runCheck prints each step and reports whether the inverter answered
func runCheck(ctx context.Context, out io.Writer, ip string, port int, serial uint32, timeout time.Duration) bool {
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintf(out, format, args...)
	}

	p("Checking inverter at %s (serial: %d)\n\n", ip, serial)

	p("  [1/3] Port %d ... ", port)
	if !discovery.PortOpen(ip, port, portCheckTimeout) {
		p("CLOSED\n")
		p("\n  Port %d is not open on %s.\n", port, ip)
		p("  - Is the inverter powered on?\n")
		p("  - Is the Wi-Fi logger connected?\n")
		p("  - Are you on the same network?\n")
		return false
	}
	p("OPEN\n")

	p("  [2/3] Solarman V5 handshake ... ")
	client, err := solarman.Dial(ctx, solarman.Address(ip, port), serial, solarman.WithTimeout(timeout))
	if err != nil {
		p("FAILED (%v)\n", err)
		p("\n  Port is open but Solarman handshake failed.\n")
		p("  - Is the serial number correct?\n")
		p("  - Is the logger busy (too many connections)?\n")
		return false
	}
	defer func() {
		_ = client.Close()
	}()
	p("OK\n")

	p("  [3/3] Reading registers ... ")
	var values [4]uint16
	for i, reg := range []uint16{inverter.RegBatterySOC3P, inverter.RegPV1Power3P, inverter.RegGridVoltage3P, inverter.RegLoadPower3P} {
		v, err := client.ReadRegister(reg)
		if err != nil {
			p("FAILED (%v)\n", err)
			return false
		}
		values[i] = v
	}
	p("OK\n")

	p("\n  Battery SOC:  %d%%\n", values[0])
	p("  PV1 Power:    %dW\n", values[1])
	p("  Grid Voltage: %.1fV\n", float64(values[2])/10)
	p("  Load Power:   %dW\n", values[3])
	p("\n  Inverter is healthy.\n")
	return true
}
