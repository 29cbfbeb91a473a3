package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ryansname/deyectl/src/config"
	"github.com/ryansname/deyectl/src/inverter"
)

// MonitorCommand polls telemetry and publishes it until interrupted
type MonitorCommand struct {
	Interval  time.Duration `short:"i" long:"interval" description:"Polling interval" default:"10s" env:"MONITOR_INTERVAL"`
	Broker    string        `long:"broker" description:"Override MQTT_BROKER (host, host:port or URL)"`
	NoDisplay bool          `long:"no-display" description:"Do not print telemetry to the console"`
}

func (c *MonitorCommand) Execute(_ []string) error {
	log.Println("Starting deyectl monitor...")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireInverter(); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid interval %v", c.Interval)
	}
	broker := cfg.MQTTBroker
	if c.Broker != "" {
		broker = c.Broker
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dial := func(ctx context.Context) (registerSource, error) {
		return dialInverter(ctx, cfg)
	}

	// Detection runs once at startup
	client, err := dial(ctx)
	if err != nil {
		return err
	}
	detected := inverter.Detect(client)
	_ = client.Close()
	log.Printf("Detected inverter: %s\n", detected)

	hw, sensors, fuel := monitorHardware(detected, cfg)

	telemetryChan := make(chan inverter.Telemetry, 10)
	var downstreamChans []chan<- inverter.Telemetry //nolint:prealloc // small slice

	if !c.NoDisplay {
		displayChan := make(chan inverter.Telemetry, 10)
		downstreamChans = append(downstreamChans, displayChan)
		SafeGo(ctx, cancel, "display-worker", func(ctx context.Context) {
			displayWorker(ctx, displayChan, os.Stdout, sensors)
		})
	}

	if broker != "" {
		mqttOutgoingChan := make(chan MQTTMessage, 100)
		mqttClientChan := make(chan mqtt.Client, 1)
		haOnlineChan := make(chan struct{}, 1)
		publishChan := make(chan inverter.Telemetry, 10)
		downstreamChans = append(downstreamChans, publishChan)

		sender := NewMQTTSender(mqttOutgoingChan, cfg.MQTTTopicPrefix, cfg.LoggerSerial, hw)

		SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
			mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
		})
		SafeGo(ctx, cancel, "publish-worker", func(ctx context.Context) {
			publishWorker(ctx, publishChan, haOnlineChan, sender, sensors)
		})

		settings := mqttSettings{
			Broker:            broker,
			Username:          cfg.MQTTUsername,
			Password:          cfg.MQTTPassword,
			ClientID:          fmt.Sprintf("deyectl-%d", cfg.LoggerSerial),
			AvailabilityTopic: sender.AvailabilityTopic(),
		}
		SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
			mqttWorker(ctx, settings, mqttClientChan, haOnlineChan)
		})
		log.Println("MQTT workers started")
	} else {
		log.Println("MQTT_BROKER not set, publishing to the console only")
	}

	SafeGo(ctx, cancel, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, telemetryChan, downstreamChans)
	})
	SafeGo(ctx, cancel, "poll-worker", func(ctx context.Context) {
		pollWorker(ctx, dial, hw, c.Interval, fuel, telemetryChan)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nShutting down due to error...")
	}
	cancel()

	// Let the MQTT worker publish "offline" before the process exits
	time.Sleep(500 * time.Millisecond)
	return nil
}

// monitorHardware settles what to poll. An idle generator reads 0 W during
// detection, so INVERTER_HAS_GENERATOR from the settings also enables it.
func monitorHardware(detected inverter.Config, cfg *config.Config) (inverter.Config, []inverter.Sensor, *fuelTracker) {
	hw := detected
	if cfg.HasGenerator && !hw.HasGenerator {
		log.Println("Generator idle during detection, enabled by INVERTER_HAS_GENERATOR")
		hw.HasGenerator = true
	}

	sensors := inverter.Sensors(hw)
	var fuel *fuelTracker
	if hw.HasGenerator && cfg.GeneratorFuelRate > 0 {
		fuel = newFuelTracker(cfg.GeneratorFuelRate)
		sensors = append(sensors, sensorGeneratorRuntime, sensorGeneratorFuel)
	}
	return hw, sensors, fuel
}
