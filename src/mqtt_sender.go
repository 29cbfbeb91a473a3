package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ryansname/deyectl/src/inverter"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// haDeviceConfig groups every entity under one Home Assistant device
type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
}

type haEntityConfig struct {
	Name              string         `json:"name,omitempty"`
	DeviceClass       string         `json:"device_class,omitempty"`
	StateTopic        string         `json:"state_topic"`
	AvailabilityTopic string         `json:"availability_topic"`
	UnitOfMeasure     string         `json:"unit_of_measurement,omitempty"`
	ValueTemplate     string         `json:"value_template"`
	UniqueId          string         `json:"unique_id"`
	ExpireAfter       uint           `json:"expire_after,omitempty"`
	StateClass        string         `json:"state_class,omitempty"`
	DisplayPrecision  int            `json:"suggested_display_precision,omitempty"`
	Device            haDeviceConfig `json:"device"`
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch       chan<- MQTTMessage
	prefix   string
	deviceId string
	device   haDeviceConfig
}

// NewMQTTSender creates a sender publishing under prefix/<serial>/
func NewMQTTSender(ch chan<- MQTTMessage, prefix string, serial uint32, hw inverter.Config) *MQTTSender {
	deviceId := fmt.Sprintf("deye_%d", serial)
	return &MQTTSender{
		ch:       ch,
		prefix:   fmt.Sprintf("%s/%d", prefix, serial),
		deviceId: deviceId,
		device: haDeviceConfig{
			Identifiers:  []string{deviceId},
			Name:         "Deye Inverter",
			Manufacturer: "Deye",
			Model:        fmt.Sprintf("%d-phase hybrid", hw.Phases),
			SerialNumber: fmt.Sprintf("%d", serial),
		},
	}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

// StateTopic carries one JSON object per poll
func (s *MQTTSender) StateTopic() string {
	return s.prefix + "/state"
}

// AvailabilityTopic carries "online" or "offline"
func (s *MQTTSender) AvailabilityTopic() string {
	return s.prefix + "/availability"
}

// CreateSensorEntity announces a sensor via MQTT discovery
func (s *MQTTSender) CreateSensorEntity(sensor inverter.Sensor) error {
	config := haEntityConfig{
		Name:              sensor.Name,
		DeviceClass:       sensor.DeviceClass,
		StateTopic:        s.StateTopic(),
		AvailabilityTopic: s.AvailabilityTopic(),
		UnitOfMeasure:     sensor.Unit,
		ValueTemplate:     "{{ value_json." + sensor.Key + " }}",
		UniqueId:          s.deviceId + "_" + sensor.Key,
		ExpireAfter:       60 * 5,
		StateClass:        "measurement",
		DisplayPrecision:  displayPrecision(sensor),
		Device:            s.device,
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   "homeassistant/sensor/" + s.deviceId + "/" + sensor.Key + "/config",
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})
	return nil
}

// PublishState sends the latest values, keyed like the sensors
func (s *MQTTSender) PublishState(values map[string]float64) error {
	rounded := make(map[string]float64, len(values))
	for k, v := range values {
		rounded[k] = math.Round(v*100) / 100
	}

	payload, err := json.Marshal(rounded)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   s.StateTopic(),
		Payload: payload,
		QoS:     0,
		Retain:  true,
	})
	return nil
}

func displayPrecision(sensor inverter.Sensor) int {
	switch {
	case sensor.Scale == 0 || sensor.Scale >= 1:
		return 0
	case sensor.Scale >= 0.1:
		return 1
	default:
		return 2
	}
}

// mqttSenderWorker handles outgoing MQTT messages, queuing them until a
// connected client arrives
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	log.Println("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	publish := func(msg MQTTMessage) {
		token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v\n", msg.Topic, token.Error())
		}
	}

	for {
		select {
		case newClient := <-clientChan:
			log.Println("MQTT sender worker received new client")
			client = newClient

			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Printf("MQTT sender worker processed %d queued messages\n", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(msg)
				continue
			}

			// State is retained, so only the newest copy per topic matters
			messageQueue = replaceQueued(messageQueue, msg)
			log.Printf("MQTT sender worker queued message (total queued: %d)\n", len(messageQueue))

		case <-ctx.Done():
			log.Println("MQTT sender worker stopped")
			return
		}
	}
}

// replaceQueued appends msg, dropping an older queued message for the same topic
func replaceQueued(queue []MQTTMessage, msg MQTTMessage) []MQTTMessage {
	for i, queued := range queue {
		if queued.Topic == msg.Topic {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	return append(queue, msg)
}
