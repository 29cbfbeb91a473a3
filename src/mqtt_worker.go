package main

import (
	"context"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TopicHomeAssistantStatus is where Home Assistant announces restarts
const TopicHomeAssistantStatus = "homeassistant/status"

// mqttSettings describes the broker connection
type mqttSettings struct {
	Broker            string
	Username          string
	Password          string
	ClientID          string
	AvailabilityTopic string
}

// brokerURL accepts "host", "host:port" or a full URL
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	if !strings.Contains(broker, ":") {
		broker += ":1883"
	}
	return "tcp://" + broker
}

// mqttWorker manages the MQTT connection. Every new connection is handed to
// the sender worker, and Home Assistant coming online is reported on haOnline.
func mqttWorker(
	ctx context.Context,
	settings mqttSettings,
	clientChan chan<- mqtt.Client,
	haOnline chan<- struct{},
) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(settings.Broker))
	opts.SetClientID(settings.ClientID)
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(settings.AvailabilityTopic, "offline", 1, true)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v\n", err)
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("Connected to MQTT broker at %s\n", settings.Broker)

		client.Publish(settings.AvailabilityTopic, 1, true, "online")

		select {
		case clientChan <- client:
			log.Println("Sent new MQTT client to sender worker")
		case <-ctx.Done():
			return
		}

		token := client.Subscribe(TopicHomeAssistantStatus, 0, func(client mqtt.Client, msg mqtt.Message) {
			if string(msg.Payload()) != "online" {
				return
			}
			log.Println("Home Assistant came online, republishing discovery")
			select {
			case haOnline <- struct{}{}:
			default:
				// A republish is already pending
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("Failed to subscribe to topic %s: %v\n", TopicHomeAssistantStatus, token.Error())
		} else {
			log.Printf("Subscribed to topic: %s\n", TopicHomeAssistantStatus)
		}
	})

	client := mqtt.NewClient(opts)

	log.Printf("Connecting to MQTT broker at %s...\n", settings.Broker)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("Failed to connect to MQTT broker: %v\n", token.Error())
		return
	}

	<-ctx.Done()

	if client.IsConnected() {
		client.Publish(settings.AvailabilityTopic, 1, true, "offline").WaitTimeout(time.Second)
		client.Disconnect(250)
		log.Println("Disconnected from MQTT broker")
	}
}
