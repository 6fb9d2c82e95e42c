package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"opposite-clock/internal/display"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Publisher mirrors board slots onto retained MQTT topics. It is a
// display.Sink.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Info().Msg("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(client, cfg.TopicPrefix), nil
}

func newPublisher(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: prefix,
		enabled:     true,
	}
}

// Topic returns the retained topic for a slot name.
func (p *Publisher) Topic(slot string) string {
	return fmt.Sprintf("%s/board/%s", p.topicPrefix, slot)
}

func (p *Publisher) SetText(slot display.TextSlot, value string) {
	p.publish(p.Topic(string(slot)), value)
}

func (p *Publisher) SetBackground(slot display.ImageSlot, url string) {
	p.publish(p.Topic(string(slot)), url)
}

// PublishSnapshot publishes the whole board as JSON on <prefix>/board/state.
func (p *Publisher) PublishSnapshot(snap display.Snapshot) error {
	if !p.enabled {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	token := p.client.Publish(p.Topic("state"), 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing snapshot")
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish snapshot: %w", token.Error())
	}
	return nil
}

func (p *Publisher) publish(topic, payload string) {
	if !p.enabled {
		return
	}
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
		return
	}
	if token.Error() != nil {
		log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
	}
}

// PublishHomeAssistantDiscovery announces the text slots as Home Assistant
// sensors.
func (p *Publisher) PublishHomeAssistantDiscovery() error {
	if !p.enabled {
		return nil
	}

	sensors := []struct {
		Name string
		Slot display.TextSlot
		Icon string
	}{
		{"Local City", display.UserCity, "mdi:map-marker"},
		{"Local Time", display.UserTime, "mdi:clock-outline"},
		{"Opposite Title", display.DisplayTitle, "mdi:theme-light-dark"},
		{"Opposite City", display.DestinationCity, "mdi:earth"},
		{"Opposite Time", display.DestinationTime, "mdi:clock-outline"},
		{"Opposite Timezone", display.DestinationTimezone, "mdi:map-clock"},
	}

	for _, sensor := range sensors {
		discoveryTopic := fmt.Sprintf("homeassistant/sensor/opposite_clock/%s/config", sensor.Slot)

		config := map[string]interface{}{
			"name":        fmt.Sprintf("Opposite Clock %s", sensor.Name),
			"unique_id":   fmt.Sprintf("opposite_clock_%s", sensor.Slot),
			"state_topic": p.Topic(string(sensor.Slot)),
			"icon":        sensor.Icon,
			"device": map[string]interface{}{
				"identifiers": []string{"opposite_clock"},
				"name":        "Opposite Clock",
			},
		}

		payload, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery for %s: %w", sensor.Slot, err)
		}
		token := p.client.Publish(discoveryTopic, 0, true, payload)
		token.WaitTimeout(publishTimeout)
		if token.Error() != nil {
			return fmt.Errorf("failed to publish discovery for %s: %w", sensor.Slot, token.Error())
		}
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
