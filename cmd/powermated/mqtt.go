package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTT topics, relative to mqtt.topic_prefix.
const (
	topicEvents   = "events"    // knob events
	topicLEDSet   = "led/set"   // inbound brightness commands
	topicLEDState = "led/state" // retained remembered brightness
	topicStatus   = "status"    // retained online/offline (LWT)
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttKeepAlive      = 30 * time.Second
)

func mqttTopic(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// EventPayload is the MQTT message payload for a knob event.
type EventPayload struct {
	Timestamp string    `json:"timestamp"`
	Event     string    `json:"event"`
	Raw       *rawEvent `json:"raw,omitempty"`
}

// FormatEventPayload creates the JSON payload for a knob event.
func FormatEventPayload(ev knobEvent) ([]byte, error) {
	return json.Marshal(EventPayload{
		Timestamp: ev.At.UTC().Format(time.RFC3339Nano),
		Event:     ev.Event,
		Raw:       ev.Raw,
	})
}

// ParseBrightnessPayload accepts a bare integer ("128") or {"brightness":128}.
func ParseBrightnessPayload(b []byte) (int, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, errors.New("empty brightness payload")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}

	var obj struct {
		Brightness *int `json:"brightness"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj.Brightness == nil {
		return 0, fmt.Errorf("invalid brightness payload: %q", s)
	}
	return *obj.Brightness, nil
}

// MQTTPublisher publishes knob events to a broker and forwards brightness
// commands received on <prefix>/led/set.
type MQTTPublisher struct {
	client paho.Client
	prefix string
	qos    byte
	logger *slog.Logger
}

// NewMQTTPublisher connects to the broker. onSet is called (on its own
// goroutine) for every valid brightness command.
func NewMQTTPublisher(cfg MQTTConfig, onSet func(level int), logger *slog.Logger) (*MQTTPublisher, error) {
	p := &MQTTPublisher{
		prefix: cfg.TopicPrefix,
		qos:    byte(cfg.QoS),
		logger: logger,
	}

	statusTopic := mqttTopic(cfg.TopicPrefix, topicStatus)
	setTopic := mqttTopic(cfg.TopicPrefix, topicLEDSet)

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(mqttKeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(statusTopic, "offline", 1, true)

	// Subscriptions are re-established on every (re)connect.
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
		c.Publish(statusTopic, 1, true, "online")

		c.Subscribe(setTopic, p.qos, func(_ paho.Client, m paho.Message) {
			level, err := ParseBrightnessPayload(m.Payload())
			if err != nil {
				logger.Warn("ignoring mqtt brightness command", "topic", m.Topic(), "error", err)
				return
			}
			logger.Debug("mqtt brightness command", "level", level)
			// Never block the paho router.
			go onSet(level)
		})
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishEvent sends a knob event to <prefix>/events.
func (p *MQTTPublisher) PublishEvent(ev knobEvent) error {
	payload, err := FormatEventPayload(ev)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	token := p.client.Publish(mqttTopic(p.prefix, topicEvents), p.qos, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishBrightness retains the remembered level on <prefix>/led/state.
// It does not wait for delivery: it may run inside a paho callback.
func (p *MQTTPublisher) PublishBrightness(level int) error {
	p.client.Publish(mqttTopic(p.prefix, topicLEDState), p.qos, true, strconv.Itoa(level))
	return nil
}

// Close marks the daemon offline and disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	token := p.client.Publish(mqttTopic(p.prefix, topicStatus), 1, true, "offline")
	token.WaitTimeout(time.Second)
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
