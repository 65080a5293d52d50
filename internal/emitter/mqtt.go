// internal/emitter/mqtt.go
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"myo-recorder/internal/config"
	"myo-recorder/internal/model"
)

const (
	publishTimeout    = 2 * time.Second
	disconnectQuiesce = 250
)

// ErrNotConnected is returned when publishing without a broker connection
var ErrNotConnected = errors.New("mqtt not connected")

// Subscriber is the part of the event bus the emitter reads from
type Subscriber interface {
	Subscribe(eventType model.EventType) (<-chan model.Event, func())
}

// MQTTEmitter publishes lifecycle events to an MQTT broker as JSON, one
// topic per event type
type MQTTEmitter struct {
	cfg    *config.MQTTConfig
	client mqtt.Client
	logger *zap.Logger

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
}

// NewMQTTEmitter creates an emitter with a paho client built from cfg.
// The client reconnects on its own after the first Connect.
func NewMQTTEmitter(cfg *config.MQTTConfig, logger *zap.Logger) *MQTTEmitter {
	e := &MQTTEmitter{
		cfg:       cfg,
		logger:    logger.Named("mqtt"),
		published: make(map[string]uint64),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)

	opts.OnConnect = func(mqtt.Client) {
		e.logger.Info("MQTT connection established",
			zap.String("broker", cfg.Broker),
			zap.String("client_id", cfg.ClientID),
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.logger.Warn("MQTT connection lost, waiting for automatic reconnection",
			zap.Error(err),
			zap.String("broker", cfg.Broker),
		)
	}

	e.client = mqtt.NewClient(opts)
	return e
}

// NewMQTTEmitterWithClient creates an emitter around an existing client
func NewMQTTEmitterWithClient(cfg *config.MQTTConfig, client mqtt.Client, logger *zap.Logger) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		client:    client,
		logger:    logger.Named("mqtt"),
		published: make(map[string]uint64),
	}
}

// Connect connects to the broker, waiting at most the configured timeout
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	e.logger.Info("Connecting to MQTT broker", zap.String("broker", e.cfg.Broker))

	timeout := e.cfg.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := e.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Topic returns the topic an event type is published on
func (e *MQTTEmitter) Topic(eventType model.EventType) string {
	return strings.TrimSuffix(e.cfg.TopicPrefix, "/") + "/" + strings.ToLower(string(eventType))
}

// Publish publishes one lifecycle event
func (e *MQTTEmitter) Publish(event model.Event) error {
	if !e.client.IsConnected() {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := e.Topic(event.Type)
	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	e.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.Int("size", len(payload)),
	)
	return nil
}

// Run publishes every event from bus until ctx is done or the
// subscription is closed. Publish failures are logged and counted.
func (e *MQTTEmitter) Run(ctx context.Context, bus Subscriber) {
	events, unsubscribe := bus.Subscribe(model.EventAll)
	defer unsubscribe()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := e.Publish(event); err != nil {
				e.logger.Warn("Failed to publish event",
					zap.String("event_type", string(event.Type)),
					zap.Error(err),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close disconnects from the broker
func (e *MQTTEmitter) Close() {
	if e.client.IsConnected() {
		e.client.Disconnect(disconnectQuiesce)
		e.logger.Info("MQTT disconnected")
	}
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for topic, count := range e.published {
		published[topic] = count
	}

	return Stats{
		Connected: e.client.IsConnected(),
		Published: published,
		Errors:    e.errors,
	}
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
