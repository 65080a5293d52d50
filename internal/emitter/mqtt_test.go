package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"myo-recorder/internal/config"
	"myo-recorder/internal/model"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.timeout {
		close(ch)
	}
	return ch
}

type publishedMessage struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the mqtt.Client methods the emitter uses
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishToken *fakeToken
	messages     []publishedMessage
	disconnects  int
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr == nil {
		c.connected = true
	}
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishToken != nil {
		return c.publishToken
	}
	c.messages = append(c.messages, publishedMessage{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) published() []publishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedMessage(nil), c.messages...)
}

// fakeBus hands out one channel the test feeds directly
type fakeBus struct {
	events       chan model.Event
	unsubscribed chan struct{}
}

func (b *fakeBus) Subscribe(eventType model.EventType) (<-chan model.Event, func()) {
	return b.events, func() { close(b.unsubscribed) }
}

func testConfig() *config.MQTTConfig {
	return &config.MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ClientID:       "test",
		TopicPrefix:    "myo/events/",
		QoS:            1,
		ConnectTimeout: time.Second,
	}
}

func TestTopic(t *testing.T) {
	e := NewMQTTEmitterWithClient(testConfig(), &fakeClient{}, zap.NewNop())

	if got := e.Topic(model.EventReconnectExhausted); got != "myo/events/reconnect_exhausted" {
		t.Errorf("Topic = %q", got)
	}
}

func TestPublishEncodesEvent(t *testing.T) {
	client := &fakeClient{connected: true}
	e := NewMQTTEmitterWithClient(testConfig(), client, zap.NewNop())

	event := model.NewEvent(model.EventFault, "acquisition", model.SeverityWarning,
		model.FaultEventData{Reason: model.FaultWatchdog, ErrorMessage: "no activity", Streak: 2})
	if err := e.Publish(event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages := client.published()
	if len(messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(messages))
	}
	if messages[0].topic != "myo/events/fault" || messages[0].qos != 1 {
		t.Errorf("message = %s qos %d", messages[0].topic, messages[0].qos)
	}

	var decoded struct {
		Type string                 `json:"event_type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(messages[0].payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded.Type != "FAULT" || decoded.Data["reason"] != string(model.FaultWatchdog) {
		t.Errorf("payload = %+v", decoded)
	}

	stats := e.Stats()
	if stats.Published["myo/events/fault"] != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPublishFailures(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"not connected", &fakeClient{}, ErrNotConnected},
		{"timeout", &fakeClient{connected: true, publishToken: &fakeToken{timeout: true}}, nil},
		{"broker error", &fakeClient{connected: true, publishToken: &fakeToken{err: errors.New("refused")}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewMQTTEmitterWithClient(testConfig(), tt.client, zap.NewNop())

			err := e.Publish(model.NewEvent(model.EventEpochOpened, "test", model.SeverityInfo, nil))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if e.Stats().Errors != 1 {
				t.Errorf("errors = %d, want 1", e.Stats().Errors)
			}
		})
	}
}

func TestConnect(t *testing.T) {
	client := &fakeClient{}
	e := NewMQTTEmitterWithClient(testConfig(), client, zap.NewNop())
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !e.Stats().Connected {
		t.Error("expected connected")
	}

	e.Close()
	if client.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", client.disconnects)
	}

	failing := NewMQTTEmitterWithClient(testConfig(), &fakeClient{connectErr: errors.New("refused")}, zap.NewNop())
	if err := failing.Connect(context.Background()); err == nil {
		t.Error("expected connect error")
	}
}

func TestRunForwardsUntilCancelled(t *testing.T) {
	client := &fakeClient{connected: true}
	e := NewMQTTEmitterWithClient(testConfig(), client, zap.NewNop())
	bus := &fakeBus{events: make(chan model.Event, 4), unsubscribed: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, bus)
		close(done)
	}()

	bus.events <- model.NewEvent(model.EventEpochOpened, "test", model.SeverityInfo, nil)
	bus.events <- model.NewEvent(model.EventEpochClosed, "test", model.SeverityInfo, nil)

	deadline := time.Now().Add(2 * time.Second)
	for len(client.published()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d events, want 2", len(client.published()))
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-bus.unsubscribed:
	default:
		t.Error("Run did not unsubscribe")
	}
}
