// Package emitter publishes fps samples to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dotos-lab/sysuid/internal/model"
)

// Payload is the JSON body of one sample message.
type Payload struct {
	FPS int    `json:"fps"`
	Seq uint64 `json:"seq"`
	TS  int64  `json:"ts"`
}

// Encode builds the message body for smp. ts is milliseconds since epoch.
func Encode(smp model.Sample) ([]byte, error) {
	return json.Marshal(Payload{
		FPS: smp.Value,
		Seq: smp.Seq,
		TS:  smp.Timestamp.UnixMilli(),
	})
}

// MQTTEmitter publishes samples at QoS 0. Samples are dropped while the
// broker is unreachable.
type MQTTEmitter struct {
	broker   string
	topic    string
	clientID string
	log      *slog.Logger
	client   mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	dropped   uint64
}

// NewMQTTEmitter prepares an emitter for broker (host:port).
func NewMQTTEmitter(broker, topic string, log *slog.Logger) *MQTTEmitter {
	if log == nil {
		log = slog.Default()
	}
	id := "sysuid-" + uuid.NewString()[:8]
	return &MQTTEmitter{
		broker:   broker,
		topic:    topic,
		clientID: id,
		log:      log.With("component", "emitter", "broker", broker),
	}
}

// Connect dials the broker. Reconnection afterwards is automatic.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.broker))
	opts.SetClientID(e.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.log.Info("mqtt connection established", "client_id", e.clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}
	e.client = mqtt.NewClient(opts)

	e.log.Info("connecting to mqtt broker")
	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// Publish hands smp to the client without waiting for delivery.
func (e *MQTTEmitter) Publish(smp model.Sample) {
	if !e.isConnected() {
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		return
	}
	payload, err := Encode(smp)
	if err != nil {
		e.log.Warn("encode sample", "error", err)
		return
	}
	e.client.Publish(e.topic, 0, false, payload)
	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	e.log.Debug("sample published", "topic", e.topic, "seq", smp.Seq)
}

// Disconnect closes the broker connection.
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.log.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats reports published and dropped sample counts.
func (e *MQTTEmitter) Stats() (published, dropped uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.dropped
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}
