package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/rotary-encoder/internal/logic"
	"go.uber.org/zap"
)

// bufferCapacity bounds the messages held while the broker is unreachable.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed in order
// once the connection is back. Until the replay is done, new messages queue
// behind it.
type RealPublisher struct {
	client paho.Client
	name   string
	log    *zap.Logger

	mu          sync.Mutex
	buf         *ringBuffer
	draining    bool
	everOnline  bool
	reconnected func()
}

func newPublisher(name string, log *zap.Logger) *RealPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &RealPublisher{
		name: name,
		log:  log.Named("mqtt"),
	}
	p.buf = newRingBuffer(bufferCapacity, p.log)
	return p
}

// NewRealPublisher creates a publisher for the named encoder. If the broker
// is not reachable within the connect timeout the publisher keeps retrying
// in the background and buffers until it succeeds.
func NewRealPublisher(broker, name string, log *zap.Logger) (*RealPublisher, error) {
	p := newPublisher(name, log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("rotary-encoder-" + name).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem(name), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.log.Warn("broker not reachable yet, buffering", zap.String("broker", broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// OnReconnect registers fn to run after every reconnection (not the first
// connection). It runs on the paho callback goroutine.
func (p *RealPublisher) OnReconnect(fn func()) {
	p.mu.Lock()
	p.reconnected = fn
	p.mu.Unlock()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	first := !p.everOnline
	p.everOnline = true
	p.draining = true
	fn := p.reconnected
	p.mu.Unlock()

	// Messages sent during the replay land in the buffer, so loop until it
	// stays empty.
	replayed := 0
	for {
		p.mu.Lock()
		batch := p.buf.drainAll()
		if len(batch) == 0 {
			p.draining = false
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for _, m := range batch {
			c.Publish(m.topic, m.qos, m.retained, m.payload)
		}
		replayed += len(batch)
	}
	p.log.Info("connected", zap.Int("replayed", replayed), zap.Bool("reconnect", !first))

	if !first && fn != nil {
		fn()
	}
}

// Publish sends a step event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(p.name, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic(p.name), payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{topic: TopicSystem(p.name), payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	// paho reports the connection open before onConnect has replayed the
	// buffer; anything sent in that window must queue behind the replay.
	p.mu.Lock()
	if p.draining || p.buf.len() > 0 || !p.client.IsConnectionOpen() {
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns how many messages are waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns how many buffered messages were overwritten because the
// broker stayed unreachable for too long.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.droppedTotal()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.log.Warn("closing with unsent messages", zap.Int("buffered", n))
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
