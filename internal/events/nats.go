package events

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// HeaderAudience carries the comma-separated profile ids a message
// concerns, so subscribers can filter without decoding the payload.
const HeaderAudience = "Rendezvous-Audience"

const subscriberBuffer = 64

// NATSPublisher publishes JSON payloads on subjects named after their topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("rendezvous-server"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := encodeMsg(topic, payload)
	if err != nil {
		return err
	}
	return p.conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

func encodeMsg(topic string, payload any) (*nats.Msg, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if ids := Audience(payload); len(ids) > 0 {
		msg.Header.Set(HeaderAudience, strings.Join(ids, ","))
	}
	return msg, nil
}

func decodeMsg(msg *nats.Msg) Message {
	m := Message{Topic: msg.Subject, Data: msg.Data}
	if v := msg.Header.Get(HeaderAudience); v != "" {
		m.Audience = strings.Split(v, ",")
	}
	return m
}

// NATSSubscriber reads messages for the rv watch command. The connection
// reconnects forever.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url. opts are applied after the defaults,
// e.g. disconnect and reconnect handlers.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("rendezvous-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers every message on topic, which may use NATS wildcards
// such as TopicAll.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	return s.subscribe(topic, "")
}

// SubscribeFor delivers only the messages whose audience includes
// profileID.
func (s *NATSSubscriber) SubscribeFor(topic, profileID string) (<-chan Message, func(), error) {
	return s.subscribe(topic, profileID)
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// inbox is the receiving end of one subscription. Sends never block the
// NATS client: a full inbox drops the message.
type inbox struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func (b *inbox) deliver(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- m:
	default:
	}
}

func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

func (s *NATSSubscriber) subscribe(topic, profileID string) (<-chan Message, func(), error) {
	box := &inbox{ch: make(chan Message, subscriberBuffer)}

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		m := decodeMsg(msg)
		if profileID != "" && !slices.Contains(m.Audience, profileID) {
			return
		}
		box.deliver(m)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before messages published on
	// other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		_ = sub.Unsubscribe()
		box.close()
	}
	return box.ch, cancel, nil
}
