// Package broadcast publishes conversation and message events onto two
// channel families: a per-user subject for personal notifications and a
// per-conversation subject for live chat updates. Delivery is best-effort
// and at-most-once — the durable store, not this package, is the source of
// truth, and a publish with no live subscriber is simply a no-op.
package broadcast

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/foundly/contact-service/internal/metrics"
)

// NATS subject patterns for the two channel families.
const (
	SubjectUser         = "user"         // + .<user_id>
	SubjectConversation = "conversation" // + .<conversation_id>
)

// Broadcaster is the publish side consumed by the domain services. Publishes
// are fire-and-forget: failures are logged, never returned, so they cannot
// fail the originating request.
type Broadcaster interface {
	ToUser(userID string, eventType string, payload interface{})
	ToConversation(conversationID string, eventType string, payload interface{})
}

// NATSBroadcaster fans events out over NATS so that every gateway instance
// sees them regardless of which instance handled the originating request.
type NATSBroadcaster struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string][]*nats.Subscription // owner key -> live subscriptions
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "contact-service",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Connect establishes the NATS connection and returns a ready broadcaster.
func Connect(config Config) (*NATSBroadcaster, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("broadcast: nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSBroadcaster{
		conn: nc,
		subs: make(map[string][]*nats.Subscription),
	}, nil
}

// ToUser publishes an event envelope to the user's personal subject.
func (b *NATSBroadcaster) ToUser(userID string, eventType string, payload interface{}) {
	b.publish(SubjectUser+"."+userID, eventType, payload)
}

// ToConversation publishes an event envelope to the conversation's subject.
func (b *NATSBroadcaster) ToConversation(conversationID string, eventType string, payload interface{}) {
	b.publish(SubjectConversation+"."+conversationID, eventType, payload)
}

func (b *NATSBroadcaster) publish(subject string, eventType string, payload interface{}) {
	data, err := MarshalEvent(eventType, payload)
	if err != nil {
		log.Printf("[nats] build %s event for %s: %v", eventType, subject, err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		log.Printf("[nats] publish %s to %s: %v", eventType, subject, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// SubscribeUser subscribes a gateway connection to its user's personal
// subject. The subscription is tracked under ownerKey so that
// UnsubscribeOwner can tear it down when the connection closes.
func (b *NATSBroadcaster) SubscribeUser(ownerKey, userID string, handler func(data []byte)) error {
	return b.subscribe(ownerKey, SubjectUser+"."+userID, handler)
}

// SubscribeConversation subscribes a gateway connection to a conversation
// subject, tracked under ownerKey.
func (b *NATSBroadcaster) SubscribeConversation(ownerKey, conversationID string, handler func(data []byte)) error {
	return b.subscribe(ownerKey, SubjectConversation+"."+conversationID, handler)
}

func (b *NATSBroadcaster) subscribe(ownerKey, subject string, handler func(data []byte)) error {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("broadcast: subscribe %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs[ownerKey] = append(b.subs[ownerKey], sub)
	b.mu.Unlock()
	return nil
}

// UnsubscribeOwner removes every subscription registered under ownerKey.
// Unknown keys are a no-op.
func (b *NATSBroadcaster) UnsubscribeOwner(ownerKey string) {
	b.mu.Lock()
	subs := b.subs[ownerKey]
	delete(b.subs, ownerKey)
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("[nats] unsubscribe for %s: %v", ownerKey, err)
		}
	}
}

// Close drains all subscriptions and the connection.
func (b *NATSBroadcaster) Close() {
	b.mu.Lock()
	for key, subs := range b.subs {
		for _, sub := range subs {
			if err := sub.Drain(); err != nil {
				log.Printf("[nats] drain %s: %v", key, err)
			}
		}
	}
	b.subs = make(map[string][]*nats.Subscription)
	b.mu.Unlock()

	if err := b.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] broadcaster closed")
}

// Nop is a Broadcaster that discards every event. Used in tests and as a
// stand-in when the real-time layer is disabled.
type Nop struct{}

func (Nop) ToUser(string, string, interface{})         {}
func (Nop) ToConversation(string, string, interface{}) {}
