// Package events carries domain messages about profiles and events to
// other processes over NATS.
package events

import (
	"context"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// Message topic constants
const (
	TopicProfileCreated = "rendezvous.profile.created"
	TopicProfileUpdated = "rendezvous.profile.updated"
	TopicEventCreated   = "rendezvous.event.created"
	TopicEventUpdated   = "rendezvous.event.updated"

	// TopicAll matches every topic above.
	TopicAll = "rendezvous.>"
)

// Topics lists every concrete topic.
var Topics = []string{
	TopicProfileCreated,
	TopicProfileUpdated,
	TopicEventCreated,
	TopicEventUpdated,
}

// Message payloads

type ProfileCreated struct {
	Profile *model.Profile `json:"profile"`
}

type ProfileUpdated struct {
	Profile *model.Profile `json:"profile"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type EventCreated struct {
	Event *model.Event `json:"event"`
}

// EventUpdated carries the event after the update and the ledger entry the
// update appended.
type EventUpdated struct {
	Event   *model.Event         `json:"event"`
	Entry   model.UpdateLogEntry `json:"entry"`
	Changes []string             `json:"changes"`
}

// Audience returns the profile ids a payload concerns, used to filter
// per-profile streams. Profile messages concern the profile itself; event
// messages concern every participant, before and after an update.
func Audience(payload any) []string {
	switch p := payload.(type) {
	case ProfileCreated:
		if p.Profile != nil {
			return []string{p.Profile.ID}
		}
	case ProfileUpdated:
		if p.Profile != nil {
			return []string{p.Profile.ID}
		}
	case EventCreated:
		if p.Event != nil {
			return p.Event.Profiles
		}
	case EventUpdated:
		ids := append([]string{}, p.Entry.Previous.Profiles...)
		if p.Event != nil {
			ids = append(ids, p.Event.Profiles...)
		}
		return model.DedupeProfiles(ids)
	}
	return nil
}

// Publisher is the interface for emitting messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// NoopPublisher drops every message. The server falls back to it when no
// NATS URL is configured; SSE clients are fed regardless.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }

// Message is one payload received from the bus.
type Message struct {
	Topic    string
	Data     []byte
	Audience []string
}

// Subscriber receives messages from the bus. Closing the returned cancel
// function unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(topic string) (<-chan Message, func(), error)
	SubscribeFor(topic, profileID string) (<-chan Message, func(), error)
	Close() error
}
