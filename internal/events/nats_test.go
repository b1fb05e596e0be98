package events

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// pubSub connects a publisher and a subscriber to a fresh server.
func pubSub(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func standup(profiles ...string) *model.Event {
	return &model.Event{ID: "ev-1", Title: "Standup", Profiles: profiles}
}

func TestNATS_PublishCarriesAudience(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := pub.Publish(context.Background(), TopicEventCreated, EventCreated{Event: standup("pf-a", "pf-b")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := receive(t, ch)
	if msg.Topic != TopicEventCreated {
		t.Errorf("Topic = %q, want %q", msg.Topic, TopicEventCreated)
	}
	if !slices.Equal(msg.Audience, []string{"pf-a", "pf-b"}) {
		t.Errorf("Audience = %v, want [pf-a pf-b]", msg.Audience)
	}
	var got EventCreated
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Event.Title != "Standup" {
		t.Errorf("Title = %q, want Standup", got.Event.Title)
	}
}

func TestNATS_SubscribeForFiltersByAudience(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.SubscribeFor(TopicAll, "pf-b")
	if err != nil {
		t.Fatalf("SubscribeFor: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	must := func(topic string, payload any) {
		t.Helper()
		if err := pub.Publish(ctx, topic, payload); err != nil {
			t.Fatalf("Publish(%s): %v", topic, err)
		}
	}
	must(TopicProfileCreated, ProfileCreated{Profile: &model.Profile{ID: "pf-a"}})
	must(TopicEventCreated, EventCreated{Event: standup("pf-a")})
	// pf-b was removed by this update, so it still hears about it.
	must(TopicEventUpdated, EventUpdated{
		Event: standup("pf-a"),
		Entry: model.UpdateLogEntry{Previous: model.Snapshot{Profiles: []string{"pf-a", "pf-b"}}},
	})

	if msg := receive(t, ch); msg.Topic != TopicEventUpdated {
		t.Fatalf("first delivered topic = %q, want %q", msg.Topic, TopicEventUpdated)
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q", msg.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATS_RawMessageWithoutAudience(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := pub.conn.Publish(TopicProfileUpdated, []byte(`{}`)); err != nil {
		t.Fatalf("raw publish: %v", err)
	}
	if msg := receive(t, ch); msg.Audience != nil {
		t.Errorf("Audience = %v, want nil", msg.Audience)
	}
}

func TestNATS_PublishAfterClose(t *testing.T) {
	pub, _ := pubSub(t)
	pub.Close()
	if err := pub.Publish(context.Background(), TopicEventCreated, EventCreated{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNATS_CanceledContext(t *testing.T) {
	pub, _ := pubSub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicEventCreated, EventCreated{}); err == nil {
		t.Error("expected error publishing with a canceled context")
	}
}

func TestNATS_CancelClosesChannel(t *testing.T) {
	pub, sub := pubSub(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.Publish(context.Background(), TopicEventUpdated, EventUpdated{Event: standup("pf-a")})
		}
	}()
	cancel()
	cancel() // idempotent
	<-done

	for range ch {
	}
}

func TestNATS_SubscriberOptions(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url, nats.ReconnectHandler(func(*nats.Conn) {}))
	if err != nil {
		t.Fatalf("NewNATSSubscriber: %v", err)
	}
	defer sub.Close()
	if !sub.conn.IsConnected() {
		t.Fatal("expected subscriber to be connected")
	}
	if got := sub.conn.Opts.Name; got != "rendezvous-watch" {
		t.Errorf("connection name = %q", got)
	}
}
