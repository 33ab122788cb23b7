package bus

import (
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) *Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(Topic{S("gnss"), S("state")})
	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("state")}, "hello", false))

	if got := recv(t, sub); got.Payload.(string) != "hello" {
		t.Errorf("expected payload 'hello', got %v", got.Payload)
	}
}

func TestIntTokensDistinguishDevices(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub0 := conn.Subscribe(Topic{S("gnss"), S("device"), I(0), S("added")})
	sub1 := conn.Subscribe(Topic{S("gnss"), S("device"), I(1), S("added")})

	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("device"), I(1), S("added")}, "dev1", false))

	if got := recv(t, sub1); got.Payload.(string) != "dev1" {
		t.Errorf("wrong payload on device 1: %v", got.Payload)
	}
	select {
	case m := <-sub0.Channel():
		t.Errorf("device 0 subscriber got %v", m.Payload)
	default:
	}
}

func TestRetainedMessageReplay(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("state")}, "persist", true))

	// Subscribe after the publish; the retained copy is replayed.
	sub := conn.Subscribe(Topic{S("gnss"), S("state")})
	if got := recv(t, sub); got.Payload.(string) != "persist" {
		t.Errorf("expected retained payload, got %v", got.Payload)
	}

	// A nil retained payload clears the slot.
	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("state")}, nil, true))
	sub2 := conn.Subscribe(Topic{S("gnss"), S("state")})
	select {
	case m := <-sub2.Channel():
		t.Errorf("expected cleared retained slot, got %v", m.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSingleLevelWildcard(t *testing.T) {
	b := NewBus(8)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(Topic{S("gnss"), S("device"), Plus, S("added")})

	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("device"), I(3), S("added")}, "three", false))
	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("device"), I(3), S("removed")}, "nope", false))
	conn.Publish(conn.NewMessage(Topic{S("gnss"), S("device"), I(9), S("added")}, "nine", false))

	if got := recv(t, sub); got.Payload.(string) != "three" {
		t.Errorf("first wildcard delivery: %v", got.Payload)
	}
	if got := recv(t, sub); got.Payload.(string) != "nine" {
		t.Errorf("second wildcard delivery: %v", got.Payload)
	}
	select {
	case m := <-sub.Channel():
		t.Errorf("wildcard matched wrong leaf: %v", m.Payload)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	topic := Topic{S("gnss"), S("state")}
	sub := conn.Subscribe(topic)
	conn.Unsubscribe(sub)

	conn.Publish(conn.NewMessage(topic, "late", false))
	if _, ok := <-sub.ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
}

func TestDropOldestOnFullQueue(t *testing.T) {
	b := NewBus(1)
	conn := b.NewConnection("test")

	topic := Topic{S("gnss"), S("state")}
	sub := conn.Subscribe(topic)
	conn.Publish(conn.NewMessage(topic, "first", false))
	conn.Publish(conn.NewMessage(topic, "second", false))

	if got := recv(t, sub); got.Payload.(string) != "second" {
		t.Errorf("expected newest message to survive, got %v", got.Payload)
	}
}

func TestDisconnectClosesAllSubscriptions(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	s1 := conn.Subscribe(Topic{S("a")})
	s2 := conn.Subscribe(Topic{S("b")})
	conn.Disconnect()

	for _, s := range []*Subscription{s1, s2} {
		if _, ok := <-s.ch; ok {
			t.Error("subscription channel still open after disconnect")
		}
	}
}
