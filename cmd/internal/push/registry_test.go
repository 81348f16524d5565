package push

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestRegistry(t *testing.T, heartbeatEvery time.Duration) *Registry {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := NewRegistry(log, heartbeatEvery, NewMetrics(prometheus.NewRegistry()))
	t.Cleanup(reg.Close)
	return reg
}

func waitEnvelope(t *testing.T, conn *Connection) Envelope {
	t.Helper()

	select {
	case env := <-conn.Send:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for envelope on connection %s", conn.ID)
		return Envelope{}
	}
}

func waitDone(t *testing.T, conn *Connection) {
	t.Helper()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection %s to close", conn.ID)
	}
}

func TestSubscribe_EmitsConnectedToNewConnectionOnly(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	first := NewConnection("u1", 8)
	reg.Subscribe(first, "conv-1")
	if env := waitEnvelope(t, first); env.Type != EventConnected || env.ChannelID != "conv-1" {
		t.Fatalf("got %q on %q, want connected on conv-1", env.Type, env.ChannelID)
	}

	second := NewConnection("u2", 8)
	reg.Subscribe(second, "conv-1")
	if env := waitEnvelope(t, second); env.Type != EventConnected {
		t.Fatalf("got %q, want connected", env.Type)
	}

	// The earlier subscriber must not see the newcomer's admission.
	select {
	case env := <-first.Send:
		t.Fatalf("unexpected envelope %q on first connection", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcast_DeliversToEverySubscriberExactlyOnce(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	conns := make([]*Connection, 0, 3)
	for _, user := range []string{"u1", "u2", "u3"} {
		c := NewConnection(user, 8)
		reg.Subscribe(c, "conv-1")
		waitEnvelope(t, c) // connected
		conns = append(conns, c)
	}

	outsider := NewConnection("u4", 8)
	reg.Subscribe(outsider, "conv-2")
	waitEnvelope(t, outsider)

	n := reg.Broadcast("conv-1", NewEnvelope(EventMessage, "conv-1", MarshalData("hi"), time.Now()))
	if n != 3 {
		t.Fatalf("delivered = %d, want 3", n)
	}
	for _, c := range conns {
		env := waitEnvelope(t, c)
		if env.Type != EventMessage || env.ChannelID != "conv-1" {
			t.Fatalf("got %q on %q, want message on conv-1", env.Type, env.ChannelID)
		}
		select {
		case extra := <-c.Send:
			t.Fatalf("duplicate delivery %q on connection %s", extra.Type, c.ID)
		default:
		}
	}

	select {
	case env := <-outsider.Send:
		t.Fatalf("cross-conversation leak: %q reached conv-2 subscriber", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_ConnectedPrecedesConcurrentBroadcasts(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	// Hammer the conversation from another goroutine while subscribing. The
	// connected event is queued under the registry lock, so no broadcast may
	// land ahead of it.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		env := NewEnvelope(EventMessage, "conv-1", nil, time.Now())
		for {
			select {
			case <-stop:
				return
			default:
				reg.Broadcast("conv-1", env)
			}
		}
	}()

	conn := NewConnection("u1", 64)
	reg.Subscribe(conn, "conv-1")
	close(stop)
	<-done

	if env := waitEnvelope(t, conn); env.Type != EventConnected {
		t.Fatalf("first envelope = %q, want connected", env.Type)
	}
}

func TestBroadcast_ZeroSubscribersIsNoOp(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	if n := reg.Broadcast("nobody-home", NewEnvelope(EventMessage, "nobody-home", nil, time.Now())); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
}

func TestBroadcast_PerConnectionOrderPreserved(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	conn := NewConnection("u1", 32)
	reg.Subscribe(conn, "conv-1")
	waitEnvelope(t, conn)

	for i := 0; i < 10; i++ {
		body := MarshalData(i)
		if n := reg.Broadcast("conv-1", NewEnvelope(EventMessage, "conv-1", body, time.Now())); n != 1 {
			t.Fatalf("broadcast %d delivered = %d, want 1", i, n)
		}
	}
	for i := 0; i < 10; i++ {
		env := waitEnvelope(t, conn)
		if string(env.Data) != string(MarshalData(i)) {
			t.Fatalf("out of order: got %s at position %d", env.Data, i)
		}
	}
}

func TestBroadcast_SaturatedConnectionIsPrunedOthersUnaffected(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	// The stuck connection never drains; its connected event fills the queue.
	stuck := NewConnection("u1", 1)
	reg.Subscribe(stuck, "conv-1")

	healthy := NewConnection("u2", 8)
	reg.Subscribe(healthy, "conv-1")
	waitEnvelope(t, healthy)

	if n := reg.Broadcast("conv-1", NewEnvelope(EventMessage, "conv-1", nil, time.Now())); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	waitDone(t, stuck)
	if env := waitEnvelope(t, healthy); env.Type != EventMessage {
		t.Fatalf("got %q, want message", env.Type)
	}

	counts := reg.SubscriptionCounts()
	if counts["conv-1"] != 1 {
		t.Fatalf("conv-1 count = %d, want 1 after prune", counts["conv-1"])
	}
}

func TestUnsubscribe_IdempotentAndPrunesEmptySets(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	conn := NewConnection("u1", 8)
	reg.Subscribe(conn, "conv-1")
	reg.Subscribe(conn, "conv-2")

	reg.Unsubscribe(conn)
	reg.Unsubscribe(conn)
	reg.Unsubscribe(conn)

	if counts := reg.SubscriptionCounts(); len(counts) != 0 {
		t.Fatalf("counts = %v, want empty after unsubscribe", counts)
	}
	select {
	case <-conn.Done():
	default:
		t.Fatal("connection not signalled closed")
	}
}

func TestSubscribeAll_ReplacesPreviousUserSlot(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	old := NewConnection("u1", 8)
	reg.SubscribeAll(old, []string{"conv-1", "conv-2"})
	waitEnvelope(t, old)

	replacement := NewConnection("u1", 8)
	reg.SubscribeAll(replacement, []string{"conv-1", "conv-2"})

	waitDone(t, old)

	if env := waitEnvelope(t, replacement); env.Type != EventConnected || env.ChannelID != "" {
		t.Fatalf("got %q on %q, want connected with empty channel", env.Type, env.ChannelID)
	}

	if n := reg.Broadcast("conv-2", NewEnvelope(EventMessage, "conv-2", nil, time.Now())); n != 1 {
		t.Fatalf("delivered = %d, want only the replacement", n)
	}
}

func TestHeartbeat_PrunesConnectionThatStoppedDraining(t *testing.T) {
	reg := newTestRegistry(t, 10*time.Millisecond)

	// Queue of one: the connected event occupies it, so the first heartbeat
	// cannot be enqueued and the connection must be pruned.
	conn := NewConnection("u1", 1)
	reg.Subscribe(conn, "conv-1")

	waitDone(t, conn)
	if counts := reg.SubscriptionCounts(); counts["conv-1"] != 0 {
		t.Fatalf("conv-1 count = %d, want 0 after heartbeat prune", counts["conv-1"])
	}
}

func TestHeartbeat_DeliveredToHealthyConnection(t *testing.T) {
	reg := newTestRegistry(t, 10*time.Millisecond)

	conn := NewConnection("u1", 8)
	reg.Subscribe(conn, "conv-1")
	waitEnvelope(t, conn) // connected

	if env := waitEnvelope(t, conn); env.Type != EventHeartbeat {
		t.Fatalf("got %q, want heartbeat", env.Type)
	}
}

func TestClose_TearsDownAndRefusesNewSubscriptions(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)

	conn := NewConnection("u1", 8)
	reg.Subscribe(conn, "conv-1")
	waitEnvelope(t, conn)

	reg.Close()
	waitDone(t, conn)

	if env := waitEnvelope(t, conn); env.Type != EventError {
		t.Fatalf("got %q, want error envelope on shutdown", env.Type)
	}

	late := NewConnection("u2", 8)
	reg.Subscribe(late, "conv-1")
	waitDone(t, late)
	if counts := reg.SubscriptionCounts(); len(counts) != 0 {
		t.Fatalf("counts = %v, want empty after close", counts)
	}
}
