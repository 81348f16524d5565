package push

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestPublisher_FansOutStoredMessage(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	pub := NewPublisher(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	conn := NewConnection("buyer", 8)
	reg.Subscribe(conn, "conv-1")
	waitEnvelope(t, conn) // connected

	view := MessageView{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "seller",
		Body:           "still available?",
		CreatedAt:      time.Now().UTC(),
	}
	if n := pub.Publish("conv-1", view); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	env := waitEnvelope(t, conn)
	if env.Type != EventMessage {
		t.Fatalf("type = %q, want message", env.Type)
	}
	if env.ChannelID != "conv-1" {
		t.Fatalf("channelId = %q, want conv-1", env.ChannelID)
	}

	var got MessageView
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if got.ID != view.ID || got.SenderID != view.SenderID || got.Body != view.Body {
		t.Fatalf("got %+v, want %+v", got, view)
	}
}

func TestPublisher_NoSubscribersIsQuietNoOp(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	pub := NewPublisher(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	view := MessageView{ID: "msg-1", ConversationID: "conv-9", SenderID: "u1", Body: "hello"}
	if n := pub.Publish("conv-9", view); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
}
