package chat

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"souq/cmd/internal/auth/gate"
	"souq/cmd/internal/users"
)

// testRequire fakes the auth middleware by installing a fixed subject.
func testRequire(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(gate.WithSubject(r.Context(), gate.Subject{UserID: userID})))
		})
	}
}

func newChatMux(t *testing.T, f *chatFixture, userID string) *http.ServeMux {
	t.Helper()

	h := NewHandler(f.svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	h.Register(mux, testRequire(userID))
	return mux
}

func TestHTTP_SendAndHistoryRoundTrip(t *testing.T) {
	f := newChatFixture(t)
	f.users.Put(users.Row{ID: "buyer", Email: "b@example.com"})
	f.members.Add("conv-1", "buyer")
	mux := newChatMux(t, f, "buyer")

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"body":"is it available?","clientMsgId":"key-1"}`)
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var sent Message
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	if sent.Seq != 1 || sent.Body != "is it available?" {
		t.Fatalf("sent = %+v", sent)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var page struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode history response: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].ID != sent.ID {
		t.Fatalf("history = %+v, want the sent message", page.Messages)
	}
}

func TestHTTP_SendRejectsOutsider(t *testing.T) {
	f := newChatFixture(t)
	f.users.Put(users.Row{ID: "outsider", Email: "o@example.com"})
	mux := newChatMux(t, f, "outsider")

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"body":"hi"}`)
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", body))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}
}

func TestHTTP_SendRejectsMalformedJSON(t *testing.T) {
	f := newChatFixture(t)
	f.users.Put(users.Row{ID: "buyer", Email: "b@example.com"})
	f.members.Add("conv-1", "buyer")
	mux := newChatMux(t, f, "buyer")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", strings.NewReader(`{`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
