package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"souq/cmd/internal/auth/gate"
)

// Handler exposes the chat read and write paths over HTTP. Both routes must
// be mounted behind gate.Require.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler constructs the chat HTTP handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the chat routes on mux.
func (h *Handler) Register(mux *http.ServeMux, require func(http.Handler) http.Handler) {
	mux.Handle("POST /conversations/{id}/messages", require(http.HandlerFunc(h.send)))
	mux.Handle("GET /conversations/{id}/messages", require(http.HandlerFunc(h.history)))
}

type sendRequest struct {
	Body        string `json:"body"`
	ClientMsgID string `json:"clientMsgId"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	subj, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	conversationID := r.PathValue("id")

	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes*2)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.svc.Send(r.Context(), subj.UserID, conversationID, req.ClientMsgID, req.Body)
	if err != nil {
		h.respondSendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	subj, ok := gate.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	conversationID := r.PathValue("id")

	beforeSeq, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.svc.History(r.Context(), subj.UserID, conversationID, beforeSeq, limit)
	if err != nil {
		if errors.Is(err, ErrBanned) || errors.Is(err, ErrNotMember) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		h.log.Error("chat.history.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handler) respondSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyBody), errors.Is(err, ErrBodyTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBanned), errors.Is(err, ErrMuted), errors.Is(err, ErrNotMember):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		h.log.Error("chat.send.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
