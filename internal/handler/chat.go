package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/magami/pmai/internal/auth"
	"github.com/magami/pmai/internal/middleware"
	"github.com/magami/pmai/internal/service"
)

// ChatHandler serves the chat endpoint and the exchange history.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
	Lang    string `json:"lang"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Mode  string `json:"mode"`
	Lang  string `json:"lang"`
}

// HandleSubmit processes one chat message.
//
// HTTP: POST /api/chat  (optional auth)
// REQUEST BODY: {"message":"...","mode":"chatbox","lang":"en"}
// RESPONSE: {"reply":"...","mode":"chatbox","lang":"en"}
//
// Anonymous requests are welcome: identity comes from the session cookie
// when present, otherwise the guest cookie identifies the visitor for the
// free-message quota. The response always carries a usable reply — gateway
// failures are absorbed by the service's fallback replies.
func (h *ChatHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	accountID, _ := auth.AccountIDFromContext(r.Context())
	guestID, _ := middleware.GuestIDFromContext(r.Context())

	exchange, err := h.chat.Submit(r.Context(), service.SubmitInput{
		AccountID: accountID,
		GuestID:   guestID,
		Mode:      req.Mode,
		Language:  req.Lang,
		Text:      req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply: exchange.Output,
		Mode:  exchange.Mode,
		Lang:  exchange.Language,
	})
}

// HandleHistory returns the caller's exchanges, newest first.
//
// HTTP: GET /api/history?limit=20  (requires auth)
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	exchanges, err := h.chat.History(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exchanges)
}
