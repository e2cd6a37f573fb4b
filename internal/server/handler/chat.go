package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/chat"
	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Assistant answers chat turns.
type Assistant interface {
	Reply(ctx context.Context, history []chat.Message) (chat.Message, error)
}

// ChatHandler serves the market assistant.
type ChatHandler struct {
	assistant Assistant
	logger    *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(assistant Assistant, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{assistant: assistant, logger: logHandler(logger, "chat")}
}

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

type chatResponse struct {
	Message chat.Message `json:"message"`
}

// Reply returns the assistant's next message.
// POST /api/chat {"messages":[{"role":"user","content":"..."}]}
func (h *ChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := h.assistant.Reply(r.Context(), req.Messages)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, chatResponse{Message: msg})
	case errors.Is(err, domain.ErrAssistantDisabled):
		writeError(w, http.StatusServiceUnavailable, "chat assistant is not configured")
	case errors.Is(err, chat.ErrInvalidHistory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "assistant reply failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "assistant unavailable")
	}
}
