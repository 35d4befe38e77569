package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/genai-gateway/middleware"
	"github.com/upb/genai-gateway/services/generation"
	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/utils"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model" validate:"required"`
	Messages    []ChatMessage `json:"messages" validate:"required,dive"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// ChatMessage represents a single chat message
type ChatMessage struct {
	Role    string      `json:"role" validate:"required"`
	Content ChatContent `json:"content"`
}

// ChatContent is message text. It decodes either a plain string or an
// array of content parts, keeping only the text parts.
type ChatContent string

// UnmarshalJSON implements json.Unmarshaler
func (c *ChatContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ChatContent(s)
		return nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return errors.New("content must be a string or an array of content parts")
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	*c = ChatContent(strings.Join(texts, "\n"))
	return nil
}

// ChatCompletionResponse represents an OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice represents a completion choice
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a choice
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompleter runs one completion on the channel the model resolves to
type ChatCompleter interface {
	Complete(ctx context.Context, model string, req providers.LLMRequest, creds generation.Credentials) (*generation.ChatResponse, error)
}

// ChatHandler handles chat completion HTTP requests
type ChatHandler struct {
	service ChatCompleter
	logger  *zap.Logger
	now     func() time.Time
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatCompleter, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var chatReq ChatCompletionRequest
	if err := utils.DecodeJSON(r, &chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}
	if len(chatReq.Messages) == 0 {
		HandleServiceError(w, providers.ErrInvalidParams("messages", "messages is required"), h.logger)
		return
	}

	llmReq := providers.LLMRequest{
		Prompt:       joinContent(chatReq.Messages, "user"),
		SystemPrompt: joinContent(chatReq.Messages, "system"),
		Temperature:  chatReq.Temperature,
	}
	if chatReq.MaxTokens != nil {
		llmReq.MaxTokens = *chatReq.MaxTokens
	}

	result, err := h.service.Complete(ctx, chatReq.Model, llmReq, middleware.GetCredentialsFromContext(ctx))
	if err != nil {
		h.logger.Warn("failed to process chat completion",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("chat completion successful",
		zap.String("request_id", requestID),
		zap.String("channel", result.ChannelID),
		zap.String("model", result.Model))

	response := ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: h.now().Unix(),
		Model:   result.Model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ResponseMessage{
					Role:    "assistant",
					Content: result.Content,
				},
				FinishReason: "stop",
			},
		},
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// joinContent joins the non-blank messages of role with newlines
func joinContent(messages []ChatMessage, role string) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role != role {
			continue
		}
		if text := strings.TrimSpace(string(m.Content)); text != "" {
			parts = append(parts, string(m.Content))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
