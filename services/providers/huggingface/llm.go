package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
)

const (
	defaultMaxNewTokens   = 1000
	defaultTemperature    = 0.7
	defaultLoadingWaitSec = 20
)

// LLM calls the HuggingFace text-generation inference API. Without a
// token it delegates to the anonymous fallback.
type LLM struct {
	config   providers.ChannelConfig
	client   *providers.Client
	fallback providers.LLMCapability
	logger   *zap.Logger
}

// NewLLM creates the HuggingFace LLM capability
func NewLLM(cfg providers.ChannelConfig, opts Options) *LLM {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{
		config:   cfg,
		client:   &providers.Client{Provider: DisplayName, HTTP: opts.HTTP, Classifier: ClassifyInference},
		fallback: opts.Fallback,
		logger:   logger,
	}
}

// Complete runs one text-generation call
func (l *LLM) Complete(ctx context.Context, req providers.LLMRequest, token string) (*providers.LLMResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if l.fallback == nil {
			return nil, providers.ErrAuthRequired(DisplayName)
		}
		l.logger.Debug("no huggingface token, using anonymous fallback", zap.String("channel", ChannelID))
		return l.fallback.Complete(ctx, req, "")
	}

	model := req.Model
	if model == "" {
		model = l.config.DefaultLLMModel()
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxNewTokens
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	body := map[string]any{
		"inputs": FormatPrompt(req.SystemPrompt, req.Prompt),
		"parameters": map[string]any{
			"max_new_tokens":   maxTokens,
			"temperature":      temperature,
			"do_sample":        true,
			"return_full_text": false,
		},
	}

	headers := providers.BuildAuthHeaders(l.config.Auth, l.config.Headers, token)
	url := providers.JoinURL(l.config.BaseURL, providers.JoinURL(l.config.Endpoints.LLM, model))
	resp, err := l.client.PostJSON(ctx, url, headers, body)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(generatedText(resp.Body))
	if content == "" {
		return nil, providers.ErrProvider(DisplayName, "empty response from provider")
	}
	return &providers.LLMResult{Content: content, Model: model}, nil
}

// FormatPrompt renders the chat-template prompt expected by instruct models
func FormatPrompt(system, user string) string {
	return fmt.Sprintf("<|system|>\n%s\n<|user|>\n%s\n<|assistant|>\n", system, user)
}

// generatedText accepts [{generated_text}], {generated_text} and an
// OpenAI-style choices payload
func generatedText(body []byte) string {
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) > 0 {
			return list[0].GeneratedText
		}
		return ""
	}

	var obj struct {
		GeneratedText string `json:"generated_text"`
		Choices       []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	if obj.GeneratedText != "" {
		return obj.GeneratedText
	}
	if len(obj.Choices) > 0 {
		return obj.Choices[0].Message.Content
	}
	return ""
}

// ClassifyInference adds the inference API's cold-start rule: a 503 or a
// "loading" body means the model is warming up.
func ClassifyInference(provider string, status int, body []byte) *providers.Error {
	text := strings.ToLower(string(body))

	switch {
	case status == http.StatusServiceUnavailable || strings.Contains(text, "loading"):
		wait := defaultLoadingWaitSec
		var payload struct {
			EstimatedTime float64 `json:"estimated_time"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.EstimatedTime > 0 {
			wait = int(math.Ceil(payload.EstimatedTime))
		}
		return &providers.Error{
			Kind:       providers.KindProviderError,
			Provider:   provider,
			Message:    fmt.Sprintf("model is loading, please retry in %d seconds", wait),
			Upstream:   providers.ExtractMessage(status, body),
			StatusCode: status,
		}
	case status == http.StatusPaymentRequired:
		err := providers.ErrQuotaExceeded(provider)
		err.StatusCode = status
		err.Upstream = providers.ExtractMessage(status, body)
		return err
	}

	return providers.Classify(provider, status, body)
}
