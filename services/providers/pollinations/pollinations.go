// Package pollinations integrates the free, unauthenticated Pollinations
// text API.
package pollinations

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/providers/openai"
)

const (
	ChannelID   = "pollinations"
	DisplayName = "Pollinations AI"

	DefaultURL   = "https://text.pollinations.ai/openai"
	DefaultModel = "openai-fast"
)

var knownModels = map[string]bool{
	"openai-fast": true,
	"openai":      true,
	"mistral":     true,
	"llama":       true,
}

// Options configures the Pollinations channel
type Options struct {
	URL    string
	HTTP   providers.Doer
	Logger *zap.Logger
}

// Config returns the static channel configuration
func Config(opts Options) providers.ChannelConfig {
	url := opts.URL
	if url == "" {
		url = DefaultURL
	}
	return providers.ChannelConfig{
		BaseURL:   url,
		Auth:      providers.AuthConfig{Type: providers.AuthNone},
		Endpoints: providers.Endpoints{LLM: url},
		LLMModels: []providers.ModelInfo{
			{ID: DefaultModel, Name: "OpenAI Fast"},
			{ID: "openai", Name: "OpenAI"},
			{ID: "mistral", Name: "Mistral"},
			{ID: "llama", Name: "Llama"},
		},
	}
}

// New creates the Pollinations channel
func New(opts Options) *providers.Channel {
	return &providers.Channel{
		ID:     ChannelID,
		Name:   DisplayName,
		Config: Config(opts),
		LLM:    NewLLM(opts),
	}
}

// LLM completes prompts anonymously
type LLM struct {
	url    string
	client *providers.Client
	logger *zap.Logger
}

// NewLLM creates the Pollinations LLM capability
func NewLLM(opts Options) *LLM {
	cfg := Config(opts)
	doer := opts.HTTP
	if doer == nil {
		doer = providers.NewHTTPClient(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{
		url:    cfg.Endpoints.LLM,
		client: &providers.Client{Provider: DisplayName, HTTP: doer, Classifier: classify},
		logger: logger,
	}
}

// Complete ignores the token. Unknown models map to openai-fast.
func (l *LLM) Complete(ctx context.Context, req providers.LLMRequest, _ string) (*providers.LLMResult, error) {
	model := req.Model
	if !knownModels[model] {
		model = DefaultModel
	}
	req.Model = model

	resp, err := l.client.PostJSON(ctx, l.url, nil, openai.BuildChatRequest(req))
	if err != nil {
		return nil, err
	}

	var out openai.ChatResponse
	if err := resp.Decode(DisplayName, &out); err != nil {
		return nil, err
	}
	content := ""
	if len(out.Choices) > 0 {
		content = strings.TrimSpace(out.Choices[0].Message.Content)
	}
	if content == "" {
		return nil, providers.ErrProvider(DisplayName, "empty response from provider")
	}
	return &providers.LLMResult{Content: content, Model: model}, nil
}

// classify reports 429 as rate limited and everything else as a provider error
func classify(provider string, status int, body []byte) *providers.Error {
	var err *providers.Error
	if status == http.StatusTooManyRequests {
		err = providers.ErrRateLimited(provider)
		err.Upstream = providers.ExtractMessage(status, body)
	} else {
		err = providers.ErrProvider(provider, providers.ExtractMessage(status, body))
	}
	err.StatusCode = status
	return err
}
