package openai

import (
	"context"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
)

const (
	defaultImageEndpoint = "/images/generations"
	defaultChatEndpoint  = "/chat/completions"

	defaultMaxTokens   = 1000
	defaultTemperature = 0.7

	// MaxSeed bounds synthesized seeds to 31 bits
	MaxSeed = 2147483647

	displayName = "OpenAI Compatible"
)

// BodyHook adjusts the outgoing image body for upstreams with renamed fields
type BodyHook func(body map[string]any, req providers.ImageRequest)

type options struct {
	provider   string
	httpClient providers.Doer
	logger     *zap.Logger
	seeds      func() int64
	bodyHook   BodyHook
	requireKey bool
}

// Option configures an adapter
type Option func(*options)

// WithHTTPClient overrides the transport
func WithHTTPClient(doer providers.Doer) Option {
	return func(o *options) { o.httpClient = doer }
}

// WithLogger sets the adapter logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProviderName sets the display name used in errors
func WithProviderName(name string) Option {
	return func(o *options) { o.provider = name }
}

// WithSeedSource replaces the random seed generator
func WithSeedSource(seeds func() int64) Option {
	return func(o *options) { o.seeds = seeds }
}

// WithBodyHook registers a hook run on every image body before sending
func WithBodyHook(hook BodyHook) Option {
	return func(o *options) { o.bodyHook = hook }
}

// WithTokenRequired makes the adapter fail with auth_required on an empty
// token unless the channel allows anonymous calls
func WithTokenRequired() Option {
	return func(o *options) { o.requireKey = true }
}

func buildOptions(opts []Option) options {
	o := options{
		provider: displayName,
		logger:   zap.NewNop(),
		seeds:    RandomSeed,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = providers.NewHTTPClient(0)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// RandomSeed returns a uniformly random seed in [0, MaxSeed)
func RandomSeed() int64 {
	return rand.Int64N(MaxSeed)
}

// ImageAdapter implements providers.ImageCapability for OpenAI-dialect upstreams
type ImageAdapter struct {
	config   providers.ChannelConfig
	endpoint string
	client   *providers.Client
	opts     options
}

// NewImageAdapter creates an image adapter posting to config.Endpoints.Image,
// or /images/generations when unset
func NewImageAdapter(config providers.ChannelConfig, opts ...Option) *ImageAdapter {
	o := buildOptions(opts)
	return &ImageAdapter{
		config:   config,
		endpoint: providers.ResolveEndpoint(config.BaseURL, config.Endpoints.Image, defaultImageEndpoint),
		client:   &providers.Client{Provider: o.provider, HTTP: o.httpClient},
		opts:     o,
	}
}

// Generate performs one image generation call
func (a *ImageAdapter) Generate(ctx context.Context, req providers.ImageRequest, token string) (*providers.ImageResult, error) {
	if a.opts.requireKey && token == "" && !a.config.AllowsAnonymous() {
		return nil, providers.ErrAuthRequired(a.opts.provider)
	}

	model := req.Model
	if model == "" {
		model = a.config.DefaultImageModel()
	}
	req.Model = model

	seed := a.opts.seeds()
	if req.Seed != nil {
		seed = *req.Seed
	}

	body := BuildImageBody(req, seed)
	if a.opts.bodyHook != nil {
		a.opts.bodyHook(body, req)
	}

	headers := providers.BuildAuthHeaders(a.config.Auth, a.config.Headers, token)

	a.opts.logger.Debug("image request",
		zap.String("provider", a.opts.provider),
		zap.String("model", model),
		zap.Int64("seed", seed),
	)

	resp, err := a.client.PostJSON(ctx, a.endpoint, headers, body)
	if err != nil {
		return nil, err
	}

	var out ImageResponse
	if err := resp.Decode(a.opts.provider, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, providers.ErrProvider(a.opts.provider, "no image returned")
	}

	return &providers.ImageResult{URL: out.Data[0].URL, Seed: seed, Model: model}, nil
}

// BuildImageBody renders the normalized OpenAI-dialect image body. Unset
// optional fields are omitted.
func BuildImageBody(req providers.ImageRequest, seed int64) map[string]any {
	body := map[string]any{
		"prompt":          req.Prompt,
		"width":           req.Width,
		"height":          req.Height,
		"seed":            seed,
		"response_format": "url",
	}
	if req.Model != "" {
		body["model"] = req.Model
	}
	if req.Steps != nil {
		body["num_inference_steps"] = *req.Steps
	}
	if req.GuidanceScale != nil {
		body["guidance_scale"] = *req.GuidanceScale
	}
	if req.NegativePrompt != "" {
		body["negative_prompt"] = req.NegativePrompt
	}
	return body
}

// ChatAdapter implements providers.LLMCapability for OpenAI-dialect upstreams
type ChatAdapter struct {
	config   providers.ChannelConfig
	endpoint string
	client   *providers.Client
	opts     options
}

// NewChatAdapter creates a chat adapter posting to config.Endpoints.LLM,
// or /chat/completions when unset
func NewChatAdapter(config providers.ChannelConfig, opts ...Option) *ChatAdapter {
	o := buildOptions(opts)
	return &ChatAdapter{
		config:   config,
		endpoint: providers.ResolveEndpoint(config.BaseURL, config.Endpoints.LLM, defaultChatEndpoint),
		client:   &providers.Client{Provider: o.provider, HTTP: o.httpClient},
		opts:     o,
	}
}

// Complete performs one chat completion call
func (a *ChatAdapter) Complete(ctx context.Context, req providers.LLMRequest, token string) (*providers.LLMResult, error) {
	if a.opts.requireKey && token == "" && !a.config.AllowsAnonymous() {
		return nil, providers.ErrAuthRequired(a.opts.provider)
	}

	model := req.Model
	if model == "" {
		model = a.config.DefaultLLMModel()
	}
	if model == "" {
		return nil, providers.ErrInvalidParams("model", "no model specified")
	}
	req.Model = model

	headers := providers.BuildAuthHeaders(a.config.Auth, a.config.Headers, token)

	resp, err := a.client.PostJSON(ctx, a.endpoint, headers, BuildChatRequest(req))
	if err != nil {
		return nil, err
	}

	var out ChatResponse
	if err := resp.Decode(a.opts.provider, &out); err != nil {
		return nil, err
	}

	content := ""
	if len(out.Choices) > 0 {
		content = strings.TrimSpace(out.Choices[0].Message.Content)
	}
	if content == "" {
		return nil, providers.ErrProvider(a.opts.provider, "empty response from provider")
	}

	return &providers.LLMResult{Content: content, Model: model}, nil
}

// BuildChatRequest renders the normalized chat body with defaults applied
func BuildChatRequest(req providers.LLMRequest) ChatRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return ChatRequest{
		Model: req.Model,
		Messages: []Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      false,
	}
}

// OpenAI-dialect wire types

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

type ImageData struct {
	URL     string `json:"url"`
	B64JSON string `json:"b64_json,omitempty"`
}
