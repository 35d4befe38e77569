// Package modelscope integrates the ModelScope inference API. Image
// generation runs as an async task; chat uses the OpenAI dialect.
package modelscope

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/providers/asynctask"
	"github.com/upb/genai-gateway/services/providers/openai"
)

const (
	ChannelID   = "modelscope"
	DisplayName = "ModelScope"

	DefaultBaseURL    = "https://api-inference.modelscope.cn/v1"
	DefaultImageModel = "Tongyi-MAI/Z-Image-Turbo"
	DefaultLLMModel   = "deepseek-ai/DeepSeek-V3.2"

	defaultSteps   = 9
	minTokenLength = 8

	asyncModeHeader = "X-ModelScope-Async-Mode"
	taskTypeHeader  = "X-ModelScope-Task-Type"
)

// Options configures the ModelScope channel
type Options struct {
	BaseURL         string
	Tokens          []string
	PollInterval    time.Duration
	MaxPollAttempts int

	HTTP     providers.Doer
	Logger   *zap.Logger
	Sleep    asynctask.Sleeper
	Observer asynctask.Observer
	Seeds    func() int64
}

// Config returns the static channel configuration
func Config(opts Options) providers.ChannelConfig {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = asynctask.DefaultPollInterval
	}
	attempts := opts.MaxPollAttempts
	if attempts <= 0 {
		attempts = asynctask.DefaultMaxPollAttempts
	}

	return providers.ChannelConfig{
		BaseURL: base,
		Auth:    providers.AuthConfig{Type: providers.AuthBearer},
		Endpoints: providers.Endpoints{
			Image: "/images/generations",
			LLM:   "/chat/completions",
			Tasks: "/tasks",
		},
		Tokens: opts.Tokens,
		AsyncMode: &providers.AsyncMode{
			Enabled:         true,
			PollInterval:    interval,
			MaxPollAttempts: attempts,
			Headers:         map[string]string{asyncModeHeader: "true"},
		},
		ImageModels: []providers.ModelInfo{
			{ID: DefaultImageModel, Name: "Z-Image Turbo"},
			{ID: "Qwen/Qwen-Image-2512", Name: "Qwen Image 2512"},
			{ID: "black-forest-labs/FLUX.2-dev", Name: "FLUX.2"},
			{ID: "black-forest-labs/FLUX.1-Krea-dev", Name: "FLUX.1 Krea"},
			{ID: "MusePublic/489_ckpt_FLUX_1", Name: "FLUX.1"},
		},
		LLMModels: []providers.ModelInfo{
			{ID: DefaultLLMModel, Name: "DeepSeek V3.2"},
			{ID: "deepseek-ai/DeepSeek-V3", Name: "DeepSeek V3"},
			{ID: "Qwen/Qwen2.5-72B-Instruct", Name: "Qwen 2.5 72B"},
		},
	}
}

// New creates the ModelScope channel
func New(opts Options) *providers.Channel {
	cfg := Config(opts)
	if opts.HTTP == nil {
		opts.HTTP = providers.NewHTTPClient(0)
	}

	return &providers.Channel{
		ID:     ChannelID,
		Name:   DisplayName,
		Config: cfg,
		Image:  NewImage(cfg, opts),
		LLM:    NewLLM(cfg, opts),
	}
}

// Classify adds ModelScope's 403 rule on top of the shared classifier
func Classify(provider string, status int, body []byte) *providers.Error {
	if status == http.StatusForbidden {
		err := providers.ErrAuthInvalid(provider, providers.ExtractMessage(status, body))
		err.StatusCode = status
		return err
	}
	return providers.Classify(provider, status, body)
}

// Image generates images through the async task API
type Image struct {
	config  providers.ChannelConfig
	machine *asynctask.Machine
	seeds   func() int64
}

// NewImage creates the async image capability
func NewImage(cfg providers.ChannelConfig, opts Options) *Image {
	seeds := opts.Seeds
	if seeds == nil {
		seeds = openai.RandomSeed
	}
	return &Image{
		config: cfg,
		seeds:  seeds,
		machine: &asynctask.Machine{
			ChannelID:   ChannelID,
			Client:      &providers.Client{Provider: DisplayName, HTTP: opts.HTTP, Classifier: Classify},
			Interval:    cfg.AsyncMode.PollInterval,
			MaxAttempts: cfg.AsyncMode.MaxPollAttempts,
			Sleep:       opts.Sleep,
			Logger:      opts.Logger,
			Observer:    opts.Observer,
		},
	}
}

// Generate submits a generation task and polls it to completion
func (c *Image) Generate(ctx context.Context, req providers.ImageRequest, token string) (*providers.ImageResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, providers.ErrAuthRequired(DisplayName)
	}
	if len(token) < minTokenLength {
		return nil, providers.ErrAuthInvalid(DisplayName, "token is too short")
	}

	model := req.Model
	if model == "" {
		model = DefaultImageModel
	}
	seed := c.seeds()
	if req.Seed != nil {
		seed = *req.Seed
	}

	body := map[string]any{
		"prompt": req.Prompt,
		"model":  model,
		"size":   providers.FormatSize(req.Width, req.Height),
		"seed":   seed,
		"steps":  defaultSteps,
	}
	if req.Steps != nil {
		body["steps"] = *req.Steps
	}
	if req.NegativePrompt != "" {
		body["negative_prompt"] = req.NegativePrompt
	}
	if req.GuidanceScale != nil {
		body["guidance"] = *req.GuidanceScale
	}
	if req.LoRAs != nil {
		body["loras"] = req.LoRAs
	}

	submitHeaders := providers.BuildAuthHeaders(c.config.Auth, c.config.AsyncMode.Headers, token)
	taskID, err := c.machine.Submit(ctx, providers.JoinURL(c.config.BaseURL, c.config.Endpoints.Image), submitHeaders, body, nil)
	if err != nil {
		return nil, err
	}

	pollHeaders := providers.BuildAuthHeaders(c.config.Auth, map[string]string{
		"Content-Type": "application/json",
		taskTypeHeader: "image_generation",
	}, token)
	pollURL := providers.JoinURL(c.config.BaseURL, c.config.Endpoints.Tasks+"/"+url.PathEscape(taskID))

	imageURL, err := c.machine.Poll(ctx, pollURL, pollHeaders, asynctask.DecodeTaskStatus(DisplayName))
	if err != nil {
		return nil, err
	}

	return &providers.ImageResult{URL: imageURL, Seed: seed, Model: model}, nil
}

// NewLLM creates the chat capability. It always requires a token.
func NewLLM(cfg providers.ChannelConfig, opts Options) *openai.ChatAdapter {
	return openai.NewChatAdapter(cfg,
		openai.WithProviderName(DisplayName),
		openai.WithHTTPClient(opts.HTTP),
		openai.WithLogger(opts.Logger),
		openai.WithTokenRequired(),
	)
}
