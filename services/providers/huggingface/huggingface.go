// Package huggingface integrates HuggingFace: image generation through
// public Gradio Spaces and text generation through the inference API,
// with an anonymous Pollinations fallback for chat.
package huggingface

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/providers/openai"
	"github.com/upb/genai-gateway/services/providers/pollinations"
)

const (
	ChannelID   = "huggingface"
	DisplayName = "HuggingFace"

	DefaultBaseURL    = "https://api-inference.huggingface.co"
	DefaultImageModel = "z-image-turbo"
	DefaultLLMModel   = "Qwen/Qwen2.5-72B-Instruct"
)

// DefaultSpaces maps image models to the Gradio Space serving them
var DefaultSpaces = map[string]string{
	"z-image-turbo":   "https://tongyi-mai-z-image-turbo.hf.space",
	"qwen-image-fast": "https://mcp-tools-qwen-image-fast.hf.space",
	"ovis-image":      "https://aidc-ai-ovis-image-7b.hf.space",
	"flux-1-schnell":  "https://black-forest-labs-flux-1-schnell.hf.space",
}

// fallbackSpaces are tried in order when the primary space returns 404
var fallbackSpaces = map[string][]string{
	"z-image-turbo": {"https://mrfakename-z-image-turbo.hf.space"},
}

// Options configures the HuggingFace channel
type Options struct {
	BaseURL string
	Tokens  []string

	// Spaces overrides DefaultSpaces per model
	Spaces map[string]string

	// Fallback serves chat when no token is available; nil means Pollinations
	Fallback providers.LLMCapability

	HTTP   providers.Doer
	Logger *zap.Logger
	Seeds  func() int64
}

// Config returns the static channel configuration
func Config(opts Options) providers.ChannelConfig {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return providers.ChannelConfig{
		BaseURL:   base,
		Auth:      providers.AuthConfig{Type: providers.AuthBearer, Optional: true},
		Endpoints: providers.Endpoints{LLM: "/models"},
		Tokens:    opts.Tokens,
		ImageModels: []providers.ModelInfo{
			{ID: DefaultImageModel, Name: "Z-Image Turbo"},
			{ID: "qwen-image-fast", Name: "Qwen Image Fast"},
			{ID: "ovis-image", Name: "Ovis Image"},
			{ID: "flux-1-schnell", Name: "FLUX.1 Schnell"},
		},
		LLMModels: []providers.ModelInfo{
			{ID: DefaultLLMModel, Name: "Qwen 2.5 72B"},
			{ID: "mistralai/Mistral-7B-Instruct-v0.3", Name: "Mistral 7B"},
			{ID: "meta-llama/Llama-3.2-3B-Instruct", Name: "Llama 3.2 3B"},
		},
	}
}

// New creates the HuggingFace channel
func New(opts Options) *providers.Channel {
	cfg := Config(opts)
	if opts.HTTP == nil {
		opts.HTTP = providers.NewHTTPClient(0)
	}
	if opts.Fallback == nil {
		opts.Fallback = pollinations.NewLLM(pollinations.Options{HTTP: opts.HTTP, Logger: opts.Logger})
	}

	return &providers.Channel{
		ID:     ChannelID,
		Name:   DisplayName,
		Config: cfg,
		Image:  NewImage(opts),
		LLM:    NewLLM(cfg, opts),
	}
}

// spaceModel describes how a model's Space endpoint takes its arguments
type spaceModel struct {
	endpoint string
	build    func(req providers.ImageRequest, seed int64) []any
}

func steps(req providers.ImageRequest, def int) int {
	if req.Steps != nil {
		return *req.Steps
	}
	return def
}

var spaceModels = map[string]spaceModel{
	"z-image-turbo": {
		endpoint: "generate_image",
		build: func(r providers.ImageRequest, seed int64) []any {
			return []any{r.Prompt, r.Height, r.Width, steps(r, 9), seed, false}
		},
	},
	"qwen-image-fast": {
		endpoint: "generate_image",
		build: func(r providers.ImageRequest, seed int64) []any {
			return []any{r.Prompt, seed, true, "1:1", 3, steps(r, 8)}
		},
	},
	"ovis-image": {
		endpoint: "generate",
		build: func(r providers.ImageRequest, seed int64) []any {
			return []any{r.Prompt, r.Height, r.Width, seed, steps(r, 24), 4}
		},
	},
	"flux-1-schnell": {
		endpoint: "infer",
		build: func(r providers.ImageRequest, seed int64) []any {
			return []any{r.Prompt, seed, false, r.Width, r.Height, steps(r, 8)}
		},
	},
}

var seedPattern = regexp.MustCompile(`Seed used for generation:\s*(\d+)`)

// Image generates images through Gradio Spaces. A token is optional.
type Image struct {
	gradio *GradioClient
	spaces map[string]string
	seeds  func() int64
	logger *zap.Logger
}

// NewImage creates the Gradio image capability
func NewImage(opts Options) *Image {
	spaces := make(map[string]string, len(DefaultSpaces))
	for k, v := range DefaultSpaces {
		spaces[k] = v
	}
	for k, v := range opts.Spaces {
		spaces[k] = v
	}
	seeds := opts.Seeds
	if seeds == nil {
		seeds = openai.RandomSeed
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Image{gradio: NewGradioClient(opts.HTTP), spaces: spaces, seeds: seeds, logger: logger}
}

func (c *Image) candidates(model string) []string {
	primary, ok := c.spaces[model]
	if !ok {
		primary = c.spaces[DefaultImageModel]
	}
	return append([]string{primary}, fallbackSpaces[model]...)
}

// Generate runs the model's Space, moving to a fallback Space only on 404
func (c *Image) Generate(ctx context.Context, req providers.ImageRequest, token string) (*providers.ImageResult, error) {
	model := req.Model
	if model == "" {
		model = DefaultImageModel
	}
	entry, ok := spaceModels[model]
	if !ok {
		entry = spaceModels[DefaultImageModel]
	}

	seed := c.seeds()
	if req.Seed != nil {
		seed = *req.Seed
	}
	args := entry.build(req, seed)

	var lastErr error
	for _, space := range c.candidates(model) {
		data, err := c.gradio.Call(ctx, space, entry.endpoint, args, strings.TrimSpace(token))
		if err == nil {
			imageURL := firstImageURL(space, data)
			if imageURL == "" {
				return nil, providers.ErrProvider(DisplayName, "no image returned")
			}
			return &providers.ImageResult{URL: imageURL, Seed: parseSeed(model, data, seed), Model: model}, nil
		}

		lastErr = err
		if !isNotFound(err) {
			return nil, err
		}
		c.logger.Warn("gradio space not found, trying fallback",
			zap.String("channel", ChannelID),
			zap.String("space", space),
		)
	}

	return nil, lastErr
}

func isNotFound(err error) bool {
	var provErr *providers.Error
	return errors.As(err, &provErr) && provErr.Kind == providers.KindProviderError && provErr.StatusCode == http.StatusNotFound
}

// firstImageURL reads result[0] as a URL string or {url} object and
// resolves relative URLs against the space
func firstImageURL(space string, data []any) string {
	if len(data) == 0 {
		return ""
	}

	raw := ""
	switch v := data[0].(type) {
	case string:
		raw = v
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			raw = u
		}
	}
	if raw == "" {
		return ""
	}

	base, err := url.Parse(space)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// parseSeed prefers the seed reported by the Space over the one sent
func parseSeed(model string, data []any, fallback int64) int64 {
	if len(data) < 2 {
		return fallback
	}
	switch v := data[1].(type) {
	case string:
		if model == "qwen-image-fast" {
			if m := seedPattern.FindStringSubmatch(v); m != nil {
				if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
					return n
				}
			}
		}
	case float64:
		return int64(v)
	}
	return fallback
}
