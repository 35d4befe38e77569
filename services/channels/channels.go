// Package channels assembles the built-in and operator-defined channels
// and registers them in a providers.Registry.
package channels

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/config"
	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/providers/asynctask"
	"github.com/upb/genai-gateway/services/providers/gitee"
	"github.com/upb/genai-gateway/services/providers/huggingface"
	"github.com/upb/genai-gateway/services/providers/modelscope"
	"github.com/upb/genai-gateway/services/providers/openai"
	"github.com/upb/genai-gateway/services/providers/pollinations"
)

const (
	DeepSeekID      = "deepseek"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"

	A4FID      = "a4f"
	A4FBaseURL = "https://api.a4f.co/v1"

	defaultImageEndpoint = "/images/generations"
	defaultChatEndpoint  = "/chat/completions"
)

// Options carries the shared dependencies handed to every channel
type Options struct {
	HTTP     providers.Doer
	Logger   *zap.Logger
	Observer asynctask.Observer
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) http() providers.Doer {
	if o.HTTP == nil {
		return http.DefaultClient
	}
	return o.HTTP
}

// DeepSeek creates the OpenAI-compatible DeepSeek chat channel
func DeepSeek(up config.UpstreamConfig, opts Options) *providers.Channel {
	base := up.BaseURL
	if base == "" {
		base = DeepSeekBaseURL
	}
	cfg := providers.ChannelConfig{
		BaseURL:   base,
		Auth:      providers.AuthConfig{Type: providers.AuthBearer},
		Endpoints: providers.Endpoints{LLM: defaultChatEndpoint},
		Tokens:    up.Tokens,
		LLMModels: []providers.ModelInfo{{ID: "deepseek-chat", Name: "DeepSeek Chat"}},
	}

	return &providers.Channel{
		ID:     DeepSeekID,
		Name:   "DeepSeek",
		Config: cfg,
		LLM:    openai.NewChatAdapter(cfg, adapterOptions("DeepSeek", opts)...),
	}
}

// A4F creates the OpenAI-compatible A4F image and chat channel
func A4F(up config.UpstreamConfig, opts Options) *providers.Channel {
	base := up.BaseURL
	if base == "" {
		base = A4FBaseURL
	}
	cfg := providers.ChannelConfig{
		BaseURL:   base,
		Auth:      providers.AuthConfig{Type: providers.AuthBearer},
		Endpoints: providers.Endpoints{Image: defaultImageEndpoint, LLM: defaultChatEndpoint},
		Tokens:    up.Tokens,
		ImageModels: []providers.ModelInfo{
			{ID: "provider-4/imagen-3.5", Name: "Imagen 3.5 (provider-4)"},
			{ID: "provider-4/imagen-4", Name: "Imagen 4 (provider-4)"},
			{ID: "provider-8/imagen-3", Name: "Imagen 3 (provider-8)"},
			{ID: "provider-4/flux-schnell", Name: "FLUX Schnell (provider-4)"},
			{ID: "provider-8/z-image", Name: "Z-Image (provider-8)"},
		},
		LLMModels: []providers.ModelInfo{
			{ID: "provider-3/deepseek-v3", Name: "DeepSeek V3 (provider-3)"},
		},
	}

	adapterOpts := adapterOptions("A4F", opts)
	return &providers.Channel{
		ID:     A4FID,
		Name:   "A4F",
		Config: cfg,
		Image:  openai.NewImageAdapter(cfg, adapterOpts...),
		LLM:    openai.NewChatAdapter(cfg, adapterOpts...),
	}
}

// Custom creates an OpenAI-compatible channel from an operator definition.
// Missing endpoints default to /images/generations and /chat/completions.
func Custom(def config.CustomChannel, opts Options) *providers.Channel {
	cfg := def.Config
	if cfg.Endpoints.Image == "" {
		cfg.Endpoints.Image = defaultImageEndpoint
	}
	if cfg.Endpoints.LLM == "" {
		cfg.Endpoints.LLM = defaultChatEndpoint
	}

	adapterOpts := adapterOptions(def.Name, opts)
	return &providers.Channel{
		ID:     def.ID,
		Name:   def.Name,
		Config: cfg,
		Image:  openai.NewImageAdapter(cfg, adapterOpts...),
		LLM:    openai.NewChatAdapter(cfg, adapterOpts...),
	}
}

func adapterOptions(name string, opts Options) []openai.Option {
	return []openai.Option{
		openai.WithProviderName(name),
		openai.WithHTTPClient(opts.http()),
		openai.WithLogger(opts.logger()),
		openai.WithTokenRequired(),
	}
}

// Builtins returns the built-in channels in registration order
func Builtins(cfg config.ChannelsConfig, opts Options) []*providers.Channel {
	logger := opts.logger()
	doer := opts.http()

	poll := pollinations.New(pollinations.Options{URL: cfg.Pollinations.BaseURL, HTTP: doer, Logger: logger})

	return []*providers.Channel{
		modelscope.New(modelscope.Options{
			BaseURL:         cfg.ModelScope.BaseURL,
			Tokens:          cfg.ModelScope.Tokens,
			PollInterval:    cfg.ModelScope.PollInterval,
			MaxPollAttempts: cfg.ModelScope.MaxPollAttempts,
			HTTP:            doer,
			Logger:          logger,
			Observer:        opts.Observer,
		}),
		gitee.New(gitee.Options{
			BaseURL:     cfg.Gitee.BaseURL,
			TaskBaseURL: cfg.Gitee.TaskBaseURL,
			Tokens:      cfg.Gitee.Tokens,
			HTTP:        doer,
			Logger:      logger,
		}),
		huggingface.New(huggingface.Options{
			BaseURL:  cfg.HuggingFace.BaseURL,
			Tokens:   cfg.HuggingFace.Tokens,
			Spaces:   cfg.HuggingFace.Spaces,
			Fallback: poll.LLM,
			HTTP:     doer,
			Logger:   logger,
		}),
		DeepSeek(cfg.DeepSeek, opts),
		A4F(cfg.A4F, opts),
		poll,
	}
}

// RegisterAll registers the built-in channels followed by the custom ones.
// A custom channel reusing a built-in id replaces it.
func RegisterAll(reg *providers.Registry, cfg config.ChannelsConfig, opts Options) error {
	all := Builtins(cfg, opts)
	for _, def := range cfg.Custom {
		all = append(all, Custom(def, opts))
	}

	for _, ch := range all {
		if _, err := reg.Register(ch); err != nil {
			return fmt.Errorf("registering channel %q: %w", ch.ID, err)
		}
	}
	return nil
}
