// Package generation routes image, chat and video requests to a channel
// and runs them under token rotation.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/tokens"
)

// ErrorObserver receives one event per failed upstream operation
type ErrorObserver interface {
	UpstreamError(channelID string, kind providers.Kind)
}

// GenerationService is the entry point for all generation requests
type GenerationService struct {
	registry   *providers.Registry
	engine     *tokens.Engine
	maxRetries int
	observer   ErrorObserver
	logger     *zap.Logger
}

// NewGenerationService creates a generation service
func NewGenerationService(
	registry *providers.Registry,
	engine *tokens.Engine,
	maxRetries int,
	observer ErrorObserver,
	logger *zap.Logger,
) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		registry:   registry,
		engine:     engine,
		maxRetries: maxRetries,
		observer:   observer,
		logger:     logger,
	}
}

// ImageResponse is a generated image plus the channel that produced it
type ImageResponse struct {
	*providers.ImageResult
	ChannelID string
}

// ChatResponse is a completion plus the channel that produced it
type ChatResponse struct {
	*providers.LLMResult
	ChannelID string
}

// GenerateImage resolves model to a channel and generates one image
func (s *GenerationService) GenerateImage(ctx context.Context, model string, req providers.ImageRequest, creds Credentials) (*ImageResponse, error) {
	if err := ValidateImageRequest(req); err != nil {
		return nil, err
	}

	target := ResolveImageModel(model)
	if err := checkHint(creds, target.ChannelID); err != nil {
		return nil, err
	}

	ch, ok := s.registry.Get(target.ChannelID)
	if !ok || ch.Image == nil {
		return nil, providers.ErrInvalidProvider(target.ChannelID)
	}

	req.Model = target.Model
	if req.Model == "" {
		req.Model = ch.Config.DefaultImageModel()
	}

	pool, opts, err := s.plan(ch, creds, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("generating image",
		zap.String("channel", ch.ID),
		zap.String("model", req.Model),
		zap.Int("tokens", len(pool)),
	)

	result, err := tokens.Run(ctx, s.engine, ch.ID, pool, func(ctx context.Context, token string) (*providers.ImageResult, error) {
		return ch.Image.Generate(ctx, req, token)
	}, opts)
	if err != nil {
		return nil, s.fail(ch.ID, err)
	}
	return &ImageResponse{ImageResult: result, ChannelID: ch.ID}, nil
}

// Complete resolves model to a channel and runs one chat completion
func (s *GenerationService) Complete(ctx context.Context, model string, req providers.LLMRequest, creds Credentials) (*ChatResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, providers.ErrInvalidParams("messages", "at least one user message is required")
	}

	target := ResolveChatModel(model)
	if err := checkHint(creds, target.ChannelID); err != nil {
		return nil, err
	}

	ch, ok := s.registry.Get(target.ChannelID)
	if !ok || ch.LLM == nil {
		return nil, providers.ErrInvalidParams("model", fmt.Sprintf("unsupported model provider: %s", target.ChannelID))
	}

	req.Model = target.Model
	if req.Model == "" {
		req.Model = ch.Config.DefaultLLMModel()
	}

	pool, opts, err := s.plan(ch, creds, target.Anonymous)
	if err != nil {
		return nil, err
	}

	s.logger.Info("completing chat",
		zap.String("channel", ch.ID),
		zap.String("model", req.Model),
		zap.Bool("anonymous", target.Anonymous),
	)

	result, err := tokens.Run(ctx, s.engine, ch.ID, pool, func(ctx context.Context, token string) (*providers.LLMResult, error) {
		return ch.LLM.Complete(ctx, req, token)
	}, opts)
	if err != nil {
		return nil, s.fail(ch.ID, err)
	}
	return &ChatResponse{LLMResult: result, ChannelID: ch.ID}, nil
}

// CreateVideo submits an image-to-video task on channelID (gitee when empty)
func (s *GenerationService) CreateVideo(ctx context.Context, channelID string, req providers.VideoRequest, creds Credentials) (*providers.VideoTask, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, providers.ErrInvalidParams("image_url", "image_url is required")
	}
	if err := ValidatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := ValidateDimensions(req.Width, req.Height); err != nil {
		return nil, err
	}

	ch, video, err := s.videoChannel(channelID, creds)
	if err != nil {
		return nil, err
	}
	pool, opts, err := s.plan(ch, creds, false)
	if err != nil {
		return nil, err
	}

	task, err := tokens.Run(ctx, s.engine, ch.ID, pool, func(ctx context.Context, token string) (*providers.VideoTask, error) {
		return video.CreateTask(ctx, req, token)
	}, opts)
	if err != nil {
		return nil, s.fail(ch.ID, err)
	}

	s.logger.Info("video task submitted", zap.String("channel", ch.ID), zap.String("task_id", task.TaskID))
	return task, nil
}

// VideoStatus reports the state of a previously created video task
func (s *GenerationService) VideoStatus(ctx context.Context, channelID, taskID string, creds Credentials) (*providers.VideoStatus, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, providers.ErrInvalidParams("taskId", "task id is required")
	}

	ch, video, err := s.videoChannel(channelID, creds)
	if err != nil {
		return nil, err
	}
	pool, opts, err := s.plan(ch, creds, false)
	if err != nil {
		return nil, err
	}

	status, err := tokens.Run(ctx, s.engine, ch.ID, pool, func(ctx context.Context, token string) (*providers.VideoStatus, error) {
		return video.GetStatus(ctx, taskID, token)
	}, opts)
	if err != nil {
		return nil, s.fail(ch.ID, err)
	}
	return status, nil
}

func (s *GenerationService) videoChannel(channelID string, creds Credentials) (*providers.Channel, providers.VideoCapability, error) {
	if channelID == "" {
		channelID = DefaultVideoChannel
	}
	if err := checkHint(creds, channelID); err != nil {
		return nil, nil, err
	}
	ch, ok := s.registry.Get(channelID)
	if !ok || ch.Video == nil {
		return nil, nil, providers.ErrInvalidProvider(channelID)
	}
	return ch, ch.Video, nil
}

// plan picks the token pool: caller tokens win over the channel's pool,
// and anonymous targets use none
func (s *GenerationService) plan(ch *providers.Channel, creds Credentials, anonymous bool) ([]string, tokens.Options, error) {
	allowAnonymous := anonymous || ch.Config.AllowsAnonymous()

	var pool []string
	if !anonymous {
		pool = creds.Tokens
		if len(pool) == 0 {
			pool = ch.Config.Tokens
		}
	}
	if !allowAnonymous && len(pool) == 0 {
		return nil, tokens.Options{}, providers.ErrAuthRequired(ch.Name)
	}

	return pool, tokens.Options{AllowAnonymous: allowAnonymous, MaxRetries: s.maxRetries}, nil
}

// fail reports the failure kind, counting rotation sentinels as their
// nearest provider kind, and returns err unchanged
func (s *GenerationService) fail(channelID string, err error) error {
	kind := providers.KindOf(err)
	switch {
	case errors.Is(err, tokens.ErrNoTokens):
		kind = providers.KindAuthRequired
	case errors.Is(err, tokens.ErrAllTokensExhausted), errors.Is(err, tokens.ErrMaxRetries):
		kind = providers.KindQuotaExceeded
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = providers.KindTimeout
	}
	if kind == "" {
		kind = providers.KindProviderError
	}

	if s.observer != nil {
		s.observer.UpstreamError(channelID, kind)
	}
	s.logger.Warn("generation failed",
		zap.String("channel", channelID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return err
}

func checkHint(creds Credentials, channelID string) error {
	if creds.ChannelHint != "" && creds.ChannelHint != channelID {
		return providers.ErrInvalidParams("Authorization", "token prefix does not match requested model provider")
	}
	return nil
}

// ChannelInfo describes a registered channel for listing
type ChannelInfo struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Capabilities []string     `json:"capabilities"`
	Anonymous    bool         `json:"anonymous"`
	Tokens       tokens.Stats `json:"tokens"`
	ImageModels  []string     `json:"image_models,omitempty"`
	LLMModels    []string     `json:"llm_models,omitempty"`
	VideoModels  []string     `json:"video_models,omitempty"`
}

// Channels lists registered channels with their token pool state
func (s *GenerationService) Channels() []ChannelInfo {
	channels := s.registry.List()
	out := make([]ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		out = append(out, ChannelInfo{
			ID:           ch.ID,
			Name:         ch.Name,
			Capabilities: ch.Kinds(),
			Anonymous:    ch.Config.AllowsAnonymous(),
			Tokens:       s.engine.Tokens().Stats(ch.ID, ch.Config.Tokens),
			ImageModels:  modelIDs(ch.Config.ImageModels),
			LLMModels:    modelIDs(ch.Config.LLMModels),
			VideoModels:  modelIDs(ch.Config.VideoModels),
		})
	}
	return out
}

// Model is one public model id and the channel serving it
type Model struct {
	ID      string
	OwnedBy string
	Kind    string
}

// builtinPrefixes are the public id prefixes of built-in channels; any
// other channel is addressed as custom/<channel>/<model>
var builtinPrefixes = map[string]struct{ image, llm string }{
	channelHuggingFace:  {image: "", llm: "hf/"},
	channelGitee:        {image: "gitee/", llm: "gitee/"},
	channelModelScope:   {image: "ms/", llm: "ms/"},
	channelDeepSeek:     {llm: "deepseek/"},
	channelA4F:          {image: "a4f/", llm: "a4f/"},
	channelPollinations: {llm: "pollinations/"},
}

// Models returns every addressable public model id, including short aliases
func (s *GenerationService) Models() []Model {
	var out []Model
	for _, ch := range s.registry.List() {
		prefix, builtin := builtinPrefixes[ch.ID]
		if !builtin {
			custom := customPrefix + ch.ID + "/"
			prefix.image, prefix.llm = custom, custom
		}

		if ch.Image != nil {
			aliases := ImageAliases(ch.ID)
			for _, m := range ch.Config.ImageModels {
				out = append(out, Model{ID: prefix.image + m.ID, OwnedBy: ch.ID, Kind: "image"})
				if alias, ok := aliases[m.ID]; ok {
					out = append(out, Model{ID: alias, OwnedBy: ch.ID, Kind: "image"})
				}
			}
		}
		if ch.LLM != nil {
			for _, m := range ch.Config.LLMModels {
				out = append(out, Model{ID: prefix.llm + m.ID, OwnedBy: ch.ID, Kind: "llm"})
			}
		}
		if ch.Video != nil {
			for _, m := range ch.Config.VideoModels {
				out = append(out, Model{ID: m.ID, OwnedBy: ch.ID, Kind: "video"})
			}
		}
	}
	return out
}

func modelIDs(models []providers.ModelInfo) []string {
	if len(models) == 0 {
		return nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}
