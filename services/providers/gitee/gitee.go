// Package gitee integrates Gitee AI: OpenAI-dialect image and chat with
// per-model field renames, plus async image-to-video tasks.
package gitee

import (
	"strings"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/providers/openai"
)

const (
	ChannelID   = "gitee"
	DisplayName = "Gitee AI"

	DefaultBaseURL     = "https://ai.gitee.com/v1"
	DefaultTaskBaseURL = "https://ai.gitee.com/api/v1/task"
	DefaultImageModel  = "z-image-turbo"
	DefaultLLMModel    = "DeepSeek-V3"
	DefaultVideoModel  = "Wan2_2-I2V-A14B"

	defaultSteps       = 9
	defaultQwenCFG     = 1.0
	defaultGLMGuidance = 1.5
	videoEndpoint      = "/async/videos/image-to-video"
	imageEndpoint      = "/images/generations"
	chatEndpoint       = "/chat/completions"
)

// Options configures the Gitee channel
type Options struct {
	BaseURL     string
	TaskBaseURL string
	Tokens      []string

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
	tasks := opts.TaskBaseURL
	if tasks == "" {
		tasks = DefaultTaskBaseURL
	}

	return providers.ChannelConfig{
		BaseURL: base,
		Auth:    providers.AuthConfig{Type: providers.AuthBearer},
		Endpoints: providers.Endpoints{
			Image: imageEndpoint,
			LLM:   chatEndpoint,
			Video: videoEndpoint,
			Tasks: tasks,
		},
		Tokens: opts.Tokens,
		ImageModels: []providers.ModelInfo{
			{ID: DefaultImageModel, Name: "Z-Image Turbo"},
			{ID: "GLM-Image", Name: "GLM Image"},
			{ID: "Qwen-Image", Name: "Qwen Image"},
			{ID: "Qwen-Image-2512", Name: "Qwen Image 2512"},
			{ID: "flux-1-schnell", Name: "FLUX.1 Schnell"},
			{ID: "FLUX_1-Krea-dev", Name: "FLUX.1 Krea"},
			{ID: "FLUX.1-dev", Name: "FLUX.1"},
		},
		LLMModels: []providers.ModelInfo{
			{ID: DefaultLLMModel, Name: "DeepSeek V3"},
			{ID: "DeepSeek-V3.2", Name: "DeepSeek V3.2"},
			{ID: "Qwen2.5-72B-Instruct", Name: "Qwen 2.5 72B"},
			{ID: "glm-4-flash", Name: "GLM-4 Flash"},
		},
		VideoModels: []providers.ModelInfo{
			{ID: DefaultVideoModel, Name: "Wan 2.2 I2V"},
		},
	}
}

// New creates the Gitee channel
func New(opts Options) *providers.Channel {
	cfg := Config(opts)
	if opts.HTTP == nil {
		opts.HTTP = providers.NewHTTPClient(0)
	}

	common := []openai.Option{
		openai.WithProviderName(DisplayName),
		openai.WithHTTPClient(opts.HTTP),
		openai.WithLogger(opts.Logger),
		openai.WithTokenRequired(),
	}
	imageOpts := append([]openai.Option{openai.WithBodyHook(ImageBodyHook)}, common...)
	if opts.Seeds != nil {
		imageOpts = append(imageOpts, openai.WithSeedSource(opts.Seeds))
	}

	return &providers.Channel{
		ID:     ChannelID,
		Name:   DisplayName,
		Config: cfg,
		Image:  openai.NewImageAdapter(cfg, imageOpts...),
		LLM:    openai.NewChatAdapter(cfg, common...),
		Video:  NewVideo(cfg, opts),
	}
}

// ImageBodyHook applies Gitee's per-model field conventions: Qwen models
// take cfg_scale instead of guidance_scale, GLM defaults guidance to 1.5,
// and FLUX models reject a negative prompt.
func ImageBodyHook(body map[string]any, req providers.ImageRequest) {
	model := strings.ToLower(req.Model)
	isFlux := strings.Contains(model, "flux")
	isQwen := strings.HasPrefix(model, "qwen-image")
	isGLM := model == "glm-image"

	if _, ok := body["num_inference_steps"]; !ok {
		body["num_inference_steps"] = defaultSteps
	}

	if isFlux {
		delete(body, "negative_prompt")
	}

	if req.GuidanceScale != nil {
		if isQwen {
			delete(body, "guidance_scale")
			body["cfg_scale"] = *req.GuidanceScale
		}
		return
	}

	if isQwen {
		body["cfg_scale"] = defaultQwenCFG
	}
	if isGLM {
		body["guidance_scale"] = defaultGLMGuidance
	}
}
