package providers

import (
	"context"
	"time"
)

// ImageCapability generates a single image from a prompt.
type ImageCapability interface {
	// Generate performs one upstream exchange with the given token.
	// An empty token means the call is anonymous.
	Generate(ctx context.Context, req ImageRequest, token string) (*ImageResult, error)
}

// LLMCapability completes a single system+user prompt pair.
type LLMCapability interface {
	// Complete performs one upstream exchange with the given token.
	// An empty token means the call is anonymous.
	Complete(ctx context.Context, req LLMRequest, token string) (*LLMResult, error)
}

// VideoCapability creates and inspects long-running video tasks.
type VideoCapability interface {
	// CreateTask submits an image-to-video job and returns its task id
	CreateTask(ctx context.Context, req VideoRequest, token string) (*VideoTask, error)

	// GetStatus reports the current state of a previously created task
	GetStatus(ctx context.Context, taskID string, token string) (*VideoStatus, error)
}

// ImageRequest represents a unified image generation request
type ImageRequest struct {
	// Prompt describes the image to generate
	Prompt string `json:"prompt"`

	// NegativePrompt lists things the image should avoid
	NegativePrompt string `json:"negative_prompt,omitempty"`

	// Model identifier; empty lets the channel pick its default
	Model string `json:"model,omitempty"`

	// Width and Height in pixels
	Width  int `json:"width"`
	Height int `json:"height"`

	// Steps is the number of inference steps (nil = provider default)
	Steps *int `json:"steps,omitempty"`

	// GuidanceScale controls prompt adherence (nil = provider default)
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`

	// Seed for reproducibility; nil means a random seed is synthesized
	Seed *int64 `json:"seed,omitempty"`

	// LoRAs is passed through untouched to providers that accept it
	LoRAs any `json:"loras,omitempty"`
}

// ImageResult is the outcome of a successful image generation
type ImageResult struct {
	URL   string `json:"url"`
	Seed  int64  `json:"seed"`
	Model string `json:"model,omitempty"`
}

// LLMRequest represents a unified text completion request
type LLMRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt"`
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// LLMResult is the outcome of a successful completion
type LLMResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// VideoRequest represents an image-to-video request
type VideoRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Model    string `json:"model,omitempty"`
}

// VideoTask identifies a submitted video job
type VideoTask struct {
	TaskID string `json:"task_id"`
}

// VideoState is the normalized lifecycle state of a video task
type VideoState string

const (
	VideoPending    VideoState = "pending"
	VideoProcessing VideoState = "processing"
	VideoSuccess    VideoState = "success"
	VideoFailed     VideoState = "failed"
)

// VideoStatus reports the state of a video task
type VideoStatus struct {
	Status   VideoState `json:"status"`
	VideoURL string     `json:"video_url,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// AuthType selects how a token is rendered into request headers
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api-key"
	AuthNone   AuthType = "none"
)

// ParseAuthType returns the auth type for a raw config value, defaulting to bearer
func ParseAuthType(raw string) AuthType {
	switch AuthType(raw) {
	case AuthAPIKey:
		return AuthAPIKey
	case AuthNone:
		return AuthNone
	default:
		return AuthBearer
	}
}

// AuthConfig describes the auth scheme of a channel
type AuthConfig struct {
	// Type of the auth scheme (bearer when empty)
	Type AuthType `json:"type" yaml:"type"`

	// Optional allows anonymous calls when no token is available
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`

	// HeaderName overrides the default header (Authorization / X-API-Key)
	HeaderName string `json:"headerName,omitempty" yaml:"headerName,omitempty"`

	// Prefix overrides the bearer prefix. nil means "Bearer ", an empty
	// string means the raw token.
	Prefix *string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Endpoints holds per-capability endpoint paths, relative to BaseURL or absolute
type Endpoints struct {
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	LLM   string `json:"llm,omitempty" yaml:"llm,omitempty"`
	Tasks string `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Video string `json:"video,omitempty" yaml:"video,omitempty"`
}

// AsyncMode configures submit/poll behaviour for slow providers
type AsyncMode struct {
	Enabled         bool              `json:"enabled" yaml:"enabled"`
	PollInterval    time.Duration     `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
	MaxPollAttempts int               `json:"maxPollAttempts,omitempty" yaml:"maxPollAttempts,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ModelInfo contains catalog metadata about a model
type ModelInfo struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	MaxTokens      int      `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	SupportedSizes []string `json:"supportedSizes,omitempty" yaml:"supportedSizes,omitempty"`
}

// ChannelConfig holds the static configuration of a channel.
// It is read-only once the channel is registered.
type ChannelConfig struct {
	BaseURL   string            `json:"baseUrl" yaml:"baseUrl"`
	Auth      AuthConfig        `json:"auth" yaml:"auth"`
	Endpoints Endpoints         `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Tokens    []string          `json:"tokens,omitempty" yaml:"tokens,omitempty"`

	ImageModels []ModelInfo `json:"imageModels,omitempty" yaml:"imageModels,omitempty"`
	LLMModels   []ModelInfo `json:"llmModels,omitempty" yaml:"llmModels,omitempty"`
	VideoModels []ModelInfo `json:"videoModels,omitempty" yaml:"videoModels,omitempty"`

	AsyncMode *AsyncMode `json:"asyncMode,omitempty" yaml:"asyncMode,omitempty"`
}

// AllowsAnonymous reports whether calls may proceed without a token
func (c ChannelConfig) AllowsAnonymous() bool {
	return c.Auth.Type == AuthNone || c.Auth.Optional
}

// DefaultImageModel returns the first image catalog entry, or ""
func (c ChannelConfig) DefaultImageModel() string {
	if len(c.ImageModels) == 0 {
		return ""
	}
	return c.ImageModels[0].ID
}

// DefaultLLMModel returns the first LLM catalog entry, or ""
func (c ChannelConfig) DefaultLLMModel() string {
	if len(c.LLMModels) == 0 {
		return ""
	}
	return c.LLMModels[0].ID
}

// Channel is a registered integration with one upstream provider.
// Capabilities are optional; a nil capability means the channel does not offer it.
type Channel struct {
	ID     string
	Name   string
	Config ChannelConfig

	Image ImageCapability
	LLM   LLMCapability
	Video VideoCapability
}

// Kinds lists the capability kinds the channel exposes
func (c *Channel) Kinds() []string {
	kinds := make([]string, 0, 3)
	if c.Image != nil {
		kinds = append(kinds, "image")
	}
	if c.LLM != nil {
		kinds = append(kinds, "llm")
	}
	if c.Video != nil {
		kinds = append(kinds, "video")
	}
	return kinds
}
