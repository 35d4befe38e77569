package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/middleware"
	"github.com/upb/genai-gateway/services/generation"
	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/utils"
)

const (
	defaultImageSize = 1024
	hdSteps          = 30
)

// ImageGenerationRequest is an OpenAI-compatible image generation body
// with the common diffusion extensions
type ImageGenerationRequest struct {
	Prompt            string   `json:"prompt"`
	Model             string   `json:"model,omitempty"`
	N                 *int     `json:"n,omitempty" validate:"omitempty,eq=1"`
	Size              string   `json:"size,omitempty"`
	ResponseFormat    string   `json:"response_format,omitempty" validate:"omitempty,oneof=url"`
	Quality           string   `json:"quality,omitempty"`
	NegativePrompt    string   `json:"negative_prompt,omitempty"`
	Steps             *int     `json:"steps,omitempty"`
	NumInferenceSteps *int     `json:"num_inference_steps,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	GuidanceScale     *float64 `json:"guidance_scale,omitempty"`
	CfgScale          *float64 `json:"cfg_scale,omitempty"`
	LoRAs             any      `json:"loras,omitempty"`
}

// ImageGenerationResponse is the OpenAI images response with url data
type ImageGenerationResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// ImageData is one generated image
type ImageData struct {
	URL string `json:"url"`
}

// ImageGenerator generates one image on the channel the model resolves to
type ImageGenerator interface {
	GenerateImage(ctx context.Context, model string, req providers.ImageRequest, creds generation.Credentials) (*generation.ImageResponse, error)
}

// ImageHandler handles image generation HTTP requests
type ImageHandler struct {
	service ImageGenerator
	logger  *zap.Logger
	now     func() time.Time
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(service ImageGenerator, logger *zap.Logger) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleGenerate handles POST /v1/images/generations
func (h *ImageHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body ImageGenerationRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if strings.TrimSpace(body.Prompt) == "" {
		HandleServiceError(w, providers.ErrInvalidPrompt("prompt is required"), h.logger)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.GenerateImage(ctx, body.Model, toImageRequest(body), middleware.GetCredentialsFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("image generated",
		zap.String("request_id", requestID),
		zap.String("channel", result.ChannelID),
		zap.String("model", result.Model),
		zap.Int64("seed", result.Seed))

	response := ImageGenerationResponse{
		Created: h.now().Unix(),
		Data:    []ImageData{{URL: result.URL}},
	}
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func toImageRequest(body ImageGenerationRequest) providers.ImageRequest {
	width, height := parseSize(body.Size)

	steps := body.Steps
	if steps == nil {
		steps = body.NumInferenceSteps
	}
	if steps == nil && body.Quality == "hd" {
		hd := hdSteps
		steps = &hd
	}

	guidance := body.GuidanceScale
	if guidance == nil {
		guidance = body.CfgScale
	}

	return providers.ImageRequest{
		Prompt:         body.Prompt,
		NegativePrompt: body.NegativePrompt,
		Width:          width,
		Height:         height,
		Steps:          steps,
		GuidanceScale:  guidance,
		Seed:           body.Seed,
		LoRAs:          body.LoRAs,
	}
}

// parseSize reads "WxH"; each missing or non-positive side becomes 1024
func parseSize(size string) (int, int) {
	if size == "" {
		return defaultImageSize, defaultImageSize
	}
	w, h, _ := strings.Cut(size, "x")
	return positiveOr(w, defaultImageSize), positiveOr(h, defaultImageSize)
}

func positiveOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
