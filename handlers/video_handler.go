package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/genai-gateway/middleware"
	"github.com/upb/genai-gateway/services/generation"
	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/utils"
)

// VideoGenerationRequest asks a video-capable channel to animate an image
type VideoGenerationRequest struct {
	ImageURL string `json:"image_url" validate:"required"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model,omitempty"`
	Size     string `json:"size,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// VideoTaskResponse describes a video task and its latest known state
type VideoTaskResponse struct {
	ID       string               `json:"id"`
	Object   string               `json:"object"`
	Channel  string               `json:"channel"`
	Status   providers.VideoState `json:"status"`
	Created  int64                `json:"created,omitempty"`
	VideoURL string               `json:"video_url,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// VideoService creates and inspects video tasks
type VideoService interface {
	CreateVideo(ctx context.Context, channelID string, req providers.VideoRequest, creds generation.Credentials) (*providers.VideoTask, error)
	VideoStatus(ctx context.Context, channelID, taskID string, creds generation.Credentials) (*providers.VideoStatus, error)
}

// VideoHandler handles video task HTTP requests
type VideoHandler struct {
	service        VideoService
	defaultChannel string
	logger         *zap.Logger
	now            func() time.Time
}

// NewVideoHandler creates a new VideoHandler. defaultChannel is reported
// when the caller does not name one.
func NewVideoHandler(service VideoService, defaultChannel string, logger *zap.Logger) *VideoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHandler{
		service:        service,
		defaultChannel: defaultChannel,
		logger:         logger,
		now:            time.Now,
	}
}

// HandleCreate handles POST /v1/videos/generations
func (h *VideoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body VideoGenerationRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	width, height := parseSize(body.Size)
	req := providers.VideoRequest{
		ImageURL: body.ImageURL,
		Prompt:   body.Prompt,
		Width:    width,
		Height:   height,
		Model:    body.Model,
	}

	task, err := h.service.CreateVideo(ctx, body.Channel, req, middleware.GetCredentialsFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	channel := h.channelOrDefault(body.Channel)
	h.logger.Info("video task created",
		zap.String("request_id", requestID),
		zap.String("channel", channel),
		zap.String("task_id", task.TaskID))

	response := VideoTaskResponse{
		ID:      task.TaskID,
		Object:  "video.task",
		Channel: channel,
		Status:  providers.VideoPending,
		Created: h.now().Unix(),
	}
	if err := utils.WriteJSON(w, http.StatusAccepted, response); err != nil {
		h.logger.Error("failed to write response", zap.String("request_id", requestID), zap.Error(err))
	}
}

// HandleStatus handles GET /v1/videos/tasks/{taskId}?channel=
func (h *VideoHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "taskId")
	channel := r.URL.Query().Get("channel")

	status, err := h.service.VideoStatus(ctx, channel, taskID, middleware.GetCredentialsFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	response := VideoTaskResponse{
		ID:       taskID,
		Object:   "video.task",
		Channel:  h.channelOrDefault(channel),
		Status:   status.Status,
		VideoURL: status.VideoURL,
		Error:    status.Error,
	}
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (h *VideoHandler) channelOrDefault(channel string) string {
	if channel == "" {
		return h.defaultChannel
	}
	return channel
}
