package gitee

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/upb/genai-gateway/services/providers"
)

const (
	videoSteps    = "6"
	videoFrames   = "48"
	videoGuidance = "1"

	// VideoNegativePrompt is sent with every image-to-video task
	VideoNegativePrompt = "low quality, blurry, distorted, deformed, jittery motion, flickering, watermark, text, static frame"
)

// Video creates image-to-video tasks and reports their status
type Video struct {
	config providers.ChannelConfig
	client *providers.Client
}

// NewVideo creates the video capability
func NewVideo(cfg providers.ChannelConfig, opts Options) *Video {
	return &Video{
		config: cfg,
		client: &providers.Client{Provider: DisplayName, HTTP: opts.HTTP},
	}
}

// CreateTask submits a multipart image-to-video job
func (v *Video) CreateTask(ctx context.Context, req providers.VideoRequest, token string) (*providers.VideoTask, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, providers.ErrAuthRequired(DisplayName)
	}

	model := req.Model
	if model == "" {
		model = DefaultVideoModel
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"image", req.ImageURL},
		{"prompt", req.Prompt},
		{"negative_prompt", VideoNegativePrompt},
		{"model", model},
		{"num_inference_steps", videoSteps},
		{"num_frames", videoFrames},
		{"guidance_scale", videoGuidance},
		{"width", strconv.Itoa(req.Width)},
		{"height", strconv.Itoa(req.Height)},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, &providers.Error{Kind: providers.KindProviderError, Provider: DisplayName, Message: "failed to build form", Cause: err}
		}
	}
	if err := form.Close(); err != nil {
		return nil, &providers.Error{Kind: providers.KindProviderError, Provider: DisplayName, Message: "failed to build form", Cause: err}
	}

	headers := providers.BuildAuthHeaders(v.config.Auth, v.config.Headers, token)
	headers["Content-Type"] = form.FormDataContentType()

	endpoint := providers.JoinURL(v.config.BaseURL, v.config.Endpoints.Video)
	resp, err := v.client.Do(ctx, http.MethodPost, endpoint, headers, &buf)
	if err != nil {
		return nil, err
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := resp.Decode(DisplayName, &out); err != nil {
		return nil, err
	}
	if out.TaskID == "" {
		return nil, providers.ErrProvider(DisplayName, "no task_id returned")
	}
	return &providers.VideoTask{TaskID: out.TaskID}, nil
}

// GetStatus maps Gitee task states onto the normalized video states
func (v *Video) GetStatus(ctx context.Context, taskID string, token string) (*providers.VideoStatus, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, providers.ErrAuthRequired(DisplayName)
	}
	if taskID == "" {
		return nil, providers.ErrInvalidParams("taskId", "task id is required")
	}

	headers := providers.BuildAuthHeaders(v.config.Auth, v.config.Headers, token)
	resp, err := v.client.Get(ctx, providers.JoinURL(v.config.Endpoints.Tasks, url.PathEscape(taskID)), headers)
	if err != nil {
		return nil, err
	}

	var out struct {
		Status string `json:"status"`
		Output struct {
			FileURL string `json:"file_url"`
			Error   string `json:"error"`
		} `json:"output"`
	}
	if err := resp.Decode(DisplayName, &out); err != nil {
		return nil, err
	}

	switch out.Status {
	case "success":
		return &providers.VideoStatus{Status: providers.VideoSuccess, VideoURL: out.Output.FileURL}, nil
	case "failure":
		return &providers.VideoStatus{Status: providers.VideoFailed, Error: out.Output.Error}, nil
	case "is_process":
		return &providers.VideoStatus{Status: providers.VideoProcessing}, nil
	default:
		return &providers.VideoStatus{Status: providers.VideoPending}, nil
	}
}
