package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/upb/genai-gateway/services/generation"
	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/utils"
)

// MockGenerationService is a mock implementation of every service interface the handlers use
type MockGenerationService struct {
	mock.Mock
}

func (m *MockGenerationService) GenerateImage(ctx context.Context, model string, req providers.ImageRequest, creds generation.Credentials) (*generation.ImageResponse, error) {
	args := m.Called(ctx, model, req, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.ImageResponse), args.Error(1)
}

func (m *MockGenerationService) Complete(ctx context.Context, model string, req providers.LLMRequest, creds generation.Credentials) (*generation.ChatResponse, error) {
	args := m.Called(ctx, model, req, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.ChatResponse), args.Error(1)
}

func (m *MockGenerationService) CreateVideo(ctx context.Context, channelID string, req providers.VideoRequest, creds generation.Credentials) (*providers.VideoTask, error) {
	args := m.Called(ctx, channelID, req, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.VideoTask), args.Error(1)
}

func (m *MockGenerationService) VideoStatus(ctx context.Context, channelID, taskID string, creds generation.Credentials) (*providers.VideoStatus, error) {
	args := m.Called(ctx, channelID, taskID, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.VideoStatus), args.Error(1)
}

func (m *MockGenerationService) Models() []generation.Model {
	return m.Called().Get(0).([]generation.Model)
}

func (m *MockGenerationService) Channels() []generation.ChannelInfo {
	return m.Called().Get(0).([]generation.ChannelInfo)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}
