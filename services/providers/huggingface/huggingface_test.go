package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/genai-gateway/services/providers"
)

// gradioSpace stubs a Space serving one endpoint with a fixed SSE stream
func gradioSpace(t *testing.T, endpoint, stream string, gotData *[]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callPath := "/gradio_api/call/" + endpoint
		switch {
		case r.Method == http.MethodPost && r.URL.Path == callPath:
			var body struct {
				Data []any `json:"data"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if gotData != nil {
				*gotData = body.Data
			}
			_, _ = w.Write([]byte(`{"event_id":"ev1"}`))
		case r.Method == http.MethodGet && r.URL.Path == callPath+"/ev1":
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(stream))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func completeEvent(payload string) string {
	return fmt.Sprintf("event: generating\ndata: null\n\nevent: complete\ndata: %s\n\n", payload)
}

func seed(v int64) *int64 { return &v }

func TestImage_Generate(t *testing.T) {
	var data []any
	space := gradioSpace(t, "generate_image", completeEvent(`[{"url":"/file=/tmp/out.png"},1234]`), &data)
	defer space.Close()

	img := NewImage(Options{
		HTTP:   space.Client(),
		Spaces: map[string]string{"z-image-turbo": space.URL},
		Seeds:  func() int64 { return 7 },
	})
	result, err := img.Generate(context.Background(), providers.ImageRequest{Prompt: "cat", Width: 512, Height: 768}, "")
	require.NoError(t, err)

	assert.Equal(t, space.URL+"/file=/tmp/out.png", result.URL)
	assert.Equal(t, int64(1234), result.Seed)
	assert.Equal(t, DefaultImageModel, result.Model)
	assert.Equal(t, []any{"cat", float64(768), float64(512), float64(9), float64(7), false}, data)
}

func TestImage_QwenSeedFromText(t *testing.T) {
	space := gradioSpace(t, "generate_image", completeEvent(`["https://cdn/q.png","Seed used for generation: 4242"]`), nil)
	defer space.Close()

	img := NewImage(Options{HTTP: space.Client(), Spaces: map[string]string{"qwen-image-fast": space.URL}})
	result, err := img.Generate(context.Background(), providers.ImageRequest{Prompt: "p", Model: "qwen-image-fast", Seed: seed(1)}, "")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn/q.png", result.URL)
	assert.Equal(t, int64(4242), result.Seed)
}

func TestImage_SendsTokenWhenPresent(t *testing.T) {
	space := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf_token_1", r.Header.Get("Authorization"))
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"event_id":"ev1"}`))
			return
		}
		_, _ = w.Write([]byte(completeEvent(`["https://cdn/a.png"]`)))
	}))
	defer space.Close()

	img := NewImage(Options{HTTP: space.Client(), Spaces: map[string]string{"flux-1-schnell": space.URL}})
	result, err := img.Generate(context.Background(), providers.ImageRequest{Prompt: "p", Model: "flux-1-schnell", Seed: seed(3)}, " hf_token_1 ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Seed)
}

func TestImage_ErrorEventIsQuota(t *testing.T) {
	space := gradioSpace(t, "generate", "event: error\ndata: null\n\n", nil)
	defer space.Close()

	img := NewImage(Options{HTTP: space.Client(), Spaces: map[string]string{"ovis-image": space.URL}})
	_, err := img.Generate(context.Background(), providers.ImageRequest{Prompt: "p", Model: "ovis-image"}, "")
	require.Error(t, err)
	assert.Equal(t, providers.KindQuotaExceeded, providers.KindOf(err))
	assert.True(t, providers.IsQuotaError(err))
}

func TestImage_FallbackOnlyOn404(t *testing.T) {
	var hits atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer primary.Close()

	fallback := gradioSpace(t, "generate_image", completeEvent(`["https://cdn/fb.png"]`), nil)
	defer fallback.Close()

	img := NewImage(Options{HTTP: primary.Client(), Spaces: map[string]string{"z-image-turbo": primary.URL}})
	saved := fallbackSpaces["z-image-turbo"]
	fallbackSpaces["z-image-turbo"] = []string{fallback.URL}
	defer func() { fallbackSpaces["z-image-turbo"] = saved }()

	result, err := img.Generate(context.Background(), providers.ImageRequest{Prompt: "p"}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/fb.png", result.URL)
	assert.Equal(t, int32(1), hits.Load())
}

func TestImage_NoFallbackOnOtherErrors(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer primary.Close()

	var called atomic.Bool
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer fallback.Close()

	img := NewImage(Options{HTTP: primary.Client(), Spaces: map[string]string{"z-image-turbo": primary.URL}})
	saved := fallbackSpaces["z-image-turbo"]
	fallbackSpaces["z-image-turbo"] = []string{fallback.URL}
	defer func() { fallbackSpaces["z-image-turbo"] = saved }()

	_, err := img.Generate(context.Background(), providers.ImageRequest{Prompt: "p"}, "")
	require.Error(t, err)
	assert.Equal(t, providers.KindProviderError, providers.KindOf(err))
	assert.False(t, called.Load())
}

func TestReadCompleteEvent(t *testing.T) {
	t.Run("no complete event", func(t *testing.T) {
		_, err := readCompleteEvent(strings.NewReader("event: heartbeat\ndata: null\n\n"))
		assert.Equal(t, providers.KindProviderError, providers.KindOf(err))
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := readCompleteEvent(strings.NewReader("event: complete\ndata: {not json\n"))
		assert.Equal(t, providers.KindProviderError, providers.KindOf(err))
	})

	t.Run("large line", func(t *testing.T) {
		big := strings.Repeat("a", 200*1024)
		data, err := readCompleteEvent(strings.NewReader("event: complete\ndata: [\"" + big + "\"]\n"))
		require.NoError(t, err)
		assert.Equal(t, big, data[0])
	})
}

func TestFirstImageURL(t *testing.T) {
	space := "https://x.hf.space"
	assert.Equal(t, "https://cdn/a.png", firstImageURL(space, []any{"https://cdn/a.png"}))
	assert.Equal(t, "https://x.hf.space/file=a.png", firstImageURL(space, []any{map[string]any{"url": "/file=a.png"}}))
	assert.Empty(t, firstImageURL(space, []any{}))
	assert.Empty(t, firstImageURL(space, []any{map[string]any{"path": "a.png"}}))
}
