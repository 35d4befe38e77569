package huggingface

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/upb/genai-gateway/services/providers"
)

const maxSSELineSize = 1 << 20

// GradioClient speaks the two-step Gradio Space call protocol: a POST that
// queues the job and returns an event id, then a GET that streams SSE
// events until "complete" or "error".
type GradioClient struct {
	client *providers.Client
}

// NewGradioClient creates a Gradio client on the given transport
func NewGradioClient(doer providers.Doer) *GradioClient {
	return &GradioClient{client: &providers.Client{Provider: DisplayName, HTTP: doer}}
}

// Call runs endpoint on the space with positional data and returns the
// decoded data array of the complete event
func (g *GradioClient) Call(ctx context.Context, space, endpoint string, data []any, token string) ([]any, error) {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	callURL := providers.JoinURL(space, "/gradio_api/call/"+endpoint)
	resp, err := g.client.PostJSON(ctx, callURL, headers, map[string]any{"data": data})
	if err != nil {
		return nil, err
	}

	var queued struct {
		EventID string `json:"event_id"`
	}
	if err := resp.Decode(DisplayName, &queued); err != nil {
		return nil, err
	}
	if queued.EventID == "" {
		return nil, providers.ErrProvider(DisplayName, "no event_id returned")
	}

	stream, err := g.client.Stream(ctx, http.MethodGet, callURL+"/"+queued.EventID, headers, nil)
	if err != nil {
		return nil, err
	}
	defer stream.Body.Close()

	return readCompleteEvent(stream.Body)
}

// readCompleteEvent scans an SSE stream for the first data line of a
// "complete" event. An "error" event means the anonymous GPU quota ran out.
func readCompleteEvent(r io.Reader) ([]any, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)

	event := ""
	var seen strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if seen.Len() < 200 {
			seen.WriteString(line)
			seen.WriteByte('\n')
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if event == "error" {
				err := providers.ErrQuotaExceeded(DisplayName)
				err.Message = "quota exhausted, set a HuggingFace token"
				return nil, err
			}
		case strings.HasPrefix(line, "data:") && event == "complete":
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var data []any
			if err := json.Unmarshal([]byte(payload), &data); err != nil {
				return nil, &providers.Error{
					Kind:     providers.KindProviderError,
					Provider: DisplayName,
					Message:  "invalid complete event payload",
					Upstream: payload,
					Cause:    err,
				}
			}
			return data, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, providers.ErrTransport(DisplayName, fmt.Errorf("reading event stream: %w", err))
	}

	return nil, providers.ErrProvider(DisplayName, "no complete event in response: "+strings.TrimSpace(seen.String()))
}
