package asynctask

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/genai-gateway/services/providers"
)

type countingSleeper struct {
	calls int
	last  time.Duration
}

func (s *countingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.calls++
	s.last = d
	return nil
}

type pollObserver struct {
	results []string
}

func (o *pollObserver) AsyncPoll(_ string, result string) {
	o.results = append(o.results, result)
}

func newMachine(server *httptest.Server, sleeper *countingSleeper, max int) *Machine {
	return &Machine{
		ChannelID:   "modelscope",
		Client:      &providers.Client{Provider: "ModelScope", HTTP: server.Client()},
		Interval:    3 * time.Second,
		MaxAttempts: max,
		Sleep:       sleeper.Sleep,
	}
}

func TestMachine_SubmitThenPollSucceedsOnThirdPoll(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/images/generations":
			assert.Equal(t, "true", r.Header.Get("X-ModelScope-Async-Mode"))
			_, _ = w.Write([]byte(`{"task_id":"t1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/tasks/t1":
			n := atomic.AddInt32(&polls, 1)
			if n < 3 {
				_, _ = w.Write([]byte(`{"task_status":"RUNNING"}`))
				return
			}
			_, _ = w.Write([]byte(`{"task_status":"SUCCEED","output_images":["https://x/z.png"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	sleeper := &countingSleeper{}
	obs := &pollObserver{}
	m := newMachine(server, sleeper, 35)
	m.Observer = obs

	id, err := m.Submit(context.Background(), server.URL+"/images/generations",
		map[string]string{"X-ModelScope-Async-Mode": "true"}, map[string]any{"prompt": "p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	url, err := m.Poll(context.Background(), server.URL+"/tasks/"+id, nil, DecodeTaskStatus("ModelScope"))
	require.NoError(t, err)
	assert.Equal(t, "https://x/z.png", url)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
	assert.Equal(t, 2, sleeper.calls)
	assert.Equal(t, 3*time.Second, sleeper.last)
	assert.Equal(t, []string{"pending", "pending", "succeeded"}, obs.results)
}

func TestMachine_PollTimesOut(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		_, _ = w.Write([]byte(`{"task_status":"PENDING"}`))
	}))
	defer server.Close()

	sleeper := &countingSleeper{}
	m := newMachine(server, sleeper, 5)

	_, err := m.Poll(context.Background(), server.URL+"/tasks/t1", nil, DecodeTaskStatus("ModelScope"))
	require.Error(t, err)
	assert.Equal(t, providers.KindTimeout, providers.KindOf(err))
	assert.Contains(t, err.Error(), "modelscope")
	assert.Equal(t, int32(5), atomic.LoadInt32(&polls))
	assert.Equal(t, 4, sleeper.calls)
}

func TestMachine_PollFailedSurfacesUpstreamText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_status":"FAILED","error_message":"content moderation"}`))
	}))
	defer server.Close()

	m := newMachine(server, &countingSleeper{}, 5)

	_, err := m.Poll(context.Background(), server.URL, nil, DecodeTaskStatus("ModelScope"))
	assert.Equal(t, providers.KindProviderError, providers.KindOf(err))
	assert.Contains(t, err.Error(), "content moderation")
}

func TestMachine_PollSucceededWithoutOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_status":"SUCCEED","output_images":[]}`))
	}))
	defer server.Close()

	m := newMachine(server, &countingSleeper{}, 5)

	_, err := m.Poll(context.Background(), server.URL, nil, DecodeTaskStatus("ModelScope"))
	assert.Equal(t, providers.KindProviderError, providers.KindOf(err))
}

func TestMachine_PollNon2xxAbortsImmediately(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":{"message":"Rate limit"}}`))
	}))
	defer server.Close()

	m := newMachine(server, &countingSleeper{}, 5)

	_, err := m.Poll(context.Background(), server.URL, nil, DecodeTaskStatus("ModelScope"))
	assert.Equal(t, providers.KindRateLimited, providers.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&polls))
}

func TestMachine_SubmitWithoutTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	m := newMachine(server, &countingSleeper{}, 5)

	_, err := m.Submit(context.Background(), server.URL, nil, map[string]any{}, nil)
	assert.Equal(t, providers.KindProviderError, providers.KindOf(err))
	assert.Contains(t, err.Error(), "no task_id returned")
}

func TestMachine_PollStopsWhenContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_status":"RUNNING"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	m := newMachine(server, &countingSleeper{}, 10)
	m.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := m.Poll(ctx, server.URL, nil, DecodeTaskStatus("ModelScope"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
