// Package asynctask implements the submit-then-poll protocol used by
// providers that cannot finish a generation inside one request.
package asynctask

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultMaxPollAttempts = 35
)

// State is the normalized lifecycle state of a task
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether polling should stop
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is one decoded poll response
type Status struct {
	State State
	URL   string
	Error string
}

// Decoder turns a poll response into a Status
type Decoder func(resp *providers.Response) (*Status, error)

// IDExtractor pulls the task id out of a submit response
type IDExtractor func(resp *providers.Response) (string, error)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observer receives one event per poll
type Observer interface {
	AsyncPoll(channelID, result string)
}

// Machine drives one channel's submit/poll exchanges
type Machine struct {
	// ChannelID labels logs and metrics
	ChannelID string

	// Client performs the HTTP exchanges; its Provider names the channel in errors
	Client *providers.Client

	Interval    time.Duration
	MaxAttempts int

	Sleep    Sleeper
	Logger   *zap.Logger
	Observer Observer
}

func (m *Machine) interval() time.Duration {
	if m.Interval <= 0 {
		return DefaultPollInterval
	}
	return m.Interval
}

func (m *Machine) maxAttempts() int {
	if m.MaxAttempts <= 0 {
		return DefaultMaxPollAttempts
	}
	return m.MaxAttempts
}

func (m *Machine) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (m *Machine) observe(result string) {
	if m.Observer != nil {
		m.Observer.AsyncPoll(m.ChannelID, result)
	}
}

// Submit posts body to url and returns the task id
func (m *Machine) Submit(ctx context.Context, url string, headers map[string]string, body any, extract IDExtractor) (string, error) {
	resp, err := m.Client.PostJSON(ctx, url, headers, body)
	if err != nil {
		return "", err
	}
	if extract == nil {
		extract = m.TaskID
	}

	id, err := extract(resp)
	if err != nil {
		return "", err
	}

	m.logger().Info("async task submitted",
		zap.String("channel", m.ChannelID),
		zap.String("task_id", id),
	)
	return id, nil
}

// TaskID reads {"task_id": "..."} and fails when it is absent
func (m *Machine) TaskID(resp *providers.Response) (string, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := resp.Decode(m.Client.Provider, &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", providers.ErrProvider(m.Client.Provider, "no task_id returned")
	}
	return out.TaskID, nil
}

// Poll GETs url until the task reaches a terminal state, sleeping between
// attempts but not before the first. A non-2xx poll aborts immediately with
// the classified error. Exhausting MaxAttempts yields a timeout error.
func (m *Machine) Poll(ctx context.Context, url string, headers map[string]string, decode Decoder) (string, error) {
	sleep := m.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	max := m.maxAttempts()

	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, m.interval()); err != nil {
				return "", err
			}
		}

		resp, err := m.Client.Get(ctx, url, headers)
		if err != nil {
			m.observe("error")
			return "", err
		}

		status, err := decode(resp)
		if err != nil {
			m.observe("error")
			return "", err
		}

		m.logger().Debug("async task polled",
			zap.String("channel", m.ChannelID),
			zap.Int("attempt", attempt),
			zap.String("state", string(status.State)),
		)

		switch status.State {
		case StateSucceeded:
			if status.URL == "" {
				m.observe("error")
				return "", providers.ErrProvider(m.Client.Provider, "no output in task result")
			}
			m.observe("succeeded")
			return status.URL, nil
		case StateFailed:
			m.observe("failed")
			msg := status.Error
			if msg == "" {
				msg = "task failed"
			}
			return "", providers.ErrProvider(m.Client.Provider, msg)
		default:
			m.observe("pending")
		}
	}

	m.observe("timeout")
	return "", providers.ErrTimeout(m.Client.Provider,
		fmt.Sprintf("%s task did not finish after %d polls", m.ChannelID, max))
}

// DecodeTaskStatus reads the {task_status, output_images, error_message} shape
func DecodeTaskStatus(provider string) Decoder {
	return func(resp *providers.Response) (*Status, error) {
		var out struct {
			TaskStatus   string   `json:"task_status"`
			OutputImages []string `json:"output_images"`
			ErrorMessage string   `json:"error_message"`
		}
		if err := resp.Decode(provider, &out); err != nil {
			return nil, err
		}

		status := &Status{Error: out.ErrorMessage}
		switch out.TaskStatus {
		case "SUCCEED":
			status.State = StateSucceeded
			if len(out.OutputImages) > 0 {
				status.URL = out.OutputImages[0]
			}
		case "FAILED":
			status.State = StateFailed
		case "RUNNING":
			status.State = StateRunning
		default:
			status.State = StatePending
		}
		return status, nil
	}
}
