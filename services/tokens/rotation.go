package tokens

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
)

// DefaultMaxRetries bounds one rotation run
const DefaultMaxRetries = 10

var (
	// ErrNoTokens is returned when the pool is empty and anonymous calls are not allowed
	ErrNoTokens = errors.New("no API tokens configured")

	// ErrAllTokensExhausted is returned when every token in the pool is exhausted today
	ErrAllTokensExhausted = errors.New("all API tokens exhausted")

	// ErrMaxRetries is returned when the retry ceiling is hit before any success
	ErrMaxRetries = errors.New("maximum retry attempts reached")
)

// Rotation outcomes reported to the Observer
const (
	OutcomeSuccess   = "success"
	OutcomeQuota     = "quota"
	OutcomeError     = "error"
	OutcomeAnonymous = "anonymous"
)

// Observer receives rotation events, typically a metrics sink
type Observer interface {
	TokenExhausted(channelID string)
	RotationAttempt(channelID, outcome string)
}

// Options tunes one rotation run
type Options struct {
	// AllowAnonymous permits calling the operation with an empty token
	AllowAnonymous bool

	// MaxRetries bounds quota-class retries; <= 0 means DefaultMaxRetries
	MaxRetries int
}

// Operation is one capability call with the given token ("" = anonymous)
type Operation[T any] func(ctx context.Context, token string) (T, error)

// Engine drives capability calls across token pools
type Engine struct {
	tokens   *Manager
	logger   *zap.Logger
	observer Observer
}

// NewEngine creates a retry engine over the given token manager
func NewEngine(manager *Manager, logger *zap.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{tokens: manager, logger: logger, observer: observer}
}

// Tokens returns the underlying token manager
func (e *Engine) Tokens() *Manager {
	return e.tokens
}

func (e *Engine) observe(channelID, outcome string) {
	if e.observer != nil {
		e.observer.RotationAttempt(channelID, outcome)
	}
}

func (e *Engine) anonymous(channelID string) {
	e.logger.Debug("anonymous call", zap.String("channel", channelID))
	e.observe(channelID, OutcomeAnonymous)
}

// Run calls op with the first usable token of pool, rotating to the next
// token only on quota-class failures. Any other failure is returned as-is
// on first occurrence. Tokens are tried strictly in the given order.
func Run[T any](ctx context.Context, e *Engine, channelID string, pool []string, op Operation[T], opts Options) (T, error) {
	var zero T

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	if len(pool) == 0 {
		if opts.AllowAnonymous {
			e.anonymous(channelID)
			return op(ctx, "")
		}
		return zero, fmt.Errorf("%s: %w", channelID, ErrNoTokens)
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		token, ok := e.tokens.NextToken(channelID, pool)
		if !ok {
			if opts.AllowAnonymous {
				e.anonymous(channelID)
				return op(ctx, "")
			}
			return zero, fmt.Errorf("%s: %w", channelID, ErrAllTokensExhausted)
		}

		result, err := op(ctx, token)
		if err == nil {
			e.observe(channelID, OutcomeSuccess)
			return result, nil
		}

		if !providers.IsQuotaError(err) {
			e.observe(channelID, OutcomeError)
			return zero, err
		}

		e.tokens.MarkExhausted(channelID, token)
		e.observe(channelID, OutcomeQuota)
		if e.observer != nil {
			e.observer.TokenExhausted(channelID)
		}
		e.logger.Warn("token exhausted, rotating",
			zap.String("channel", channelID),
			zap.String("token", Mask(token)),
			zap.Int("attempt", attempt),
			zap.String("kind", string(providers.KindOf(err))),
		)
	}

	return zero, fmt.Errorf("%s: %w", channelID, ErrMaxRetries)
}
