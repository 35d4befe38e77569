package providers

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrChannelNotFound is returned when a channel is not registered
	ErrChannelNotFound = errors.New("channel not found")

	// ErrCapabilityNotSupported is returned when a channel lacks the requested capability
	ErrCapabilityNotSupported = errors.New("capability not supported by channel")
)

// Registry manages channel instances. Registration upserts by id.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	order    []string
	logger   *zap.Logger
}

// NewRegistry creates a new channel registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// Register stores the channel, replacing any channel with the same id.
// It reports whether a previous channel was replaced.
func (r *Registry) Register(channel *Channel) (bool, error) {
	if channel == nil {
		return false, errors.New("channel cannot be nil")
	}
	if channel.ID == "" {
		return false, errors.New("channel id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.channels[channel.ID]
	r.channels[channel.ID] = channel
	if !replaced {
		r.order = append(r.order, channel.ID)
	}

	if replaced {
		r.logger.Warn("channel overwritten",
			zap.String("channel", channel.ID),
			zap.Strings("capabilities", channel.Kinds()),
		)
	} else {
		r.logger.Info("channel registered",
			zap.String("channel", channel.ID),
			zap.Strings("capabilities", channel.Kinds()),
		)
	}

	return replaced, nil
}

// Get retrieves a channel by id
func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[id]
	return ch, ok
}

// Has reports whether a channel is registered
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Image returns the image capability of a channel.
// ErrChannelNotFound and ErrCapabilityNotSupported are distinct.
func (r *Registry) Image(id string) (ImageCapability, error) {
	ch, ok := r.Get(id)
	if !ok {
		return nil, ErrChannelNotFound
	}
	if ch.Image == nil {
		return nil, ErrCapabilityNotSupported
	}
	return ch.Image, nil
}

// LLM returns the LLM capability of a channel
func (r *Registry) LLM(id string) (LLMCapability, error) {
	ch, ok := r.Get(id)
	if !ok {
		return nil, ErrChannelNotFound
	}
	if ch.LLM == nil {
		return nil, ErrCapabilityNotSupported
	}
	return ch.LLM, nil
}

// Video returns the video capability of a channel
func (r *Registry) Video(id string) (VideoCapability, error) {
	ch, ok := r.Get(id)
	if !ok {
		return nil, ErrChannelNotFound
	}
	if ch.Video == nil {
		return nil, ErrCapabilityNotSupported
	}
	return ch.Video, nil
}

// List returns a snapshot of all channels in registration order
func (r *Registry) List() []*Channel {
	return r.filter(func(*Channel) bool { return true })
}

// ListImage returns a snapshot of the channels offering image generation
func (r *Registry) ListImage() []*Channel {
	return r.filter(func(c *Channel) bool { return c.Image != nil })
}

// ListLLM returns a snapshot of the channels offering text completion
func (r *Registry) ListLLM() []*Channel {
	return r.filter(func(c *Channel) bool { return c.LLM != nil })
}

// ListVideo returns a snapshot of the channels offering video tasks
func (r *Registry) ListVideo() []*Channel {
	return r.filter(func(c *Channel) bool { return c.Video != nil })
}

func (r *Registry) filter(keep func(*Channel) bool) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Channel, 0, len(r.order))
	for _, id := range r.order {
		if ch := r.channels[id]; keep(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Count returns the number of registered channels
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
