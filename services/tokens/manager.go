package tokens

import (
	"sync"
	"time"
)

// Clock returns the current time; tests substitute a fake
type Clock func() time.Time

const dateLayout = "2006-01-02"

// Stats counts tokens over a presented list
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Exhausted int `json:"exhausted"`
}

// Manager tracks, per channel, which tokens hit a quota-class failure
// during the current UTC day. The whole map is cleared once the UTC date
// advances, for all channels at once.
type Manager struct {
	mu        sync.Mutex
	exhausted map[string]map[string]struct{}
	lastReset string
	now       Clock
}

// NewManager creates a token manager. A nil clock uses time.Now.
func NewManager(clock Clock) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		exhausted: make(map[string]map[string]struct{}),
		now:       clock,
	}
}

// checkDailyReset must be called with mu held
func (m *Manager) checkDailyReset() {
	today := m.now().UTC().Format(dateLayout)
	if m.lastReset != today {
		m.exhausted = make(map[string]map[string]struct{})
		m.lastReset = today
	}
}

// NextToken returns the first token of the given order not exhausted for channelID today
func (m *Manager) NextToken(channelID string, tokens []string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDailyReset()
	set := m.exhausted[channelID]
	for _, t := range tokens {
		if _, gone := set[t]; !gone {
			return t, true
		}
	}
	return "", false
}

// MarkExhausted records token as exhausted for channelID. Idempotent.
func (m *Manager) MarkExhausted(channelID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDailyReset()
	set, ok := m.exhausted[channelID]
	if !ok {
		set = make(map[string]struct{})
		m.exhausted[channelID] = set
	}
	set[token] = struct{}{}
}

// IsExhausted reports whether token is exhausted for channelID today
func (m *Manager) IsExhausted(channelID, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDailyReset()
	_, gone := m.exhausted[channelID][token]
	return gone
}

// Stats counts only over the presented tokens
func (m *Manager) Stats(channelID string, tokens []string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDailyReset()
	set := m.exhausted[channelID]
	exhausted := 0
	for _, t := range tokens {
		if _, gone := set[t]; gone {
			exhausted++
		}
	}
	return Stats{Total: len(tokens), Active: len(tokens) - exhausted, Exhausted: exhausted}
}

// Reset clears one channel's exhaustion state
func (m *Manager) Reset(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.exhausted, channelID)
}

// ResetAll clears every channel
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exhausted = make(map[string]map[string]struct{})
}
