package tokens

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManager_NextTokenFirstAvailable(t *testing.T) {
	m := NewManager(nil)
	pool := []string{"a", "b", "c"}

	tok, ok := m.NextToken("ch", pool)
	require.True(t, ok)
	assert.Equal(t, "a", tok)

	// not round-robin: same answer until marked
	tok, _ = m.NextToken("ch", pool)
	assert.Equal(t, "a", tok)

	m.MarkExhausted("ch", "a")
	tok, _ = m.NextToken("ch", pool)
	assert.Equal(t, "b", tok)

	m.MarkExhausted("ch", "b")
	m.MarkExhausted("ch", "c")
	_, ok = m.NextToken("ch", pool)
	assert.False(t, ok)
}

func TestManager_MarkExhaustedIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.MarkExhausted("ch", "a")
	m.MarkExhausted("ch", "a")

	assert.Equal(t, Stats{Total: 2, Active: 1, Exhausted: 1}, m.Stats("ch", []string{"a", "b"}))
}

func TestManager_ChannelsAreIsolated(t *testing.T) {
	m := NewManager(nil)
	m.MarkExhausted("gitee", "shared")

	assert.True(t, m.IsExhausted("gitee", "shared"))
	assert.False(t, m.IsExhausted("modelscope", "shared"))

	tok, ok := m.NextToken("modelscope", []string{"shared"})
	require.True(t, ok)
	assert.Equal(t, "shared", tok)
}

func TestManager_StatsOnlyCountPresentedTokens(t *testing.T) {
	m := NewManager(nil)
	m.MarkExhausted("ch", "gone")
	m.MarkExhausted("ch", "a")

	assert.Equal(t, Stats{Total: 2, Active: 1, Exhausted: 1}, m.Stats("ch", []string{"a", "b"}))
	assert.Equal(t, Stats{}, m.Stats("ch", nil))
}

func TestManager_DailyResetAtUTCMidnight(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC))
	m := NewManager(clock.Now)

	m.MarkExhausted("a", "tok")
	m.MarkExhausted("b", "tok")
	_, ok := m.NextToken("a", []string{"tok"})
	assert.False(t, ok)

	clock.Advance(30 * time.Second)
	assert.True(t, m.IsExhausted("a", "tok"))

	clock.Advance(time.Minute)
	// the reset is global, so the untouched channel b clears too
	tok, ok := m.NextToken("a", []string{"tok"})
	require.True(t, ok)
	assert.Equal(t, "tok", tok)
	assert.False(t, m.IsExhausted("b", "tok"))
}

func TestManager_ResetUsesUTCNotLocal(t *testing.T) {
	zone := time.FixedZone("UTC+8", 8*3600)
	// 2025-03-11 07:00 local is still 2025-03-10 in UTC
	clock := newFakeClock(time.Date(2025, 3, 11, 7, 0, 0, 0, zone))
	m := NewManager(clock.Now)
	m.MarkExhausted("ch", "tok")

	clock.Advance(30 * time.Minute)
	assert.True(t, m.IsExhausted("ch", "tok"))

	clock.Advance(time.Hour)
	assert.False(t, m.IsExhausted("ch", "tok"))
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(nil)
	m.MarkExhausted("a", "tok")
	m.MarkExhausted("b", "tok")

	m.Reset("a")
	assert.False(t, m.IsExhausted("a", "tok"))
	assert.True(t, m.IsExhausted("b", "tok"))

	m.ResetAll()
	assert.False(t, m.IsExhausted("b", "tok"))
}

func TestManager_ConcurrentAccessAcrossMidnight(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC))
	m := NewManager(clock.Now)
	pool := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 50 {
				clock.Advance(2 * time.Second)
			}
			m.MarkExhausted("ch", pool[i%len(pool)])
			_, _ = m.NextToken("ch", pool)
			_ = m.Stats("ch", pool)
		}(i)
	}
	wg.Wait()

	st := m.Stats("ch", pool)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, st.Total, st.Active+st.Exhausted)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "abcdefgh", []string{"abcdefgh"}},
		{"trims and splits", " ms-12345678 , gitee_abcdefg1 ", []string{"ms-12345678", "gitee_abcdefg1"}},
		{"drops short", "short,longenough1", []string{"longenough1"}},
		{"drops invalid chars", "has space in,ok:token.v1", []string{"ok:token.v1"}},
		{"drops empty entries", ",,abcdefgh,", []string{"abcdefgh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "abcd...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
