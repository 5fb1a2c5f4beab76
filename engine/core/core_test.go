package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorIsMonotonic(t *testing.T) {
	g := NewIDGenerator()
	for want := ID(0); want < 5; want++ {
		assert.Equal(t, want, g.Next())
	}
	assert.Equal(t, uint32(5), g.Issued())

	other := NewIDGenerator()
	assert.Equal(t, ID(0), other.Next(), "generators do not share state")
}

func TestIDGeneratorConcurrentUnique(t *testing.T) {
	g := NewIDGenerator()
	const n = 64
	ids := make(chan ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[ID]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestEventBusRegisterFireUnregister(t *testing.T) {
	bus := NewEventBus()
	listener := &struct{}{}
	var got []SystemEventCode

	require.NoError(t, bus.Register(EVENT_CODE_RESIZED, listener, func(ctx EventContext) bool {
		got = append(got, ctx.Type)
		return true
	}))
	assert.ErrorIs(t, bus.Register(EVENT_CODE_RESIZED, listener, nil), ErrEventAlreadyListened)

	assert.True(t, bus.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_KEY_PRESSED}))
	assert.Equal(t, []SystemEventCode{EVENT_CODE_RESIZED}, got)

	require.NoError(t, bus.Unregister(EVENT_CODE_RESIZED, listener))
	assert.ErrorIs(t, bus.Unregister(EVENT_CODE_RESIZED, listener), ErrEventNotListened)
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
}

func TestInputFiresOnStateChangeOnly(t *testing.T) {
	bus := NewEventBus()
	in := NewInput(bus)
	pressed := 0
	require.NoError(t, bus.Register(EVENT_CODE_KEY_PRESSED, t, func(ctx EventContext) bool {
		ke := ctx.Data.(*KeyEvent)
		assert.Equal(t, KEY_W, ke.KeyCode)
		pressed++
		return true
	}))

	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_W, true)
	assert.Equal(t, 1, pressed)
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.False(t, in.WasKeyDown(KEY_W))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_W))
}

func TestClockTickIsCapped(t *testing.T) {
	now := time.Unix(100, 0)
	c := &Clock{now: func() time.Time { return now }}

	_, err := c.Tick(0.1)
	assert.ErrorIs(t, err, ErrClockNotStarted)

	c.Start()
	now = now.Add(16 * time.Millisecond)
	dt, err := c.Tick(0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.016, dt, 1e-6)

	now = now.Add(3 * time.Second)
	dt, err = c.Tick(0.1)
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), dt)
	assert.Equal(t, 3*time.Second, c.LastFrame(), "measured interval is not capped")

	c.Update()
	assert.Equal(t, 3016*time.Millisecond, c.Elapsed())
}

func TestFrameMetricsFPS(t *testing.T) {
	m := NewFrameMetrics()
	ready := false
	for i := 0; i < 100; i++ {
		if m.Update(0.01) {
			ready = true
		}
	}
	assert.True(t, ready)
	assert.InDelta(t, 100, m.FPS(), 1)
	assert.InDelta(t, 10, m.FrameTime(), 1e-9)
}

func TestSetLogLevel(t *testing.T) {
	assert.NoError(t, SetLogLevel("info"))
	assert.Error(t, SetLogLevel("loud"))
	assert.NoError(t, SetLogLevel("debug"))
}
