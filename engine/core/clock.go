package core

import "time"

type Clock struct {
	now       func() time.Time
	startTime time.Time
	lastTick  time.Time
	lastFrame time.Duration
	elapsed   time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.startTime.IsZero() {
		c.elapsed = c.now().Sub(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.lastTick = c.startTime
	c.lastFrame = 0
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.startTime = time.Time{}
}

// LastFrame is the uncapped interval measured by the latest Tick.
func (c *Clock) LastFrame() time.Duration {
	return c.lastFrame
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// Tick returns the seconds passed since the previous Tick (or Start),
// capped at maxSeconds.
func (c *Clock) Tick(maxSeconds float32) (float32, error) {
	if c.startTime.IsZero() {
		return 0, ErrClockNotStarted
	}
	now := c.now()
	c.lastFrame = now.Sub(c.lastTick)
	c.lastTick = now
	dt := float32(c.lastFrame.Seconds())
	if dt > maxSeconds {
		dt = maxSeconds
	}
	return dt, nil
}
