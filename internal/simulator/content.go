// Package simulator provides scheduler-driven stand-ins for a content video
// element and an ad player, so sessions can run without a real media stack.
package simulator

import (
	"time"

	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/eventloop"
)

// Content is a virtual content clock. Position advances with the scheduler's
// clock while playing. All methods must be called on the scheduler.
type Content struct {
	sched    eventloop.Scheduler
	duration time.Duration

	base    time.Duration // position when the clock was last anchored
	anchor  time.Time
	playing bool
	ended   bool

	endTimer eventloop.Timer
	onEnded  func()
}

// NewContent returns a paused content clock of the given duration.
func NewContent(sched eventloop.Scheduler, duration time.Duration) *Content {
	return &Content{sched: sched, duration: duration}
}

// OnEnded sets the hook called once when playback reaches the duration.
func (c *Content) OnEnded(fn func()) { c.onEnded = fn }

// Duration returns the content duration.
func (c *Content) Duration() time.Duration { return c.duration }

// Play starts or resumes the clock. It does nothing once content has ended.
func (c *Content) Play() {
	if c.playing || c.ended {
		return
	}
	c.playing = true
	c.anchor = c.sched.Now()
	c.scheduleEnd()
}

// Pause freezes the clock at its current position.
func (c *Content) Pause() {
	if !c.playing {
		return
	}
	c.base = c.Position()
	c.playing = false
	c.stopEnd()
}

// Seek jumps to pos, clamped to [0, duration]. Seeking after the end is
// ignored.
func (c *Content) Seek(pos time.Duration) {
	if c.ended {
		return
	}
	c.base = min(max(pos, 0), c.duration)
	c.anchor = c.sched.Now()
	if c.playing {
		c.scheduleEnd()
	}
}

// Position returns the current position.
func (c *Content) Position() time.Duration {
	if !c.playing {
		return c.base
	}
	return min(c.base+c.sched.Now().Sub(c.anchor), c.duration)
}

// Playing reports whether the clock is running.
func (c *Content) Playing() bool { return c.playing }

// Ended reports whether playback reached the end.
func (c *Content) Ended() bool { return c.ended }

// ContentProgress implements orchestrator.ContentProgressProvider.
func (c *Content) ContentProgress() orchestrator.Progress {
	return orchestrator.Progress{Position: c.Position(), Duration: c.duration}
}

// OnAdEvent implements orchestrator.EventListener: content pauses for breaks
// and resumes after them.
func (c *Content) OnAdEvent(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventContentPauseRequested:
		c.Pause()
	case orchestrator.EventContentResumeRequested:
		c.Play()
	}
}

func (c *Content) scheduleEnd() {
	c.stopEnd()
	c.endTimer = c.sched.AfterFunc(c.duration-c.base, c.end)
}

func (c *Content) stopEnd() {
	if c.endTimer != nil {
		c.endTimer.Stop()
		c.endTimer = nil
	}
}

func (c *Content) end() {
	c.endTimer = nil
	c.base = c.duration
	c.playing = false
	c.ended = true
	if c.onEnded != nil {
		c.onEnded()
	}
}
