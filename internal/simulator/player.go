package simulator

import (
	"errors"
	"slices"
	"time"

	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/eventloop"
)

var (
	// ErrNoCreative is returned when the player has nothing loaded.
	ErrNoCreative = errors.New("no creative loaded")

	// ErrNoMedia is returned when a creative has no playable media URI.
	ErrNoMedia = errors.New("creative has no media uri")

	// ErrNilCallback is returned when registering a nil callback.
	ErrNilCallback = errors.New("nil player callback")
)

var _ orchestrator.AdPlayer = (*Player)(nil)

// Player is a virtual ad player. The loaded creative plays for its duration
// on the scheduler's clock. Callbacks are invoked synchronously on the
// scheduler. All methods must be called on the scheduler.
type Player struct {
	sched     eventloop.Scheduler
	callbacks []orchestrator.PlayerCallback

	ad      *orchestrator.ResolvedAd
	base    time.Duration
	anchor  time.Time
	playing bool
	started bool

	endTimer eventloop.Timer
}

// NewPlayer returns an empty Player.
func NewPlayer(sched eventloop.Scheduler) *Player {
	return &Player{sched: sched}
}

// RegisterCallback implements orchestrator.AdPlayer.
func (p *Player) RegisterCallback(cb orchestrator.PlayerCallback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if !slices.Contains(p.callbacks, cb) {
		p.callbacks = append(p.callbacks, cb)
	}
	return nil
}

// UnregisterCallback implements orchestrator.AdPlayer.
func (p *Player) UnregisterCallback(cb orchestrator.PlayerCallback) {
	p.callbacks = slices.DeleteFunc(p.callbacks, func(c orchestrator.PlayerCallback) bool { return c == cb })
}

// Callbacks returns the number of registered callbacks.
func (p *Player) Callbacks() int { return len(p.callbacks) }

// Load implements orchestrator.AdPlayer. A creative without a media URI
// cannot be played.
func (p *Player) Load(ad orchestrator.ResolvedAd) error {
	p.reset()
	if ad.MediaURI == "" {
		return ErrNoMedia
	}
	p.ad = &ad
	return nil
}

// Play implements orchestrator.AdPlayer.
func (p *Player) Play() error {
	if p.ad == nil {
		return ErrNoCreative
	}
	if p.playing {
		return nil
	}
	p.playing = true
	p.anchor = p.sched.Now()
	p.endTimer = p.sched.AfterFunc(p.ad.Duration-p.base, p.complete)

	if p.started {
		p.each(func(cb orchestrator.PlayerCallback) { cb.OnAdResumed() })
		return nil
	}
	p.started = true
	p.each(func(cb orchestrator.PlayerCallback) { cb.OnAdStarted() })
	return nil
}

// Pause implements orchestrator.AdPlayer.
func (p *Player) Pause() error {
	if p.ad == nil {
		return ErrNoCreative
	}
	if !p.playing {
		return nil
	}
	p.base = p.position()
	p.playing = false
	p.stopTimer()
	p.each(func(cb orchestrator.PlayerCallback) { cb.OnAdPaused() })
	return nil
}

// Stop implements orchestrator.AdPlayer. It unloads the creative.
func (p *Player) Stop() error {
	p.reset()
	return nil
}

// Skip ends the current creative early as if the viewer skipped it.
func (p *Player) Skip() error {
	if p.ad == nil {
		return ErrNoCreative
	}
	p.base = p.position()
	p.playing = false
	p.stopTimer()
	p.each(func(cb orchestrator.PlayerCallback) { cb.OnAdSkipped() })
	return nil
}

// Fail reports a playback error for the current creative.
func (p *Player) Fail(err error) {
	p.playing = false
	p.stopTimer()
	p.each(func(cb orchestrator.PlayerCallback) { cb.OnAdError(err) })
}

// Current returns the loaded creative's id, or "".
func (p *Player) Current() string {
	if p.ad == nil {
		return ""
	}
	return p.ad.ID
}

// Playing reports whether a creative is playing.
func (p *Player) Playing() bool { return p.playing }

// AdProgress implements orchestrator.AdProgressProvider.
func (p *Player) AdProgress() orchestrator.Progress {
	if p.ad == nil {
		return orchestrator.Progress{}
	}
	return orchestrator.Progress{Position: p.position(), Duration: p.ad.Duration}
}

func (p *Player) position() time.Duration {
	if !p.playing {
		return p.base
	}
	return min(p.base+p.sched.Now().Sub(p.anchor), p.ad.Duration)
}

func (p *Player) complete() {
	p.endTimer = nil
	p.base = p.ad.Duration
	p.playing = false
	p.each(func(cb orchestrator.PlayerCallback) { cb.OnAdCompleted() })
}

func (p *Player) reset() {
	p.stopTimer()
	p.ad = nil
	p.base = 0
	p.playing = false
	p.started = false
}

func (p *Player) stopTimer() {
	if p.endTimer != nil {
		p.endTimer.Stop()
		p.endTimer = nil
	}
}

func (p *Player) each(fn func(orchestrator.PlayerCallback)) {
	for _, cb := range slices.Clone(p.callbacks) {
		fn(cb)
	}
}
