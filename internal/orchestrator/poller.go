package orchestrator

import (
	"time"

	"ad-orchestrator/internal/platform/eventloop"
)

// DefaultPollInterval is the default sampling period of the poller.
const DefaultPollInterval = 200 * time.Millisecond

// Poller samples either the content clock or the ad clock on one recurring
// timer and forwards samples to the listeners of the active mode. Only
// ModeContent and ModeAdPlaying sample; other modes leave the timer idle.
type Poller struct {
	sched    eventloop.Scheduler
	interval time.Duration

	content ContentProgressProvider
	ad      AdProgressProvider

	contentListeners []ContentProgressListener
	adListeners      []AdProgressListener

	mode  PlaybackMode
	timer eventloop.Timer
	gen   uint64 // bumped on every mode change; stale ticks compare unequal
}

// NewPoller returns an idle Poller. If interval <= 0, DefaultPollInterval is used.
func NewPoller(sched eventloop.Scheduler, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{sched: sched, interval: interval}
}

// SetContentProvider sets the source sampled in ModeContent.
func (p *Poller) SetContentProvider(c ContentProgressProvider) { p.content = c }

// SetAdProvider sets the source sampled in ModeAdPlaying.
func (p *Poller) SetAdProvider(a AdProgressProvider) { p.ad = a }

// AddContentListener registers l for content samples.
func (p *Poller) AddContentListener(l ContentProgressListener) {
	p.contentListeners = append(p.contentListeners, l)
}

// AddAdListener registers l for ad samples.
func (p *Poller) AddAdListener(l AdProgressListener) {
	p.adListeners = append(p.adListeners, l)
}

// RemoveContentListeners unregisters every content listener.
func (p *Poller) RemoveContentListeners() { p.contentListeners = nil }

// RemoveAdListeners unregisters every ad listener.
func (p *Poller) RemoveAdListeners() { p.adListeners = nil }

// Mode returns the active mode.
func (p *Poller) Mode() PlaybackMode { return p.mode }

// Interval returns the sampling period.
func (p *Poller) Interval() time.Duration { return p.interval }

// SetInterval changes the sampling period and restarts the timer of the
// active mode.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.interval = d
	if p.timer != nil {
		p.Start(p.mode)
	}
}

// Start makes mode the active one, discards any tick scheduled for the
// previous mode and schedules the first sample one interval from now.
func (p *Poller) Start(mode PlaybackMode) {
	p.cancel()
	p.mode = mode
	if mode == ModeContent || mode == ModeAdPlaying {
		p.schedule()
	}
}

// Stop deactivates mode if it is the active one.
func (p *Poller) Stop(mode PlaybackMode) {
	if p.mode != mode {
		return
	}
	p.cancel()
	p.mode = ModeIdle
}

// Destroy cancels the timer and drops every listener.
func (p *Poller) Destroy() {
	p.cancel()
	p.mode = ModeIdle
	p.contentListeners = nil
	p.adListeners = nil
}

func (p *Poller) cancel() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Poller) schedule() {
	gen := p.gen
	p.timer = p.sched.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Poller) tick(gen uint64) {
	if gen != p.gen {
		return
	}
	p.timer = nil

	switch p.mode {
	case ModeContent:
		if p.content != nil {
			sample := p.content.ContentProgress()
			for _, l := range p.contentListeners {
				l.OnContentProgress(sample)
				if gen != p.gen {
					// A listener switched modes; its replacement owns the timer.
					return
				}
			}
		}
	case ModeAdPlaying:
		if p.ad != nil {
			sample := p.ad.AdProgress()
			for _, l := range p.adListeners {
				l.OnAdProgress(sample)
				if gen != p.gen {
					return
				}
			}
		}
	default:
		return
	}
	p.schedule()
}
