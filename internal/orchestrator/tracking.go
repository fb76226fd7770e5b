package orchestrator

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

// TrackedEvent identifies one fired milestone.
type TrackedEvent struct {
	BreakID   string    `json:"break_id"`
	AdID      string    `json:"ad_id"`
	Milestone Milestone `json:"milestone"`
}

// TrackingRecord is the set of milestones already fired in a session.
type TrackingRecord struct {
	fired map[TrackedEvent]struct{}
	order []TrackedEvent
}

// NewTrackingRecord returns an empty record.
func NewTrackingRecord() *TrackingRecord {
	return &TrackingRecord{fired: make(map[TrackedEvent]struct{})}
}

// Mark records e and reports whether it was new.
func (r *TrackingRecord) Mark(e TrackedEvent) bool {
	if _, ok := r.fired[e]; ok {
		return false
	}
	r.fired[e] = struct{}{}
	r.order = append(r.order, e)
	return true
}

// Has reports whether e has been recorded.
func (r *TrackingRecord) Has(e TrackedEvent) bool {
	_, ok := r.fired[e]
	return ok
}

// Events returns recorded events in firing order.
func (r *TrackingRecord) Events() []TrackedEvent {
	return append([]TrackedEvent(nil), r.order...)
}

// Len returns the number of recorded events.
func (r *TrackingRecord) Len() int { return len(r.order) }

// quartiles are the progress ratios at which quartile milestones fire.
var quartiles = []struct {
	ratio     float64
	milestone Milestone
}{
	{0.25, MilestoneFirstQuartile},
	{0.50, MilestoneMidpoint},
	{0.75, MilestoneThirdQuartile},
}

// Dispatcher maps ad lifecycle signals to tracking calls, firing each
// (break, ad, milestone) at most once per session.
type Dispatcher struct {
	sink    TrackingSink
	record  *TrackingRecord
	log     *slog.Logger
	now     func() time.Time
	enabled bool

	breakID string
	ad      *ResolvedAd
}

// NewDispatcher returns an enabled Dispatcher firing through sink.
// now supplies the [TIMESTAMP] macro value; nil means time.Now. log may be nil.
func NewDispatcher(sink TrackingSink, log *slog.Logger, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		sink:    sink,
		record:  NewTrackingRecord(),
		log:     log,
		now:     now,
		enabled: true,
	}
}

// SetSink replaces the tracking sink.
func (d *Dispatcher) SetSink(sink TrackingSink) { d.sink = sink }

// Enable turns dispatching on.
func (d *Dispatcher) Enable() { d.enabled = true }

// Disable turns dispatching off. Milestones seen while disabled are dropped
// and not recorded.
func (d *Dispatcher) Disable() { d.enabled = false }

// Enabled reports whether dispatching is on.
func (d *Dispatcher) Enabled() bool { return d.enabled }

// Record returns the session's tracking record.
func (d *Dispatcher) Record() *TrackingRecord { return d.record }

// Begin makes ad the current ad of breakID.
func (d *Dispatcher) Begin(breakID string, ad ResolvedAd) {
	d.breakID = breakID
	d.ad = &ad
}

// End clears the current ad.
func (d *Dispatcher) End() {
	d.breakID = ""
	d.ad = nil
}

// Current returns the id of the current ad, or "".
func (d *Dispatcher) Current() string {
	if d.ad == nil {
		return ""
	}
	return d.ad.ID
}

// OnMilestone fires the tracking URIs of m for the current ad. It reports
// whether the milestone was fired by this call.
func (d *Dispatcher) OnMilestone(adID string, m Milestone) bool {
	if !d.enabled || d.ad == nil || d.ad.ID != adID {
		return false
	}
	if !d.record.Mark(TrackedEvent{BreakID: d.breakID, AdID: adID, Milestone: m}) {
		return false
	}

	uris := d.ad.Tracking[m]
	d.log.Debug("tracking milestone",
		slog.String("break_id", d.breakID),
		slog.String("ad_id", adID),
		slog.String("milestone", string(m)),
		slog.Int("uris", len(uris)))
	if d.sink == nil {
		return true
	}
	for _, uri := range uris {
		d.sink.Fire(d.expandMacros(uri))
	}
	return true
}

// OnAdProgress derives start, quartile and complete milestones from an ad
// clock sample and returns those fired by this call in order. Thresholds
// already fired are never fired again, even when the position rewinds.
func (d *Dispatcher) OnAdProgress(p Progress) []Milestone {
	if d.ad == nil {
		return nil
	}
	duration := p.Duration
	if duration <= 0 {
		duration = d.ad.Duration
	}
	if duration <= 0 || p.Position <= 0 {
		return nil
	}

	adID := d.ad.ID
	ratio := float64(p.Position) / float64(duration)

	var fired []Milestone
	try := func(m Milestone) {
		if d.OnMilestone(adID, m) {
			fired = append(fired, m)
		}
	}

	try(MilestoneStart)
	for _, q := range quartiles {
		if ratio >= q.ratio {
			try(q.milestone)
		}
	}
	if ratio >= 1 {
		try(MilestoneComplete)
	}
	return fired
}

func (d *Dispatcher) expandMacros(uri string) string {
	if !strings.Contains(uri, "[") {
		return uri
	}
	r := strings.NewReplacer(
		"[CACHEBUSTING]", fmt.Sprintf("%08d", rand.IntN(100000000)),
		"[TIMESTAMP]", d.now().UTC().Format(time.RFC3339),
	)
	return r.Replace(uri)
}
