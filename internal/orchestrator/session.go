package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"ad-orchestrator/internal/platform/eventloop"
	"ad-orchestrator/internal/platform/metrics"

	"github.com/samber/lo"
)

// State is the orchestrator's position in the playback state machine.
type State int

const (
	StateIdle State = iota
	StateContentPlaying
	StateAdLoading
	StateAdPlaying
	StateError
)

func (s State) String() string {
	switch s {
	case StateContentPlaying:
		return "content_playing"
	case StateAdLoading:
		return "ad_loading"
	case StateAdPlaying:
		return "ad_playing"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Skip reasons reported to metrics and logs.
const (
	skipReasonSeek         = "seek"
	skipReasonContentEnded = "content_ended"
	skipReasonResolution   = "resolution"
	skipReasonPlayer       = "player"
)

// Config tunes a Session.
type Config struct {
	ID            string
	PollInterval  time.Duration
	SeekTolerance time.Duration
	SeekPolicy    SeekPolicy
}

// Deps are the collaborators of a Session. Scheduler and Player are required.
type Deps struct {
	Scheduler eventloop.Scheduler
	Player    AdPlayer
	Resolver  BreakResolver // nil means inline-only resolution
	Tracking  TrackingSink
	Listener  EventListener
	Logger    *slog.Logger
	Metrics   *metrics.Metrics // may be nil
}

// Session orchestrates ad breaks for one content playback. Every method must
// be called on the session's scheduler, except that player callbacks may
// arrive from any goroutine.
type Session struct {
	id       string
	sched    eventloop.Scheduler
	player   AdPlayer
	resolver BreakResolver
	listener EventListener
	log      *slog.Logger
	metrics  *metrics.Metrics

	state      *PlaybackState
	finder     *Finder
	poller     *Poller
	dispatcher *Dispatcher
	callbacks  *playerEvents
	content    ContentProgressProvider

	ctx    context.Context
	cancel context.CancelFunc

	phase      State
	started    bool
	finished   bool
	destroyed  bool
	registered bool

	loadToken   uint64
	current     *AdBreak
	adIndex     int
	resolved    map[string]ResolvedBreak
	lastContent Progress
}

// NewSession builds a Session for schedule. A missing required collaborator
// is reported as a *FatalSessionError.
func NewSession(schedule Schedule, cfg Config, deps Deps) (*Session, error) {
	if deps.Scheduler == nil {
		return nil, &FatalSessionError{Op: "new session", Err: errors.New("no scheduler")}
	}
	if deps.Player == nil {
		return nil, &FatalSessionError{Op: "new session", Err: errors.New("no ad player")}
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With(slog.String("session_id", cfg.ID))

	resolver := deps.Resolver
	if resolver == nil {
		resolver = NewChainResolver(deps.Scheduler, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         cfg.ID,
		sched:      deps.Scheduler,
		player:     deps.Player,
		resolver:   resolver,
		listener:   deps.Listener,
		log:        log,
		metrics:    deps.Metrics,
		state:      NewPlaybackState(schedule),
		finder:     NewFinder(cfg.SeekTolerance, cfg.SeekPolicy),
		poller:     NewPoller(deps.Scheduler, cfg.PollInterval),
		dispatcher: NewDispatcher(deps.Tracking, log, deps.Scheduler.Now),
		ctx:        ctx,
		cancel:     cancel,
		resolved:   make(map[string]ResolvedBreak),
	}
	s.callbacks = &playerEvents{s: s}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.phase }

// Mode returns the poller's active mode.
func (s *Session) Mode() PlaybackMode { return s.poller.Mode() }

// Finished reports whether content ended and every break was consumed.
func (s *Session) Finished() bool { return s.finished }

// PlaybackState exposes the session's break consumption state.
func (s *Session) PlaybackState() *PlaybackState { return s.state }

// TrackingRecord exposes the milestones fired so far.
func (s *Session) TrackingRecord() *TrackingRecord { return s.dispatcher.Record() }

// SetTrackingSink replaces the sink tracking calls are fired through.
func (s *Session) SetTrackingSink(sink TrackingSink) { s.dispatcher.SetSink(sink) }

// SetPollInterval changes the progress sampling period.
func (s *Session) SetPollInterval(d time.Duration) { s.poller.SetInterval(d) }

// Start registers the content clock and the player callback, enters
// StateContentPlaying and plays the pre-roll, if any, before any content tick.
// A player registration failure moves the session to StateError.
func (s *Session) Start(content ContentProgressProvider) error {
	if s.destroyed {
		return ErrSessionDestroyed
	}
	if s.started {
		return ErrSessionStarted
	}
	s.started = true

	if content == nil {
		return s.fail("register content provider", errors.New("nil content provider"))
	}
	if err := s.player.RegisterCallback(s.callbacks); err != nil {
		return s.fail("register ad player callback", err)
	}
	s.registered = true
	s.content = content
	s.poller.SetContentProvider(content)
	s.poller.SetAdProvider(s.player)

	s.log.Info("session started", slog.Int("breaks", len(s.state.Breaks())))
	s.transition(StateContentPlaying)
	s.checkBreaks(0)
	return nil
}

// ContentComplete signals that content reached its end. The post-roll, if
// any, becomes due; once every break is consumed the session finishes.
func (s *Session) ContentComplete() {
	if s.destroyed || s.finished || !s.started || s.phase == StateError {
		return
	}
	if s.state.ContentEnded() {
		return
	}
	s.state.SetContentEnded(true)
	s.lastContent = s.content.ContentProgress()
	s.log.Info("content complete", slog.Duration("position", s.lastContent.Position))

	if s.phase == StateContentPlaying {
		s.stopContentPolling()
		s.checkBreaks(s.lastContent.Position)
	}
}

// Destroy tears the session down: the timer is cancelled, listeners and the
// player callback are unregistered and any in-flight resolution is ignored.
// A session that has not finished ends in StateError. Destroy is idempotent.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.cancel()
	s.loadToken++

	s.poller.Destroy()
	if s.phase == StateAdPlaying {
		s.stopPlayer()
	}
	if s.registered {
		s.player.UnregisterCallback(s.callbacks)
		s.registered = false
	}
	s.dispatcher.Disable()
	s.dispatcher.End()
	s.current = nil
	clear(s.resolved)

	if !s.finished && s.phase != StateError {
		s.transition(StateError)
	}
	s.log.Info("session destroyed")
	s.emit(Event{Type: EventSessionDestroyed})
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID              string         `json:"id"`
	State           string         `json:"state"`
	Mode            string         `json:"mode"`
	Finished        bool           `json:"finished"`
	Destroyed       bool           `json:"destroyed"`
	ContentEnded    bool           `json:"content_ended"`
	ContentPosition float64        `json:"content_position"` // seconds
	CurrentBreak    string         `json:"current_break,omitempty"`
	CurrentAd       string         `json:"current_ad,omitempty"`
	Consumed        []string       `json:"consumed"`
	Pending         []string       `json:"pending"`
	Tracking        []TrackedEvent `json:"tracking"`
}

// Snapshot returns the session's current view.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		State:           s.phase.String(),
		Mode:            s.poller.Mode().String(),
		Finished:        s.finished,
		Destroyed:       s.destroyed,
		ContentEnded:    s.state.ContentEnded(),
		ContentPosition: s.lastContent.Position.Seconds(),
		CurrentAd:       s.dispatcher.Current(),
		Consumed:        s.state.ConsumedIDs(),
		Pending:         lo.Map(s.state.Pending(), func(b AdBreak, _ int) string { return b.ID }),
		Tracking:        s.dispatcher.Record().Events(),
	}
	if s.current != nil {
		snap.CurrentBreak = s.current.ID
	}
	return snap
}

func (s *Session) onContentProgress(p Progress) {
	if s.phase != StateContentPlaying {
		return
	}
	s.lastContent = p
	s.checkBreaks(p.Position)
}

func (s *Session) checkBreaks(position time.Duration) {
	res := s.finder.Find(s.state, position)
	for _, b := range res.Skipped {
		reason := skipReasonSeek
		if b.Offset.Kind != OffsetTimed || b.Offset.At > position {
			reason = skipReasonContentEnded
		}
		s.log.Info("ad break skipped",
			slog.String("break_id", b.ID),
			slog.String("offset", b.Offset.String()),
			slog.String("reason", reason))
		if s.metrics != nil {
			s.metrics.IncBreaksSkipped(reason)
		}
		s.emit(Event{Type: EventBreakSkipped, BreakID: b.ID})
	}

	if b, ok := res.Due.Get(); ok {
		s.loadBreak(b)
		return
	}
	if s.state.ContentEnded() {
		if s.state.AllConsumed() {
			s.finish()
		}
		return
	}
	if s.poller.Mode() != ModeContent {
		s.startContentPolling()
	}
}

func (s *Session) loadBreak(b AdBreak) {
	s.stopContentPolling()
	s.poller.Start(ModeAdLoading)
	s.transition(StateAdLoading)

	s.current = &b
	s.adIndex = 0
	s.loadToken++
	token := s.loadToken

	s.log.Info("ad break due", slog.String("break_id", b.ID), slog.String("offset", b.Offset.String()))
	if s.metrics != nil {
		s.metrics.IncBreaksStarted()
	}
	s.emit(Event{Type: EventContentPauseRequested, BreakID: b.ID})
	s.emit(Event{Type: EventBreakStarted, BreakID: b.ID})

	if rb, ok := s.resolved[b.ID]; ok {
		s.onBreakResolved(token, b.ID, rb, nil)
		return
	}
	s.resolver.ResolveBreak(s.ctx, b, func(rb ResolvedBreak, err error) {
		s.onBreakResolved(token, b.ID, rb, err)
	})
}

func (s *Session) onBreakResolved(token uint64, breakID string, rb ResolvedBreak, err error) {
	if s.destroyed || s.phase != StateAdLoading || token != s.loadToken || s.current == nil || s.current.ID != breakID {
		s.log.Debug("discarding stale resolution", slog.String("break_id", breakID))
		return
	}
	if err == nil && len(rb.Ads) == 0 {
		err = ErrEmptyBreak
	}
	if err != nil {
		var rerr *ResolutionError
		if !errors.As(err, &rerr) {
			err = &ResolutionError{BreakID: breakID, Err: err}
		}
		if s.metrics != nil {
			s.metrics.IncResolutionFailures()
		}
		s.closeBreak(EventBreakSkipped, err, skipReasonResolution)
		return
	}

	s.resolved[breakID] = rb
	s.playAd(0)
}

func (s *Session) playAd(i int) {
	ad := s.resolved[s.current.ID].Ads[i]
	s.adIndex = i
	s.callbacks.seq.Add(1)
	s.dispatcher.Begin(s.current.ID, ad)

	if err := s.player.Load(ad); err != nil {
		s.adFailed(err)
		return
	}
	s.transition(StateAdPlaying)
	s.startAdPolling()
	if err := s.player.Play(); err != nil {
		s.adFailed(err)
		return
	}
	s.log.Debug("ad playing", slog.String("break_id", s.current.ID), slog.String("ad_id", ad.ID), slog.Int("index", i))
}

func (s *Session) onAdProgress(p Progress) {
	if s.phase != StateAdPlaying {
		return
	}
	for _, m := range s.dispatcher.OnAdProgress(p) {
		s.afterMilestone(m)
	}

	duration := p.Duration
	if duration <= 0 {
		duration = s.currentAd().Duration
	}
	if duration > 0 && p.Position >= duration {
		s.adFinished(true)
	}
}

// milestone fires m for the current ad.
func (s *Session) milestone(m Milestone) {
	if s.phase != StateAdPlaying {
		return
	}
	if s.dispatcher.OnMilestone(s.dispatcher.Current(), m) {
		s.afterMilestone(m)
	}
}

func (s *Session) afterMilestone(m Milestone) {
	if m == MilestoneStart {
		s.emit(Event{Type: EventAdStarted, BreakID: s.current.ID, AdID: s.dispatcher.Current()})
	}
}

func (s *Session) currentAd() ResolvedAd {
	return s.resolved[s.current.ID].Ads[s.adIndex]
}

// adFinished moves to the next ad of the pod or closes the break. A skipped
// ad does not fire the complete milestone.
func (s *Session) adFinished(completed bool) {
	if completed {
		s.milestone(MilestoneComplete)
	}
	adID := s.dispatcher.Current()
	s.emit(Event{Type: EventAdCompleted, BreakID: s.current.ID, AdID: adID})

	next := s.adIndex + 1
	if next < len(s.resolved[s.current.ID].Ads) {
		s.stopAdPolling()
		s.stopPlayer()
		s.dispatcher.End()
		s.playAd(next)
		return
	}
	if s.metrics != nil {
		s.metrics.IncBreaksCompleted()
	}
	s.closeBreak(EventBreakEnded, nil, "")
}

// adFailed fires the error milestone whatever the phase, since Load and Play
// failures happen before the session reaches StateAdPlaying.
func (s *Session) adFailed(cause error) {
	adID := s.dispatcher.Current()
	s.dispatcher.OnMilestone(adID, MilestoneError)
	err := &PlayerError{BreakID: s.current.ID, AdID: adID, Err: cause}
	s.emit(Event{Type: EventAdError, BreakID: err.BreakID, AdID: err.AdID, Err: err})
	s.closeBreak(EventBreakSkipped, err, skipReasonPlayer)
}

// closeBreak consumes the current break and hands control back to content.
func (s *Session) closeBreak(evt EventType, err error, reason string) {
	b := s.current
	s.stopAdPolling()
	if s.phase == StateAdPlaying {
		s.stopPlayer()
	}
	s.dispatcher.End()
	s.callbacks.seq.Add(1)
	s.state.MarkConsumed(b.ID)
	delete(s.resolved, b.ID)
	s.current = nil
	s.loadToken++

	if err != nil {
		s.log.Warn("ad break skipped",
			slog.String("break_id", b.ID),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.IncBreaksSkipped(reason)
		}
	} else {
		s.log.Info("ad break ended", slog.String("break_id", b.ID))
	}
	s.emit(Event{Type: evt, BreakID: b.ID, Err: err})

	s.transition(StateContentPlaying)
	s.emit(Event{Type: EventContentResumeRequested, BreakID: b.ID})
	if s.state.ContentEnded() {
		s.checkBreaks(s.lastContent.Position)
		return
	}
	s.startContentPolling()
}

func (s *Session) finish() {
	s.stopContentPolling()
	s.poller.Stop(s.poller.Mode())
	s.finished = true
	s.transition(StateIdle)
	s.log.Info("all ad breaks completed")
	s.emit(Event{Type: EventAllBreaksCompleted})
}

func (s *Session) fail(op string, err error) error {
	ferr := &FatalSessionError{Op: op, Err: err}
	s.poller.Destroy()
	s.transition(StateError)
	s.log.Error("session failed", slog.String("op", op), slog.String("error", err.Error()))
	s.emit(Event{Type: EventSessionError, Err: ferr})
	return ferr
}

func (s *Session) startContentPolling() {
	s.poller.RemoveContentListeners()
	s.poller.AddContentListener(contentProgressFunc(s.onContentProgress))
	s.poller.Start(ModeContent)
}

func (s *Session) stopContentPolling() {
	s.poller.Stop(ModeContent)
	s.poller.RemoveContentListeners()
}

func (s *Session) startAdPolling() {
	s.poller.RemoveAdListeners()
	s.poller.AddAdListener(adProgressFunc(s.onAdProgress))
	s.poller.Start(ModeAdPlaying)
}

func (s *Session) stopAdPolling() {
	s.poller.Stop(ModeAdPlaying)
	s.poller.Stop(ModeAdLoading)
	s.poller.RemoveAdListeners()
}

func (s *Session) stopPlayer() {
	if err := s.player.Stop(); err != nil {
		s.log.Warn("ad player stop failed", slog.String("error", err.Error()))
	}
}

func (s *Session) transition(to State) {
	if s.phase == to {
		return
	}
	s.log.Debug("session state changed", slog.String("from", s.phase.String()), slog.String("to", to.String()))
	s.phase = to
}

func (s *Session) emit(e Event) {
	if s.listener != nil {
		s.listener.OnAdEvent(e)
	}
}

type contentProgressFunc func(Progress)

func (f contentProgressFunc) OnContentProgress(p Progress) { f(p) }

type adProgressFunc func(Progress)

func (f adProgressFunc) OnAdProgress(p Progress) { f(p) }

// playerEvents receives ad player callbacks for a session and re-posts them
// onto the session's scheduler. Each callback is stamped with the ad it was
// received for so a late signal from a previous ad is dropped.
type playerEvents struct {
	s   *Session
	seq atomic.Uint64
}

func (pe *playerEvents) post(fn func()) {
	seq := pe.seq.Load()
	pe.s.sched.Post(func() {
		if pe.s.destroyed || seq != pe.seq.Load() {
			return
		}
		fn()
	})
}

func (pe *playerEvents) OnAdStarted() {
	pe.post(func() { pe.s.milestone(MilestoneStart) })
}

func (pe *playerEvents) OnAdPaused() {
	pe.post(func() { pe.s.milestone(MilestonePause) })
}

func (pe *playerEvents) OnAdResumed() {
	pe.post(func() { pe.s.milestone(MilestoneResume) })
}

func (pe *playerEvents) OnAdCompleted() {
	pe.post(func() {
		s := pe.s
		if s.phase != StateAdPlaying {
			return
		}
		s.adFinished(true)
	})
}

func (pe *playerEvents) OnAdSkipped() {
	pe.post(func() {
		s := pe.s
		if s.phase != StateAdPlaying {
			return
		}
		s.milestone(MilestoneSkip)
		s.adFinished(false)
	})
}

func (pe *playerEvents) OnAdError(err error) {
	pe.post(func() {
		s := pe.s
		if s.phase != StateAdPlaying {
			return
		}
		s.adFailed(err)
	})
}
