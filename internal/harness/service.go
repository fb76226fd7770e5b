package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/eventloop"
	"ad-orchestrator/internal/platform/metrics"
	"ad-orchestrator/internal/simulator"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNoAdPlaying is returned by Skip when no creative is loaded.
	ErrNoAdPlaying = errors.New("no ad playing")

	// ErrInvalidPosition is returned by Seek for negative positions.
	ErrInvalidPosition = errors.New("invalid seek position")
)

// Options configures the sessions a Service creates.
type Options struct {
	PollInterval   time.Duration
	SeekTolerance  time.Duration
	SeekPolicy     orchestrator.SeekPolicy
	ResolveTimeout time.Duration

	// Loader fetches creatives referenced by locator. Nil limits sessions to
	// inline creatives.
	Loader orchestrator.Loader
	// Tracking receives tracking URIs. Nil records milestones without firing.
	Tracking orchestrator.TrackingSink
	// Clock drives every session's event loop. Nil means the wall clock.
	Clock clockwork.Clock
}

// Service creates and drives playbacks. Each playback runs on its own event
// loop goroutine; Service methods hop onto that loop and wait.
type Service struct {
	repo    Repository
	opts    Options
	log     *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// NewService returns a Service that registers playbacks in repo.
// log and m may be nil.
func NewService(repo Repository, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, opts: opts, log: log, metrics: m, newID: uuid.NewString}
}

// Create starts a playback of m: content starts playing and the pre-roll, if
// any, is requested immediately.
func (s *Service) Create(ctx context.Context, m Manifest) (View, error) {
	if m.ContentDuration <= 0 {
		return View{}, fmt.Errorf("%w: content duration must be positive", ErrInvalidManifest)
	}
	schedule, err := m.Schedule()
	if err != nil {
		return View{}, err
	}

	id := s.newID()
	log := s.log.With(slog.String("session_id", id))
	loop := eventloop.NewLoop(s.opts.Clock, log)
	go func() {
		_ = loop.Run(context.Background())
	}()

	p := &Playback{ID: id, CreatedAt: time.Now().UTC(), Manifest: m, loop: loop, log: log}
	var startErr error
	if err := loop.Call(ctx, func() { startErr = s.start(p, schedule) }); err != nil {
		loop.Close()
		return View{}, err
	}
	if startErr != nil {
		loop.Close()
		return View{}, startErr
	}
	if err := s.repo.Add(p); err != nil {
		_ = loop.Call(ctx, p.session.Destroy)
		loop.Close()
		return View{}, err
	}
	s.updateActiveSessions()

	log.Info("session created",
		slog.Int("breaks", schedule.Len()),
		slog.Duration("content_duration", m.ContentDuration))
	return s.view(ctx, p)
}

// start wires the playback's collaborators. It runs on the playback's loop.
func (s *Service) start(p *Playback, schedule orchestrator.Schedule) error {
	p.content = simulator.NewContent(p.loop, p.Manifest.ContentDuration)
	p.player = simulator.NewPlayer(p.loop)

	var network orchestrator.CreativeProvider
	if s.opts.Loader != nil {
		network = orchestrator.NewNetworkProvider(s.opts.Loader, s.opts.ResolveTimeout)
	}
	deps := orchestrator.Deps{
		Scheduler: p.loop,
		Player:    p.player,
		Resolver:  orchestrator.NewChainResolver(p.loop, network),
		Tracking:  s.opts.Tracking,
		Listener:  orchestrator.EventListenerFunc(p.onEvent),
		Logger:    s.log,
		Metrics:   s.metrics,
	}
	session, err := orchestrator.NewSession(schedule, orchestrator.Config{
		ID:            p.ID,
		PollInterval:  s.opts.PollInterval,
		SeekTolerance: s.opts.SeekTolerance,
		SeekPolicy:    s.opts.SeekPolicy,
	}, deps)
	if err != nil {
		return err
	}
	p.session = session
	p.content.OnEnded(session.ContentComplete)

	p.content.Play()
	return session.Start(p.content)
}

// Get returns the current view of a playback.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	p, ok := s.repo.Get(id)
	if !ok {
		return View{}, ErrSessionNotFound
	}
	return s.view(ctx, p)
}

// List returns the ids of every registered playback.
func (s *Service) List() []string {
	return s.repo.IDs()
}

// Seek moves the content clock to pos. The session notices on its next
// content sample.
func (s *Service) Seek(ctx context.Context, id string, pos time.Duration) (View, error) {
	if pos < 0 {
		return View{}, ErrInvalidPosition
	}
	p, ok := s.repo.Get(id)
	if !ok {
		return View{}, ErrSessionNotFound
	}
	if err := s.call(ctx, p, func() { p.content.Seek(pos) }); err != nil {
		return View{}, err
	}
	p.log.Info("content seek", slog.Duration("position", pos))
	return s.view(ctx, p)
}

// Skip skips the ad that is currently playing.
func (s *Service) Skip(ctx context.Context, id string) (View, error) {
	p, ok := s.repo.Get(id)
	if !ok {
		return View{}, ErrSessionNotFound
	}
	var skipErr error
	if err := s.call(ctx, p, func() { skipErr = p.player.Skip() }); err != nil {
		return View{}, err
	}
	if errors.Is(skipErr, simulator.ErrNoCreative) {
		return View{}, ErrNoAdPlaying
	}
	if skipErr != nil {
		return View{}, skipErr
	}
	return s.view(ctx, p)
}

// Destroy tears a playback down and stops its loop.
func (s *Service) Destroy(ctx context.Context, id string) error {
	p, ok := s.repo.Remove(id)
	if !ok {
		return ErrSessionNotFound
	}
	err := p.loop.Call(ctx, p.session.Destroy)
	p.loop.Close()
	s.updateActiveSessions()
	if err != nil && !errors.Is(err, eventloop.ErrClosed) {
		return err
	}
	p.log.Info("session removed")
	return nil
}

// Close destroys every playback.
func (s *Service) Close(ctx context.Context) {
	for _, id := range s.repo.IDs() {
		if err := s.Destroy(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			s.log.Warn("destroy session failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
}

// ActiveSessionCount returns the number of running playbacks.
func (s *Service) ActiveSessionCount() int {
	return s.repo.ActiveSessionCount()
}

func (s *Service) view(ctx context.Context, p *Playback) (View, error) {
	var v View
	if err := s.call(ctx, p, func() { v = p.view() }); err != nil {
		return View{}, err
	}
	return v, nil
}

func (s *Service) call(ctx context.Context, p *Playback, fn func()) error {
	err := p.loop.Call(ctx, fn)
	if errors.Is(err, eventloop.ErrClosed) {
		return ErrSessionNotFound
	}
	return err
}

func (s *Service) updateActiveSessions() {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.repo.ActiveSessionCount())
	}
}
