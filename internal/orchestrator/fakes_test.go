package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

type fakeContent struct {
	progress Progress
	samples  int
}

func (c *fakeContent) ContentProgress() Progress {
	c.samples++
	return c.progress
}

func (c *fakeContent) at(pos time.Duration) {
	c.progress = Progress{Position: pos, Duration: 10 * time.Minute}
}

type fakePlayer struct {
	progress Progress
	loaded   []ResolvedAd

	loadErr     error
	playErr     error
	registerErr error

	plays      int
	stops      int
	registers  int
	unregister int
	cb         PlayerCallback
}

func (p *fakePlayer) AdProgress() Progress { return p.progress }

func (p *fakePlayer) Load(ad ResolvedAd) error {
	if p.loadErr != nil {
		return p.loadErr
	}
	p.loaded = append(p.loaded, ad)
	p.progress = Progress{Duration: ad.Duration}
	return nil
}

func (p *fakePlayer) Play() error {
	p.plays++
	return p.playErr
}

func (p *fakePlayer) Pause() error { return nil }

func (p *fakePlayer) Stop() error {
	p.stops++
	return nil
}

func (p *fakePlayer) RegisterCallback(cb PlayerCallback) error {
	if p.registerErr != nil {
		return p.registerErr
	}
	p.registers++
	p.cb = cb
	return nil
}

func (p *fakePlayer) UnregisterCallback(PlayerCallback) {
	p.unregister++
	p.cb = nil
}

func (p *fakePlayer) finishCurrent() {
	p.progress.Position = p.progress.Duration
}

func (p *fakePlayer) loadedIDs() []string {
	ids := make([]string, 0, len(p.loaded))
	for _, ad := range p.loaded {
		ids = append(ids, ad.ID)
	}
	return ids
}

type recordingSink struct {
	mu   sync.Mutex
	uris []string
}

func (s *recordingSink) Fire(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris = append(s.uris, uri)
}

func (s *recordingSink) fired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uris...)
}

type eventLog struct {
	events []Event
}

func (l *eventLog) OnAdEvent(e Event) { l.events = append(l.events, e) }

func (l *eventLog) types() []EventType {
	out := make([]EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) count(t EventType) int {
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) last(t EventType) (Event, bool) {
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == t {
			return l.events[i], true
		}
	}
	return Event{}, false
}

// funcLoader is a Loader backed by a function.
type funcLoader func(ctx context.Context, locator string) (ResolvedAd, error)

func (f funcLoader) Fetch(ctx context.Context, locator string) (ResolvedAd, error) {
	return f(ctx, locator)
}

// inlineRef builds an inline reference whose creative tracks every playback
// milestone at https://t.example/<id>/<milestone>.
func inlineRef(id string, seconds float64) AdReference {
	tracking := map[string][]string{}
	for _, m := range []Milestone{
		MilestoneStart, MilestoneFirstQuartile, MilestoneMidpoint,
		MilestoneThirdQuartile, MilestoneComplete, MilestoneSkip, MilestoneError,
	} {
		tracking[string(m)] = []string{fmt.Sprintf("https://t.example/%s/%s", id, m)}
	}
	doc, err := json.Marshal(map[string]any{
		"id":        id,
		"duration":  seconds,
		"media_uri": "https://cdn.example/" + id + ".mp4",
		"tracking":  tracking,
	})
	if err != nil {
		panic(err)
	}
	return AdReference{ID: id, Inline: string(doc)}
}

func inlineBreak(id string, offset TimeOffset, ads ...string) AdBreak {
	b := AdBreak{ID: id, Offset: offset}
	for _, ad := range ads {
		b.Ads = append(b.Ads, inlineRef(ad, 10))
	}
	return b
}

var errBoom = errors.New("boom")
