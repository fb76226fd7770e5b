package harness

import (
	"log/slog"
	"time"

	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/eventloop"
	"ad-orchestrator/internal/simulator"

	"github.com/samber/lo"
)

// maxEvents bounds the event history kept per playback.
const maxEvents = 100

// Playback is one running session with its simulated content and ad player.
// Everything except ID, CreatedAt and Manifest belongs to the playback's
// event loop.
type Playback struct {
	ID        string
	CreatedAt time.Time
	Manifest  Manifest

	loop    *eventloop.Loop
	log     *slog.Logger
	session *orchestrator.Session
	content *simulator.Content
	player  *simulator.Player
	events  []EventRecord
}

// Closed reports whether the playback's event loop has stopped.
func (p *Playback) Closed() bool {
	if p.loop == nil {
		return true
	}
	select {
	case <-p.loop.Done():
		return true
	default:
		return false
	}
}

// EventRecord is one ad event as reported over HTTP.
type EventRecord struct {
	Type    orchestrator.EventType `json:"type"`
	BreakID string                 `json:"break_id,omitempty"`
	AdID    string                 `json:"ad_id,omitempty"`
	Error   string                 `json:"error,omitempty"`
	At      time.Time              `json:"at"`
}

// BreakView describes one scheduled break.
type BreakView struct {
	ID       string `json:"id"`
	Offset   string `json:"offset"`
	Ads      int    `json:"ads"`
	Consumed bool   `json:"consumed"`
}

// View is the HTTP representation of a playback.
type View struct {
	orchestrator.Snapshot
	CreatedAt       time.Time     `json:"created_at"`
	ContentDuration float64       `json:"content_duration"` // seconds
	ContentPlaying  bool          `json:"content_playing"`
	Breaks          []BreakView   `json:"breaks"`
	Events          []EventRecord `json:"events"`
}

// onEvent drives the simulated content from session events and keeps a
// bounded history.
func (p *Playback) onEvent(e orchestrator.Event) {
	p.content.OnAdEvent(e)

	rec := EventRecord{Type: e.Type, BreakID: e.BreakID, AdID: e.AdID, At: p.loop.Now().UTC()}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}
	p.events = append(p.events, rec)
	if len(p.events) > maxEvents {
		p.events = p.events[len(p.events)-maxEvents:]
	}
	p.log.Debug("ad event",
		slog.String("type", string(e.Type)),
		slog.String("break_id", e.BreakID),
		slog.String("ad_id", e.AdID))
}

func (p *Playback) view() View {
	state := p.session.PlaybackState()
	v := View{
		Snapshot:        p.session.Snapshot(),
		CreatedAt:       p.CreatedAt,
		ContentDuration: p.content.Duration().Seconds(),
		ContentPlaying:  p.content.Playing(),
		Breaks: lo.Map(state.Breaks(), func(b orchestrator.AdBreak, _ int) BreakView {
			return BreakView{
				ID:       b.ID,
				Offset:   FormatOffset(b.Offset),
				Ads:      len(b.Ads),
				Consumed: state.IsConsumed(b.ID),
			}
		}),
		Events: append([]EventRecord(nil), p.events...),
	}
	v.ContentPosition = p.content.Position().Seconds()
	return v
}
