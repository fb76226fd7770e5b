package orchestrator

import (
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// PlaybackState tracks which breaks of a schedule have been consumed.
// It is owned by one session and only touched on that session's event loop.
type PlaybackState struct {
	breaks   []AdBreak
	index    map[string]int
	consumed []bool
	cursor   int // first unconsumed index; never decreases until Reset
	ended    bool
}

// NewPlaybackState returns a state with every break of s unconsumed.
func NewPlaybackState(s Schedule) *PlaybackState {
	breaks := s.Breaks()
	index := make(map[string]int, len(breaks))
	for i, b := range breaks {
		index[b.ID] = i
	}
	return &PlaybackState{
		breaks:   breaks,
		index:    index,
		consumed: make([]bool, len(breaks)),
	}
}

// NextUnconsumedBreak returns the first unconsumed break in schedule order
// that current makes eligible: pre-roll always, mid-roll once current reaches
// its offset, post-roll once content has ended. Consumed breaks are never
// returned, even if current moves backwards.
func (s *PlaybackState) NextUnconsumedBreak(current time.Duration) mo.Option[AdBreak] {
	for i := s.cursor; i < len(s.breaks); i++ {
		if s.consumed[i] {
			continue
		}
		b := s.breaks[i]
		switch b.Offset.Kind {
		case OffsetPreRoll:
			return mo.Some(b)
		case OffsetTimed:
			if current >= b.Offset.At {
				return mo.Some(b)
			}
		case OffsetPostRoll:
			if s.ended {
				return mo.Some(b)
			}
		}
	}
	return mo.None[AdBreak]()
}

// MarkConsumed marks the break consumed. It reports false if the id is
// unknown or was already consumed.
func (s *PlaybackState) MarkConsumed(id string) bool {
	i, ok := s.index[id]
	if !ok || s.consumed[i] {
		return false
	}
	s.consumed[i] = true
	for s.cursor < len(s.consumed) && s.consumed[s.cursor] {
		s.cursor++
	}
	return true
}

// IsConsumed reports whether the break has been consumed.
func (s *PlaybackState) IsConsumed(id string) bool {
	i, ok := s.index[id]
	return ok && s.consumed[i]
}

// Reset clears consumption, the cursor and the content-ended flag.
func (s *PlaybackState) Reset() {
	for i := range s.consumed {
		s.consumed[i] = false
	}
	s.cursor = 0
	s.ended = false
}

// SetContentEnded records whether content has signalled its end.
func (s *PlaybackState) SetContentEnded(ended bool) { s.ended = ended }

// ContentEnded reports whether content has signalled its end.
func (s *PlaybackState) ContentEnded() bool { return s.ended }

// Cursor returns the index of the first unconsumed break.
func (s *PlaybackState) Cursor() int { return s.cursor }

// AllConsumed reports whether no break is left to play.
func (s *PlaybackState) AllConsumed() bool { return s.cursor == len(s.breaks) }

// Pending returns the unconsumed breaks in schedule order.
func (s *PlaybackState) Pending() []AdBreak {
	return lo.Filter(s.breaks[s.cursor:], func(b AdBreak, i int) bool {
		return !s.consumed[s.cursor+i]
	})
}

// ConsumedIDs returns the ids of consumed breaks in schedule order.
func (s *PlaybackState) ConsumedIDs() []string {
	ids := make([]string, 0, len(s.breaks))
	for i, b := range s.breaks {
		if s.consumed[i] {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Breaks returns every break in schedule order.
func (s *PlaybackState) Breaks() []AdBreak {
	return append([]AdBreak(nil), s.breaks...)
}
