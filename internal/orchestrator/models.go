package orchestrator

import (
	"fmt"
	"sort"
	"time"
)

// OffsetKind identifies where an ad break sits relative to content.
type OffsetKind int

const (
	// OffsetPreRoll breaks play before any content.
	OffsetPreRoll OffsetKind = iota
	// OffsetTimed breaks play once content reaches TimeOffset.At.
	OffsetTimed
	// OffsetPostRoll breaks play after content has ended.
	OffsetPostRoll
)

// TimeOffset is the schedule position of an ad break.
type TimeOffset struct {
	Kind OffsetKind
	At   time.Duration // only meaningful for OffsetTimed
}

// PreRoll returns the pre-roll offset.
func PreRoll() TimeOffset { return TimeOffset{Kind: OffsetPreRoll} }

// PostRoll returns the post-roll offset.
func PostRoll() TimeOffset { return TimeOffset{Kind: OffsetPostRoll} }

// At returns a mid-roll offset at content position d.
func At(d time.Duration) TimeOffset { return TimeOffset{Kind: OffsetTimed, At: d} }

func (o TimeOffset) String() string {
	switch o.Kind {
	case OffsetPreRoll:
		return "pre-roll"
	case OffsetPostRoll:
		return "post-roll"
	default:
		return o.At.String()
	}
}

// AdReference points at one creative of a break. Exactly one of Inline or
// Locator is set.
type AdReference struct {
	ID      string `json:"id"`
	Inline  string `json:"inline,omitempty"`  // string-encoded creative document
	Locator string `json:"locator,omitempty"` // remote creative location
}

// AdBreak is one entry of the ad schedule.
type AdBreak struct {
	ID     string
	Offset TimeOffset
	Ads    []AdReference
}

// Milestone is a tracked playback event. Values match VAST tracking event names.
type Milestone string

const (
	MilestoneStart         Milestone = "start"
	MilestoneFirstQuartile Milestone = "firstQuartile"
	MilestoneMidpoint      Milestone = "midpoint"
	MilestoneThirdQuartile Milestone = "thirdQuartile"
	MilestoneComplete      Milestone = "complete"
	MilestonePause         Milestone = "pause"
	MilestoneResume        Milestone = "resume"
	MilestoneSkip          Milestone = "skip"
	MilestoneError         Milestone = "error"
)

// ResolvedAd holds what the ad player needs to play one creative. ID is the
// schedule's reference id and keys tracking; CreativeID is the id the creative
// document carries, which several slots of a pod may share.
type ResolvedAd struct {
	ID         string                 `json:"id"`
	CreativeID string                 `json:"creative_id,omitempty"`
	Duration   time.Duration          `json:"duration"`
	MediaURI   string                 `json:"media_uri,omitempty"`
	Markup     string                 `json:"markup,omitempty"`
	Tracking   map[Milestone][]string `json:"tracking,omitempty"`
}

// ResolvedBreak is the playable form of an AdBreak: its ads in pod order.
type ResolvedBreak struct {
	BreakID string
	Ads     []ResolvedAd
}

// Progress is a sample of a playback clock.
type Progress struct {
	Position time.Duration
	Duration time.Duration
}

// PlaybackMode governs which clock the poller samples.
type PlaybackMode int

const (
	ModeIdle PlaybackMode = iota
	ModeContent
	ModeAdLoading
	ModeAdPlaying
)

func (m PlaybackMode) String() string {
	switch m {
	case ModeContent:
		return "content"
	case ModeAdLoading:
		return "ad_loading"
	case ModeAdPlaying:
		return "ad_playing"
	default:
		return "idle"
	}
}

// Schedule is the ordered, immutable set of ad breaks for one session.
type Schedule struct {
	breaks []AdBreak
}

// NewSchedule validates breaks and orders them pre-roll first, then mid-rolls
// by offset, then post-roll. Breaks with equal positions keep their input order.
func NewSchedule(breaks ...AdBreak) (Schedule, error) {
	seen := make(map[string]struct{}, len(breaks))
	out := make([]AdBreak, 0, len(breaks))
	for _, b := range breaks {
		if b.ID == "" {
			return Schedule{}, fmt.Errorf("%w: empty break id", ErrInvalidBreak)
		}
		if _, dup := seen[b.ID]; dup {
			return Schedule{}, fmt.Errorf("%w: %s", ErrDuplicateBreak, b.ID)
		}
		if b.Offset.Kind == OffsetTimed && b.Offset.At < 0 {
			return Schedule{}, fmt.Errorf("%w: break %s has negative offset", ErrInvalidBreak, b.ID)
		}
		ads := make(map[string]struct{}, len(b.Ads))
		for _, ref := range b.Ads {
			if _, dup := ads[ref.ID]; dup {
				return Schedule{}, fmt.Errorf("%w: break %s repeats ad id %q", ErrInvalidBreak, b.ID, ref.ID)
			}
			ads[ref.ID] = struct{}{}
		}
		seen[b.ID] = struct{}{}
		b.Ads = append([]AdReference(nil), b.Ads...)
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Offset, out[j].Offset
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Kind == OffsetTimed && a.At < b.At
	})
	return Schedule{breaks: out}, nil
}

// Len returns the number of breaks.
func (s Schedule) Len() int { return len(s.breaks) }

// Breaks returns a copy of the breaks in schedule order.
func (s Schedule) Breaks() []AdBreak {
	return append([]AdBreak(nil), s.breaks...)
}
