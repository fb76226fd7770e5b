package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
)

// DefaultSeekTolerance is how long after its offset a mid-roll stays due.
const DefaultSeekTolerance = 2 * time.Second

// SeekPolicy decides what happens to mid-rolls that content jumped past.
type SeekPolicy int

const (
	// SeekPolicySkip consumes passed breaks without playing them.
	SeekPolicySkip SeekPolicy = iota
	// SeekPolicyPlayLast plays the most recent passed break and consumes the
	// older ones.
	SeekPolicyPlayLast
)

func (p SeekPolicy) String() string {
	if p == SeekPolicyPlayLast {
		return "play-last"
	}
	return "skip"
}

// ParseSeekPolicy parses "skip" or "play-last".
func ParseSeekPolicy(s string) (SeekPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return SeekPolicySkip, nil
	case "play-last", "play_last":
		return SeekPolicyPlayLast, nil
	default:
		return SeekPolicySkip, fmt.Errorf("unknown seek policy %q", s)
	}
}

// FindResult is the outcome of one Finder scan.
type FindResult struct {
	// Due is the break to play now, if any.
	Due mo.Option[AdBreak]
	// Skipped lists breaks this scan consumed without playing.
	Skipped []AdBreak
}

// Finder selects the next due break for a content position.
type Finder struct {
	Tolerance time.Duration
	Policy    SeekPolicy
}

// NewFinder returns a Finder. If tolerance <= 0, DefaultSeekTolerance is used.
func NewFinder(tolerance time.Duration, policy SeekPolicy) *Finder {
	if tolerance <= 0 {
		tolerance = DefaultSeekTolerance
	}
	return &Finder{Tolerance: tolerance, Policy: policy}
}

// Find scans unconsumed breaks in schedule order and returns at most one due
// break. A mid-roll at t is due while t <= current < t+Tolerance. Mid-rolls
// at or beyond t+Tolerance were jumped over and are handled by Policy; they
// never stay pending. Mid-rolls not reached when content ends are consumed.
// Find marks every break it reports in Skipped as consumed on state.
func (f *Finder) Find(state *PlaybackState, current time.Duration) FindResult {
	var (
		res        FindResult
		lastPassed mo.Option[AdBreak]
	)

	skip := func(b AdBreak) {
		if state.MarkConsumed(b.ID) {
			res.Skipped = append(res.Skipped, b)
		}
	}

scan:
	for _, b := range state.Pending() {
		switch b.Offset.Kind {
		case OffsetPreRoll:
			res.Due = mo.Some(b)
			break scan
		case OffsetTimed:
			at := b.Offset.At
			switch {
			case current < at:
				if !state.ContentEnded() {
					break scan
				}
				skip(b)
			case current < at+f.Tolerance:
				res.Due = mo.Some(b)
				break scan
			case f.Policy == SeekPolicyPlayLast:
				if prev, ok := lastPassed.Get(); ok {
					skip(prev)
				}
				lastPassed = mo.Some(b)
			default:
				skip(b)
			}
		case OffsetPostRoll:
			if state.ContentEnded() {
				res.Due = mo.Some(b)
			}
			break scan
		}
	}

	// The forced break precedes anything else due in schedule order; the
	// other due break stays pending for the next scan.
	if b, ok := lastPassed.Get(); ok {
		res.Due = mo.Some(b)
	}
	return res
}
