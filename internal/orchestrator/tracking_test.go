package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAd(t *testing.T, id string, seconds float64) ResolvedAd {
	t.Helper()
	ad, err := InlineProvider{}.Resolve(t.Context(), inlineRef(id, seconds))
	require.NoError(t, err)
	return ad
}

func TestDispatcher_quartiles_fire_in_order_once(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, nil)
	d.Begin("brk", testAd(t, "ad", 100))

	progress := func(sec int) []Milestone {
		return d.OnAdProgress(Progress{Position: time.Duration(sec) * time.Second, Duration: 100 * time.Second})
	}

	assert.Equal(t, []Milestone{MilestoneStart}, progress(10))
	assert.Equal(t, []Milestone{MilestoneFirstQuartile}, progress(26))
	assert.Equal(t, []Milestone{MilestoneMidpoint}, progress(51))
	assert.Equal(t, []Milestone{MilestoneThirdQuartile}, progress(76))
	assert.Equal(t, []Milestone{MilestoneComplete}, progress(100))
	assert.Empty(t, progress(100))

	assert.Equal(t, []string{
		"https://t.example/ad/start",
		"https://t.example/ad/firstQuartile",
		"https://t.example/ad/midpoint",
		"https://t.example/ad/thirdQuartile",
		"https://t.example/ad/complete",
	}, sink.fired())
	assert.Equal(t, 5, d.Record().Len())
}

func TestDispatcher_jump_fires_every_crossed_threshold(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, nil, nil)
	d.Begin("brk", testAd(t, "ad", 100))

	got := d.OnAdProgress(Progress{Position: 60 * time.Second, Duration: 100 * time.Second})
	assert.Equal(t, []Milestone{MilestoneStart, MilestoneFirstQuartile, MilestoneMidpoint}, got)
}

func TestDispatcher_rewind_does_not_refire(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, nil)
	d.Begin("brk", testAd(t, "ad", 100))

	d.OnAdProgress(Progress{Position: 30 * time.Second, Duration: 100 * time.Second})
	d.OnAdProgress(Progress{Position: 5 * time.Second, Duration: 100 * time.Second})
	got := d.OnAdProgress(Progress{Position: 30 * time.Second, Duration: 100 * time.Second})

	assert.Empty(t, got)
	assert.Len(t, sink.fired(), 2)
}

func TestDispatcher_zero_position_fires_nothing(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, nil, nil)
	d.Begin("brk", testAd(t, "ad", 10))

	assert.Empty(t, d.OnAdProgress(Progress{Duration: 10 * time.Second}))
}

func TestDispatcher_OnMilestone_only_for_current_ad(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, nil)

	assert.False(t, d.OnMilestone("ad", MilestoneStart), "no current ad")

	d.Begin("brk", testAd(t, "ad", 10))
	assert.False(t, d.OnMilestone("other", MilestoneStart))
	assert.True(t, d.OnMilestone("ad", MilestoneStart))
	assert.False(t, d.OnMilestone("ad", MilestoneStart))

	d.End()
	assert.Equal(t, "", d.Current())
	assert.False(t, d.OnMilestone("ad", MilestoneMidpoint))
	assert.Len(t, sink.fired(), 1)
}

func TestDispatcher_same_ad_in_another_break_is_tracked_again(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, nil, nil)
	ad := testAd(t, "ad", 10)

	d.Begin("b1", ad)
	assert.True(t, d.OnMilestone("ad", MilestoneStart))
	d.Begin("b2", ad)
	assert.True(t, d.OnMilestone("ad", MilestoneStart))
}

func TestDispatcher_disabled_drops_without_recording(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, nil)
	d.Begin("brk", testAd(t, "ad", 10))

	d.Disable()
	assert.False(t, d.Enabled())
	assert.False(t, d.OnMilestone("ad", MilestoneStart))
	assert.Equal(t, 0, d.Record().Len())

	d.Enable()
	assert.True(t, d.OnMilestone("ad", MilestoneStart))
	assert.Len(t, sink.fired(), 1)
}

func TestDispatcher_expands_macros(t *testing.T) {
	sink := &recordingSink{}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(sink, nil, func() time.Time { return at })

	ad := ResolvedAd{
		ID:       "ad",
		Duration: 10 * time.Second,
		Tracking: map[Milestone][]string{
			MilestoneStart: {"https://t.example/s?cb=[CACHEBUSTING]&ts=[TIMESTAMP]"},
		},
	}
	d.Begin("brk", ad)
	require.True(t, d.OnMilestone("ad", MilestoneStart))

	fired := sink.fired()
	require.Len(t, fired, 1)
	assert.NotContains(t, fired[0], "[CACHEBUSTING]")
	assert.True(t, strings.HasSuffix(fired[0], "&ts=2024-03-01T12:00:00Z"), fired[0])
}

func TestTrackingRecord(t *testing.T) {
	r := NewTrackingRecord()
	e := TrackedEvent{BreakID: "b", AdID: "a", Milestone: MilestoneStart}

	assert.True(t, r.Mark(e))
	assert.False(t, r.Mark(e))
	assert.True(t, r.Has(e))
	assert.Equal(t, []TrackedEvent{e}, r.Events())
}
