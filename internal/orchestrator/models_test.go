package orchestrator

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedule_orders_pre_mid_post(t *testing.T) {
	s, err := NewSchedule(
		AdBreak{ID: "post", Offset: PostRoll()},
		AdBreak{ID: "mid-60", Offset: At(60 * time.Second)},
		AdBreak{ID: "pre", Offset: PreRoll()},
		AdBreak{ID: "mid-30", Offset: At(30 * time.Second)},
		AdBreak{ID: "mid-30b", Offset: At(30 * time.Second)},
	)
	require.NoError(t, err)

	ids := lo.Map(s.Breaks(), func(b AdBreak, _ int) string { return b.ID })
	assert.Equal(t, []string{"pre", "mid-30", "mid-30b", "mid-60", "post"}, ids)
	assert.Equal(t, 5, s.Len())
}

func TestNewSchedule_rejects_invalid_breaks(t *testing.T) {
	_, err := NewSchedule(AdBreak{ID: "a", Offset: PreRoll()}, AdBreak{ID: "a", Offset: PostRoll()})
	assert.ErrorIs(t, err, ErrDuplicateBreak)

	_, err = NewSchedule(AdBreak{Offset: PreRoll()})
	assert.ErrorIs(t, err, ErrInvalidBreak)

	_, err = NewSchedule(AdBreak{ID: "neg", Offset: At(-time.Second)})
	assert.ErrorIs(t, err, ErrInvalidBreak)
}

func TestSchedule_Breaks_returns_copy(t *testing.T) {
	s, err := NewSchedule(AdBreak{ID: "pre", Offset: PreRoll()})
	require.NoError(t, err)

	breaks := s.Breaks()
	breaks[0].ID = "changed"
	assert.Equal(t, "pre", s.Breaks()[0].ID)
}

func TestTimeOffset_String(t *testing.T) {
	assert.Equal(t, "pre-roll", PreRoll().String())
	assert.Equal(t, "post-roll", PostRoll().String())
	assert.Equal(t, "1m30s", At(90*time.Second).String())
}

func TestDecodeCreative(t *testing.T) {
	ad, err := DecodeCreative([]byte(`{"id":"ad-1","duration":12.5,"media_uri":"https://cdn.example/a.mp4",
		"tracking":{"start":["https://t.example/s"],"creativeView":["https://t.example/cv"]}}`))
	require.NoError(t, err)
	assert.Equal(t, "ad-1", ad.ID)
	assert.Equal(t, 12500*time.Millisecond, ad.Duration)
	assert.Equal(t, []string{"https://t.example/s"}, ad.Tracking[MilestoneStart])
	assert.Len(t, ad.Tracking, 1, "unknown milestones are ignored")

	_, err = DecodeCreative([]byte(`{"id":"ad-2","duration":10}`))
	assert.Error(t, err, "neither media nor markup")

	_, err = DecodeCreative([]byte(`{"id":"ad-3","markup":"<div/>"}`))
	assert.Error(t, err, "missing duration")

	_, err = DecodeCreative([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewSchedule_rejects_repeated_ad_id_in_break(t *testing.T) {
	_, err := NewSchedule(AdBreak{ID: "pre", Offset: PreRoll(), Ads: []AdReference{
		inlineRef("ad-1", 5),
		inlineRef("ad-1", 5),
	}})
	assert.ErrorIs(t, err, ErrInvalidBreak)

	_, err = NewSchedule(
		inlineBreak("pre", PreRoll(), "ad-1"),
		inlineBreak("post", PostRoll(), "ad-1"),
	)
	assert.NoError(t, err, "the same ad id may appear in different breaks")
}
