package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"ad-orchestrator/internal/platform/eventloop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolveResult struct {
	rb  ResolvedBreak
	err error
}

func TestChainResolver_inline_resolves_synchronously(t *testing.T) {
	sched := eventloop.NewManual()
	r := NewChainResolver(sched, nil)
	brk := inlineBreak("pre", PreRoll(), "ad-1", "ad-2")

	var got *resolveResult
	r.ResolveBreak(t.Context(), brk, func(rb ResolvedBreak, err error) {
		got = &resolveResult{rb, err}
	})

	require.NotNil(t, got, "done runs before ResolveBreak returns")
	require.NoError(t, got.err)
	assert.Equal(t, "pre", got.rb.BreakID)
	require.Len(t, got.rb.Ads, 2)
	assert.Equal(t, "ad-1", got.rb.Ads[0].ID)
	assert.Equal(t, 10*time.Second, got.rb.Ads[0].Duration)
}

func TestChainResolver_network_completes_on_scheduler(t *testing.T) {
	sched := eventloop.NewManual()
	loader := funcLoader(func(_ context.Context, locator string) (ResolvedAd, error) {
		assert.Equal(t, "https://ads.example/c1", locator)
		return ResolvedAd{Duration: 15 * time.Second, MediaURI: "https://cdn.example/c1.mp4"}, nil
	})
	r := NewChainResolver(sched, NewNetworkProvider(loader, time.Second))
	brk := AdBreak{ID: "mid", Offset: At(time.Minute), Ads: []AdReference{
		inlineRef("ad-1", 5),
		{ID: "ad-2", Locator: "https://ads.example/c1"},
	}}

	var got *resolveResult
	r.ResolveBreak(t.Context(), brk, func(rb ResolvedBreak, err error) {
		got = &resolveResult{rb, err}
	})
	assert.Nil(t, got, "network resolution completes later")

	require.Eventually(t, func() bool {
		sched.RunPending()
		return got != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, got.err)
	require.Len(t, got.rb.Ads, 2)
	assert.Equal(t, "ad-2", got.rb.Ads[1].ID, "the reference id names the ad")
	assert.Equal(t, 15*time.Second, got.rb.Ads[1].Duration)
}

func TestChainResolver_network_failure(t *testing.T) {
	sched := eventloop.NewManual()
	loader := funcLoader(func(context.Context, string) (ResolvedAd, error) {
		return ResolvedAd{}, errBoom
	})
	r := NewChainResolver(sched, NewNetworkProvider(loader, time.Second))
	brk := AdBreak{ID: "mid", Offset: At(time.Minute), Ads: []AdReference{{ID: "ad-1", Locator: "https://ads.example/x"}}}

	var got *resolveResult
	r.ResolveBreak(t.Context(), brk, func(rb ResolvedBreak, err error) {
		got = &resolveResult{rb, err}
	})
	require.Eventually(t, func() bool {
		sched.RunPending()
		return got != nil
	}, time.Second, 5*time.Millisecond)

	var rerr *ResolutionError
	require.ErrorAs(t, got.err, &rerr)
	assert.Equal(t, "mid", rerr.BreakID)
	assert.Equal(t, "ad-1", rerr.AdID)
	assert.ErrorIs(t, got.err, errBoom)
}

func TestChainResolver_errors(t *testing.T) {
	tests := []struct {
		name string
		brk  AdBreak
		want error
	}{
		{"empty break", AdBreak{ID: "b"}, ErrEmptyBreak},
		{"bad inline", AdBreak{ID: "b", Ads: []AdReference{{ID: "a", Inline: `{"id":"a"}`}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewChainResolver(eventloop.NewManual(), nil)
			var got error
			r.ResolveBreak(t.Context(), tt.brk, func(_ ResolvedBreak, err error) { got = err })

			var rerr *ResolutionError
			require.ErrorAs(t, got, &rerr)
			assert.Equal(t, "b", rerr.BreakID)
			if tt.want != nil {
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}
}

func TestChainResolver_locator_without_network(t *testing.T) {
	sched := eventloop.NewManual()
	r := NewChainResolver(sched, nil)

	var got error
	done := false
	r.ResolveBreak(t.Context(), AdBreak{ID: "b", Ads: []AdReference{{ID: "a", Locator: "https://ads.example/a"}}},
		func(_ ResolvedBreak, err error) { got, done = err, true })

	require.Eventually(t, func() bool {
		sched.RunPending()
		return done
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, got, ErrNoLocator)
}

func TestNetworkProvider_applies_timeout(t *testing.T) {
	loader := funcLoader(func(ctx context.Context, _ string) (ResolvedAd, error) {
		<-ctx.Done()
		return ResolvedAd{}, ctx.Err()
	})
	p := NewNetworkProvider(loader, 10*time.Millisecond)

	_, err := p.Resolve(t.Context(), AdReference{ID: "a", Locator: "https://ads.example/slow"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = p.Resolve(t.Context(), AdReference{ID: "a"})
	assert.ErrorIs(t, err, ErrNoLocator)
}

func TestInlineProvider_requires_payload(t *testing.T) {
	_, err := InlineProvider{}.Resolve(t.Context(), AdReference{ID: "a", Locator: "x"})
	assert.ErrorIs(t, err, ErrNotInline)
}

func TestInlineProvider_reference_id_names_the_ad(t *testing.T) {
	ref := inlineRef("creative-x", 5)
	ref.ID = "slot-2"

	ad, err := InlineProvider{}.Resolve(t.Context(), ref)
	require.NoError(t, err)
	assert.Equal(t, "slot-2", ad.ID)
	assert.Equal(t, "creative-x", ad.CreativeID)
}
