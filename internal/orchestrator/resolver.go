package orchestrator

import (
	"context"
	"time"

	"ad-orchestrator/internal/platform/eventloop"
)

// DefaultResolveTimeout bounds one network fetch of a creative.
const DefaultResolveTimeout = 5 * time.Second

// BreakResolver turns a schedule entry into playable ad data. done is always
// invoked exactly once, on the scheduler the resolver was built with.
type BreakResolver interface {
	ResolveBreak(ctx context.Context, brk AdBreak, done func(ResolvedBreak, error))
}

// CreativeProvider resolves a single ad reference.
type CreativeProvider interface {
	Resolve(ctx context.Context, ref AdReference) (ResolvedAd, error)
}

// InlineProvider decodes the creative document carried in the reference
// itself. It performs no I/O.
type InlineProvider struct{}

// Resolve implements CreativeProvider.Resolve.
func (InlineProvider) Resolve(_ context.Context, ref AdReference) (ResolvedAd, error) {
	if ref.Inline == "" {
		return ResolvedAd{}, ErrNotInline
	}
	ad, err := DecodeCreative([]byte(ref.Inline))
	if err != nil {
		return ResolvedAd{}, err
	}
	ad.ID = ref.ID
	return ad, nil
}

// NetworkProvider fetches creatives through a Loader.
type NetworkProvider struct {
	loader  Loader
	timeout time.Duration
}

// NewNetworkProvider returns a NetworkProvider. If timeout <= 0,
// DefaultResolveTimeout is used.
func NewNetworkProvider(loader Loader, timeout time.Duration) *NetworkProvider {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &NetworkProvider{loader: loader, timeout: timeout}
}

// Resolve implements CreativeProvider.Resolve.
func (p *NetworkProvider) Resolve(ctx context.Context, ref AdReference) (ResolvedAd, error) {
	if ref.Locator == "" {
		return ResolvedAd{}, ErrNoLocator
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ad, err := p.loader.Fetch(ctx, ref.Locator)
	if err != nil {
		return ResolvedAd{}, err
	}
	ad.ID = ref.ID
	return ad, nil
}

// ChainResolver tries the inline provider first and falls back to the network
// provider for references that carry only a locator. Breaks made entirely of
// inline references resolve synchronously; anything else resolves on its own
// goroutine and completes through the scheduler.
type ChainResolver struct {
	sched   eventloop.Scheduler
	inline  CreativeProvider
	network CreativeProvider
}

// NewChainResolver returns a ChainResolver. network may be nil, in which case
// references without an inline payload fail to resolve.
func NewChainResolver(sched eventloop.Scheduler, network CreativeProvider) *ChainResolver {
	return &ChainResolver{sched: sched, inline: InlineProvider{}, network: network}
}

// ResolveBreak implements BreakResolver.ResolveBreak.
func (r *ChainResolver) ResolveBreak(ctx context.Context, brk AdBreak, done func(ResolvedBreak, error)) {
	if len(brk.Ads) == 0 {
		done(ResolvedBreak{}, &ResolutionError{BreakID: brk.ID, Err: ErrEmptyBreak})
		return
	}
	if r.inlineOnly(brk) {
		done(r.resolveAll(ctx, brk))
		return
	}
	go func() {
		rb, err := r.resolveAll(ctx, brk)
		r.sched.Post(func() { done(rb, err) })
	}()
}

func (r *ChainResolver) inlineOnly(brk AdBreak) bool {
	for _, ref := range brk.Ads {
		if ref.Inline == "" {
			return false
		}
	}
	return true
}

func (r *ChainResolver) resolveAll(ctx context.Context, brk AdBreak) (ResolvedBreak, error) {
	rb := ResolvedBreak{BreakID: brk.ID, Ads: make([]ResolvedAd, 0, len(brk.Ads))}
	for _, ref := range brk.Ads {
		ad, err := r.resolveOne(ctx, ref)
		if err != nil {
			return ResolvedBreak{}, &ResolutionError{BreakID: brk.ID, AdID: ref.ID, Err: err}
		}
		rb.Ads = append(rb.Ads, ad)
	}
	return rb, nil
}

func (r *ChainResolver) resolveOne(ctx context.Context, ref AdReference) (ResolvedAd, error) {
	if ref.Inline != "" {
		return r.inline.Resolve(ctx, ref)
	}
	if r.network == nil {
		return ResolvedAd{}, ErrNoLocator
	}
	if err := ctx.Err(); err != nil {
		return ResolvedAd{}, err
	}
	return r.network.Resolve(ctx, ref)
}
