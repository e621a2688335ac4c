// Package preload warms the frame cache for an entire sequence.
package preload

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/framescrub/internal/frameurl"
	"github.com/ivlev/framescrub/internal/source"
)

// DefaultWorkers bounds concurrent fetches when no budget is given.
const DefaultWorkers = 8

// Preloader issues best-effort fetches of every frame. Results are discarded; the point is
// the side effect on the loader's cache.
type Preloader struct {
	loader  source.Loader
	workers int
	logger  *slog.Logger

	wg      sync.WaitGroup
	fetched atomic.Int64
	failed  atomic.Int64
}

type Option func(*Preloader)

func WithWorkers(n int) Option {
	return func(p *Preloader) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Preloader) { p.logger = l }
}

func New(loader source.Loader, opts ...Option) *Preloader {
	p := &Preloader{
		loader:  loader,
		workers: DefaultWorkers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Warm starts fetching frames 0..totalFrames and returns immediately.
// Fetching stops early when ctx is cancelled.
func (p *Preloader) Warm(ctx context.Context, template string, totalFrames int) {
	urls := frameurl.All(template, totalFrames)
	if len(urls) == 0 {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for _, u := range urls {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := p.fetch(gctx, u); err != nil {
					p.failed.Add(1)
					p.logger.Debug("preload failed", "url", u, "err", err)
					return nil
				}
				p.fetched.Add(1)
				return nil
			})
		}
		g.Wait()
		p.logger.Debug("preload finished", "fetched", p.fetched.Load(), "failed", p.failed.Load())
	}()
}

// fetch skips decoding when the loader is a cache that can store frames directly.
func (p *Preloader) fetch(ctx context.Context, u string) error {
	if pf, ok := p.loader.(source.Prefetcher); ok {
		return pf.Prefetch(ctx, u)
	}
	_, err := p.loader.Load(ctx, u)
	return err
}

// Wait blocks until every Warm call has finished.
func (p *Preloader) Wait() {
	p.wg.Wait()
}

// Stats returns the number of frames fetched and failed so far.
func (p *Preloader) Stats() (fetched, failed int64) {
	return p.fetched.Load(), p.failed.Load()
}
