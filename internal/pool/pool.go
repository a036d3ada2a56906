package pool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/webvideocreator/wvc/internal/metrics"
)

// Resource is the minimal capability every pooled browser and page
// handle provides: a stable ID (so the pool can find and remove a
// handle without relying on interface-value comparability), an
// underlying Machine for state tracking, and a teardown. Browser and
// Page in internal/browserdriver / internal/pagedriver satisfy this.
type Resource interface {
	ID() string
	Machine() *Machine
	Close(ctx context.Context) error
}

// Config bounds the two-tier pool (spec.md §3 "Resource pool state").
type Config struct {
	NumBrowserMin int
	NumBrowserMax int
	NumPageMin    int
	NumPageMax    int
}

// entry pairs a browser with the pages it owns and a semaphore bounding
// NumPageMax concurrent pages on that browser.
type entry[B Resource, P Resource] struct {
	browser  B
	pageSem  *semaphore.Weighted
	pages    []P
	released bool
}

// Pool is a generic two-tier acquire/release resource pool: B is the
// browser-level handle type, P the page-level handle type. All mutation
// runs under mu, the single named async lock spec.md §5 requires
// ("The two-tier pool is the only shared mutable host structure; all
// mutation is under a named async lock").
type Pool[B Resource, P Resource] struct {
	cfg Config

	newBrowser func(ctx context.Context) (B, error)
	newPage    func(ctx context.Context, b B) (P, error)

	mu         sync.Mutex
	browserSem *semaphore.Weighted
	entries    []*entry[B, P]
}

// New constructs a Pool bounded by cfg. newBrowser/newPage are the
// factories that actually launch a browser / open a page; internal/pool
// only tracks state and enforces bounds, leaving CDP specifics to
// internal/browserdriver and internal/pagedriver.
func New[B Resource, P Resource](cfg Config, newBrowser func(ctx context.Context) (B, error), newPage func(ctx context.Context, b B) (P, error)) *Pool[B, P] {
	if cfg.NumBrowserMax <= 0 {
		cfg.NumBrowserMax = 1
	}
	if cfg.NumPageMax <= 0 {
		cfg.NumPageMax = 1
	}
	return &Pool[B, P]{
		cfg:        cfg,
		newBrowser: newBrowser,
		newPage:    newPage,
		browserSem: semaphore.NewWeighted(int64(cfg.NumBrowserMax)),
	}
}

// AcquirePage returns a page in StateReady, launching a new browser (if
// under NumBrowserMax and no existing browser has spare page capacity)
// or reusing one with room. It never returns a handle whose Machine
// state is not StateReady (spec.md §3 invariant).
func (p *Pool[B, P]) AcquirePage(ctx context.Context) (P, error) {
	var zero P

	p.mu.Lock()
	for _, e := range p.entries {
		if e.released {
			continue
		}
		if e.pageSem.TryAcquire(1) {
			page, err := p.newPage(ctx, e.browser)
			if err != nil {
				e.pageSem.Release(1)
				p.mu.Unlock()
				return zero, fmt.Errorf("pool: acquire page on existing browser: %w", err)
			}
			if err := page.Machine().Transition(StateReady); err != nil {
				p.mu.Unlock()
				return zero, err
			}
			e.pages = append(e.pages, page)
			p.mu.Unlock()
			metrics.SetPoolInUse("browser", len(p.entries))
			return page, nil
		}
	}
	p.mu.Unlock()

	if err := p.browserSem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("pool: acquire browser slot: %w", err)
	}

	browser, err := p.newBrowser(ctx)
	if err != nil {
		p.browserSem.Release(1)
		return zero, fmt.Errorf("pool: launch browser: %w", err)
	}
	if err := browser.Machine().Transition(StateReady); err != nil {
		p.browserSem.Release(1)
		return zero, err
	}

	e := &entry[B, P]{browser: browser, pageSem: semaphore.NewWeighted(int64(p.cfg.NumPageMax))}
	e.pageSem.TryAcquire(1)

	page, err := p.newPage(ctx, browser)
	if err != nil {
		p.browserSem.Release(1)
		return zero, fmt.Errorf("pool: open first page: %w", err)
	}
	if err := page.Machine().Transition(StateReady); err != nil {
		p.browserSem.Release(1)
		return zero, err
	}
	e.pages = append(e.pages, page)

	p.mu.Lock()
	p.entries = append(p.entries, e)
	n := len(p.entries)
	p.mu.Unlock()
	metrics.SetPoolInUse("browser", n)

	return page, nil
}

// ReleasePage returns a page to the pool and closes it. Per spec.md §3
// ("a page released while its owner pool is saturated triggers a
// deferred browser release check"), if the owning browser now holds no
// in-use pages and the pool has more browsers than NumBrowserMin, the
// browser is queued for release rather than closed synchronously here —
// checkBrowserRelease runs it on its own goroutine so a caller releasing
// a page is never blocked on a browser teardown.
func (p *Pool[B, P]) ReleasePage(ctx context.Context, page P) error {
	if s := page.Machine().State(); s == StateCapturing || s == StatePaused {
		if err := page.Machine().Transition(StateStopped); err != nil {
			return err
		}
	}
	if err := page.Machine().Transition(StateClosed); err != nil {
		return err
	}
	closeErr := page.Close(ctx)

	p.mu.Lock()
	var owner *entry[B, P]
	for _, e := range p.entries {
		for i, pg := range e.pages {
			if pg.ID() == page.ID() {
				e.pages = append(e.pages[:i], e.pages[i+1:]...)
				e.pageSem.Release(1)
				owner = e
				break
			}
		}
	}
	saturated := owner != nil && len(p.entries) > p.cfg.NumBrowserMin
	p.mu.Unlock()

	if owner != nil && len(owner.pages) == 0 && saturated {
		go p.checkBrowserRelease(context.Background(), owner)
	}
	return closeErr
}

// checkBrowserRelease closes a browser that has gone idle, deferred off
// the release path per spec.md §3.
func (p *Pool[B, P]) checkBrowserRelease(ctx context.Context, e *entry[B, P]) {
	p.mu.Lock()
	if e.released || len(e.pages) != 0 || len(p.entries) <= p.cfg.NumBrowserMin {
		p.mu.Unlock()
		return
	}
	e.released = true
	for i, other := range p.entries {
		if other == e {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	n := len(p.entries)
	p.mu.Unlock()

	_ = e.browser.Machine().Transition(StateClosed)
	_ = e.browser.Close(ctx)
	p.browserSem.Release(1)
	metrics.SetPoolInUse("browser", n)
}

// BrowserCount reports how many browsers are currently tracked, for
// tests and diagnostics.
func (p *Pool[B, P]) BrowserCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close tears down every browser the pool still owns. Per spec.md §3
// invariant, this leaves no browser with an open page.
func (p *Pool[B, P]) Close(ctx context.Context) error {
	p.mu.Lock()
	entries := p.entries
	p.entries = nil
	p.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		for _, page := range e.pages {
			_ = page.Machine().Transition(StateStopped)
			_ = page.Machine().Transition(StateClosed)
			if err := page.Close(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		_ = e.browser.Machine().Transition(StateClosed)
		if err := e.browser.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
