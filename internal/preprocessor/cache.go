package preprocessor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// downloadDeduped fetches rawURL to destPath, deduplicating concurrent
// requests for the same destPath the way picon_pool.go's inflight map
// dedupes concurrent picon fetches: a second caller for a key already in
// flight waits on the first caller's WaitGroup instead of issuing its
// own request.
func (p *Preprocessor) downloadDeduped(ctx context.Context, rawURL, destPath string, retryFetchs int) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("preprocessor: empty source url")
	}

	if _, err := os.Stat(destPath); err == nil {
		return destPath, nil
	}

	p.inflightMu.Lock()
	if wg, ok := p.inflight[destPath]; ok {
		p.inflightMu.Unlock()
		wg.Wait()
		if _, err := os.Stat(destPath); err == nil {
			return destPath, nil
		}
		return "", fmt.Errorf("preprocessor: concurrent download of %q did not produce a cache file", rawURL)
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	p.inflight[destPath] = wg
	p.inflightMu.Unlock()

	defer func() {
		p.inflightMu.Lock()
		delete(p.inflight, destPath)
		p.inflightMu.Unlock()
		wg.Done()
	}()

	if err := p.downloadSem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("preprocessor: acquire download slot: %w", err)
	}
	defer p.downloadSem.Release(1)

	retries := retryFetchs
	if retries <= 0 {
		retries = p.cfg.DefaultRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(p.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
		body, err := p.fetchBreakered(ctx, rawURL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := renameio.WriteFile(destPath, body, 0o644); err != nil {
			lastErr = fmt.Errorf("preprocessor: atomic write %s: %w", destPath, err)
			continue
		}
		return destPath, nil
	}
	return "", fmt.Errorf("preprocessor: download %q failed after %d attempts: %w", rawURL, retries+1, lastErr)
}
