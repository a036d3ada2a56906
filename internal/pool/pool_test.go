package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain checks that every goroutine checkBrowserRelease spawns for a
// saturated browser's deferred release check has exited once the
// package's tests finish.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResource struct {
	id      string
	machine *Machine
	closed  atomic.Bool
}

func (f *fakeResource) ID() string            { return f.id }
func (f *fakeResource) Machine() *Machine     { return f.machine }
func (f *fakeResource) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

func newFakeFactories() (func(context.Context) (*fakeResource, error), func(context.Context, *fakeResource) (*fakeResource, error)) {
	var browserID, pageID int64
	newBrowser := func(context.Context) (*fakeResource, error) {
		id := atomic.AddInt64(&browserID, 1)
		return &fakeResource{id: fmt.Sprintf("browser-%d", id), machine: NewMachine()}, nil
	}
	newPage := func(ctx context.Context, b *fakeResource) (*fakeResource, error) {
		id := atomic.AddInt64(&pageID, 1)
		return &fakeResource{id: fmt.Sprintf("page-%d", id), machine: NewMachine()}, nil
	}
	return newBrowser, newPage
}

func TestAcquirePageLaunchesOneBrowserForFirstPage(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMax: 2, NumPageMax: 2}, newBrowser, newPage)

	page, err := p.AcquirePage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, page.Machine().State())
	assert.Equal(t, 1, p.BrowserCount())
}

func TestAcquirePageReusesBrowserWithSpareCapacity(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMax: 2, NumPageMax: 2}, newBrowser, newPage)

	_, err := p.AcquirePage(context.Background())
	require.NoError(t, err)
	_, err = p.AcquirePage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, p.BrowserCount(), "second page should reuse the first browser's spare capacity")
}

func TestAcquirePageLaunchesSecondBrowserWhenFirstIsSaturated(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMax: 2, NumPageMax: 1}, newBrowser, newPage)

	_, err := p.AcquirePage(context.Background())
	require.NoError(t, err)
	_, err = p.AcquirePage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, p.BrowserCount())
}

func TestReleasePageClosesAndTransitionsToClosed(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMax: 1, NumPageMax: 1}, newBrowser, newPage)

	page, err := p.AcquirePage(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.ReleasePage(context.Background(), page))
	assert.Equal(t, StateClosed, page.Machine().State())
	assert.True(t, page.closed.Load())
}

func TestReleasePageBelowMinBrowserCountNeverClosesBrowser(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMin: 1, NumBrowserMax: 1, NumPageMax: 1}, newBrowser, newPage)

	page, err := p.AcquirePage(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.ReleasePage(context.Background(), page))

	assert.Equal(t, 1, p.BrowserCount(), "browser count must not drop below NumBrowserMin")
}

func TestCloseTearsDownEveryBrowserAndPage(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMax: 2, NumPageMax: 1}, newBrowser, newPage)

	p1, err := p.AcquirePage(context.Background())
	require.NoError(t, err)
	p2, err := p.AcquirePage(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, StateClosed, p1.Machine().State())
	assert.Equal(t, StateClosed, p2.Machine().State())
	assert.Equal(t, 0, p.BrowserCount())
}

func TestConcurrentAcquireNeverExceedsBrowserMax(t *testing.T) {
	newBrowser, newPage := newFakeFactories()
	p := New(Config{NumBrowserMax: 3, NumPageMax: 1}, newBrowser, newPage)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.AcquirePage(context.Background())
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.BrowserCount(), 3)
}
