package browserdriver

import "context"

// Factory returns a browser-launch function in the shape
// internal/pool.New expects, closing over a fixed Options so callers
// don't thread launch flags through the pool itself.
func Factory(opts Options) func(ctx context.Context) (*Browser, error) {
	return func(ctx context.Context) (*Browser, error) {
		return Launch(ctx, opts)
	}
}
