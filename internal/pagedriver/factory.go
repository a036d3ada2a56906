package pagedriver

import (
	"context"

	"github.com/webvideocreator/wvc/internal/browserdriver"
	"github.com/webvideocreator/wvc/internal/mediashim"
)

// Factory returns a page-open function in the shape internal/pool.New
// expects for its page tier, closing over the preprocess/fontLookup
// callbacks every page on this pool shares.
func Factory(
	preprocess func(ctx context.Context, cfg mediashim.VideoConfig) (mediashim.PreprocessResult, []byte, error),
	fontLookup func(path string) ([]byte, bool),
) func(ctx context.Context, b *browserdriver.Browser) (*Page, error) {
	return func(ctx context.Context, b *browserdriver.Browser) (*Page, error) {
		return New(ctx, b, preprocess, fontLookup)
	}
}
