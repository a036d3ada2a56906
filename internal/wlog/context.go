// Package wlog provides structured logging utilities shared by every
// component of the render pipeline.
package wlog

import "context"

type ctxKey string

const (
	runIDKey  ctxKey = "run_id"
	pageIDKey ctxKey = "page_id"
	chunkKey  ctxKey = "chunk_id"
)

// WithRunID stores the render run ID in the context.
func WithRunID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey, id)
}

// WithPageID stores the page driver ID in the context.
func WithPageID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, pageIDKey, id)
}

// WithChunkID stores the chunk ID in the context.
func WithChunkID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, chunkKey, id)
}

// RunIDFromContext extracts the run ID, if present.
func RunIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, runIDKey)
}

// PageIDFromContext extracts the page ID, if present.
func PageIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, pageIDKey)
}

// ChunkIDFromContext extracts the chunk ID, if present.
func ChunkIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, chunkKey)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
