package wlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithPageID(ctx, "page-2")
	ctx = WithChunkID(ctx, "chunk-3")

	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Equal(t, "page-2", PageIDFromContext(ctx))
	assert.Equal(t, "chunk-3", ChunkIDFromContext(ctx))
}

func TestContextFromContextMissing(t *testing.T) {
	assert.Empty(t, RunIDFromContext(context.Background()))
	assert.Empty(t, PageIDFromContext(nil))
}
