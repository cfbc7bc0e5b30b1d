package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan domain.StreamChunk) []domain.StreamChunk {
	t.Helper()
	var out []domain.StreamChunk
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, chunk)
		case <-timeout:
			t.Fatal("stream did not finish in time")
		}
	}
}

func TestUnifyStreamDeltaAndCost(t *testing.T) {
	in := make(chan domain.StreamChunk, 4)
	in <- domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: "Hel"}
	in <- domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: "lo"}
	in <- domain.StreamChunk{
		Type:  domain.StreamChunkMessageEnd,
		Usage: &domain.Usage{InputTokens: 5, OutputTokens: 2},
	}
	close(in)

	prices := &domain.TokenPrices{Input: 1, Output: 2}
	chunks := collect(t, UnifyStream(context.Background(), prices, in))

	require.Len(t, chunks, 3)
	assert.Equal(t, domain.StreamChunkDelta, chunks[0].Type)
	assert.Equal(t, domain.StreamChunkDelta, chunks[1].Type)
	assert.Equal(t, domain.StreamChunkMessageEnd, chunks[2].Type)

	var text strings.Builder
	for _, c := range chunks[:2] {
		text.WriteString(c.TextDelta)
	}
	assert.Equal(t, "Hello", text.String())

	require.NotNil(t, chunks[2].Usage)
	require.NotNil(t, chunks[2].Cost)
	assert.InDelta(t, 9.0/1_000_000, chunks[2].Cost.TotalCostUSD, 1e-12)
}

func TestUnifyStreamNoPricingNoCost(t *testing.T) {
	in := make(chan domain.StreamChunk, 1)
	in <- domain.StreamChunk{
		Type:  domain.StreamChunkMessageEnd,
		Usage: &domain.Usage{InputTokens: 5, OutputTokens: 2},
	}
	close(in)

	chunks := collect(t, UnifyStream(context.Background(), nil, in))
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].Cost)
}

func TestUnifyStreamDropsChunksAfterTerminal(t *testing.T) {
	in := make(chan domain.StreamChunk, 3)
	in <- domain.StreamChunk{Type: domain.StreamChunkMessageEnd}
	in <- domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: "late"}
	in <- domain.StreamChunk{Type: domain.StreamChunkMessageEnd}
	close(in)

	chunks := collect(t, UnifyStream(context.Background(), nil, in))
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.StreamChunkMessageEnd, chunks[0].Type)
}

func TestUnifyStreamSynthesizesTerminal(t *testing.T) {
	in := make(chan domain.StreamChunk, 1)
	in <- domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: "partial"}
	close(in)

	chunks := collect(t, UnifyStream(context.Background(), nil, in))
	require.Len(t, chunks, 2)
	assert.Equal(t, domain.StreamChunkMessageEnd, chunks[1].Type)
	assert.Nil(t, chunks[1].Usage)
}

func TestUnifyStreamErrorIsTerminal(t *testing.T) {
	in := make(chan domain.StreamChunk, 2)
	in <- domain.StreamChunk{
		Type: domain.StreamChunkError,
		Error: &domain.ChunkError{
			Kind:    domain.ErrProviderUnavailable,
			Message: "upstream closed",
		},
	}
	in <- domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: "late"}
	close(in)

	chunks := collect(t, UnifyStream(context.Background(), nil, in))
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.StreamChunkError, chunks[0].Type)
}

func TestUnifyStreamToolCallArguments(t *testing.T) {
	in := make(chan domain.StreamChunk, 4)
	in <- domain.StreamChunk{
		Type:  domain.StreamChunkToolCall,
		Delta: `{"city":`,
		Call:  &domain.ToolCall{ID: "call_1", Name: "get_weather", ArgumentsJSON: `{"city":`},
	}
	in <- domain.StreamChunk{
		Type:  domain.StreamChunkToolCall,
		Delta: `"Oslo"}`,
		Call:  &domain.ToolCall{ID: "call_1", Name: "get_weather", ArgumentsJSON: `{"city":"Oslo"}`},
	}
	in <- domain.StreamChunk{Type: domain.StreamChunkMessageEnd}
	close(in)

	chunks := collect(t, UnifyStream(context.Background(), nil, in))
	require.Len(t, chunks, 3)

	// Delta fragments concatenate to the full arguments; the final chunk's
	// snapshot carries the same value. Concatenating snapshots would nest
	// the object, so only Delta is additive.
	var args strings.Builder
	var last *domain.ToolCall
	for _, c := range chunks {
		if c.Type == domain.StreamChunkToolCall && c.Call.ID == "call_1" {
			args.WriteString(c.Delta)
			last = c.Call
		}
	}
	assert.Equal(t, `{"city":"Oslo"}`, args.String())
	require.NotNil(t, last)
	assert.Equal(t, `{"city":"Oslo"}`, last.ArgumentsJSON)
}

func TestUnifyStreamCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan domain.StreamChunk)

	out := UnifyStream(ctx, nil, in)
	cancel()

	chunks := collect(t, out)
	require.LessOrEqual(t, len(chunks), 1)
	if len(chunks) == 1 {
		assert.Equal(t, domain.StreamChunkError, chunks[0].Type)
		assert.Equal(t, domain.ErrTimeout, chunks[0].Error.Kind)
	}
}
