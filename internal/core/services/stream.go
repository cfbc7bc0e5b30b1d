package services

import (
	"context"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// UnifyStream normalizes an adapter chunk channel into the canonical
// sequence: zero or more delta/tool_call chunks, then exactly one terminal
// chunk, then nothing. Cost is attached here, uniformly for every adapter,
// so pricing logic lives in one place.
//
// If the upstream channel closes without a terminal chunk, a bare
// message_end is synthesized. Chunks arriving after a terminal are dropped.
// Context cancellation closes the output promptly; the adapter observes the
// same context and tears down its upstream connection.
func UnifyStream(ctx context.Context, prices *domain.TokenPrices, in <-chan domain.StreamChunk) <-chan domain.StreamChunk {
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		terminated := false
		for {
			select {
			case <-ctx.Done():
				if !terminated {
					// Cancellation is the caller's doing, not a provider
					// failure. Best-effort terminal: a consumer that already
					// walked away is not owed one.
					select {
					case out <- domain.StreamChunk{
						Type: domain.StreamChunkError,
						Error: &domain.ChunkError{
							Kind:    domain.ErrTimeout,
							Message: ctx.Err().Error(),
						},
					}:
					default:
					}
				}
				return
			case chunk, ok := <-in:
				if !ok {
					if !terminated {
						emit(ctx, out, domain.StreamChunk{Type: domain.StreamChunkMessageEnd})
					}
					return
				}
				if terminated {
					// Nothing may follow the terminal chunk.
					continue
				}
				if chunk.Type == domain.StreamChunkMessageEnd {
					if cost := EstimateCost(prices, chunk.Usage); cost != nil {
						chunk.Cost = cost
					}
				}
				if !emit(ctx, out, chunk) {
					return
				}
				if chunk.Terminal() {
					terminated = true
					// Drain silently until the adapter closes so its
					// goroutine never blocks on a full channel.
				}
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- domain.StreamChunk, chunk domain.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
