package domain

// StreamChunkType tags one entry of the canonical stream union.
type StreamChunkType string

const (
	StreamChunkDelta      StreamChunkType = "delta"
	StreamChunkToolCall   StreamChunkType = "tool_call"
	StreamChunkMessageEnd StreamChunkType = "message_end"
	StreamChunkError      StreamChunkType = "error"
)

// ChunkError is the terminal error form carried inside a stream. It mirrors
// *Error but is safe to serialize to a client mid-stream.
type ChunkError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Provider  Provider  `json:"provider,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// StreamChunk is one increment of a normalized response stream.
//
// A well-formed stream is zero or more delta/tool_call chunks followed by
// exactly one message_end or error chunk, after which the stream ends.
// Delta text concatenated in emission order reconstructs the full text. For
// tool_call chunks, Delta carries the argument fragment added by this event
// while Call.ArgumentsJSON carries the cumulative snapshot so far; clients may
// concatenate Delta per call id or read the snapshot from the last chunk,
// never both.
type StreamChunk struct {
	Type         StreamChunkType `json:"type"`
	TextDelta    string          `json:"text_delta,omitempty"`
	Call         *ToolCall       `json:"call,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Cost         *CostBreakdown  `json:"cost,omitempty"`
	Error        *ChunkError     `json:"error,omitempty"`

	// KeyFingerprint is stamped on terminal chunks for request logging.
	KeyFingerprint string `json:"-"`
}

// Terminal reports whether the chunk ends its stream.
func (c StreamChunk) Terminal() bool {
	return c.Type == StreamChunkMessageEnd || c.Type == StreamChunkError
}
