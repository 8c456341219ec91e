package providers

import "context"

// Provider is the interface implemented by upstream LLM adapters.
//
// All methods accept a context.Context for cancellation control.
// Implementations must respect context cancellation and return
// immediately when the context is cancelled; a cancelled call surfaces
// ctx.Err(), never a classified provider error.
type Provider interface {
	// SendCompletion sends a non-streaming completion request and returns
	// the full response once the upstream has finished generating.
	SendCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion opens a streaming completion request and returns a
	// channel of incremental chunks. The channel is closed when the
	// upstream stream ends, errors, or the context is cancelled.
	//
	// Errors that occur before any chunk is produced are returned
	// directly. Errors that occur mid-stream are delivered as the Error
	// field of the final chunk.
	//
	//	chunks, err := provider.StreamCompletion(ctx, req)
	//	if err != nil {
	//	    return err
	//	}
	//	for chunk := range chunks {
	//	    if chunk.Error != nil {
	//	        return chunk.Error
	//	    }
	//	    fmt.Print(chunk.Delta)
	//	}
	StreamCompletion(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// Name returns the provider's configured name (e.g. "openai").
	Name() string

	// Close releases the provider's resources (idle HTTP connections).
	Close() error
}

// StreamReader abstracts the underlying wire protocol of a streaming
// provider response (SSE for OpenAI-compatible upstreams).
type StreamReader interface {
	// Read returns the next chunk. It returns nil, io.EOF when the
	// stream ends normally.
	Read(ctx context.Context) (*StreamChunk, error)

	// Close closes the stream and releases the response body.
	Close() error
}
