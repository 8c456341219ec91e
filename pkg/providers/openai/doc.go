// Package openai implements the OpenAI-compatible provider adapter.
//
// It speaks the chat completions API shared by OpenAI and the many
// gateways that mirror it, and supports:
//
//   - Chat completions
//   - Streaming responses (Server-Sent Events)
//   - Token usage reporting on the final stream chunk
//
// # Basic Usage
//
//	provider := openai.NewProvider(providers.Config{
//	    Name:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	})
//	defer provider.Close()
//
//	req := &providers.CompletionRequest{
//	    Model: "gpt-4",
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: "Hello!"},
//	    },
//	}
//
//	resp, err := provider.SendCompletion(context.Background(), req)
//
// # Streaming
//
// Streaming requests always enable usage reporting
// (stream_options.include_usage), so the upstream delivers one final
// chunk carrying the token accounting record after all content:
//
//	chunks, err := provider.StreamCompletion(context.Background(), req)
//	if err != nil {
//	    return err
//	}
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        return chunk.Error
//	    }
//	    fmt.Print(chunk.Delta)
//	}
//
// # Error Handling
//
// Failures are mapped to the tagged error set in package providers:
//
//   - 401/403 -> AuthError
//   - 429 -> RateLimitError (includes retry-after)
//   - other statuses -> ProviderError (carries status/type/code)
//   - transport failures -> NetworkError
//   - caller cancellation -> ctx.Err(), unwrapped
package openai
