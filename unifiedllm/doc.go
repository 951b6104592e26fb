// Package unifiedllm provides a provider-agnostic language model client used
// by the agent loop.
//
// # Architecture
//
//   - ProviderAdapter: the interface each backend implements (Complete).
//   - Client: routes a Request to a registered adapter and applies middleware.
//   - GollmAdapter: wraps github.com/teilomillet/gollm.
//   - LangchainAdapter: wraps a langchaingo llms.Model and maps tool calls
//     natively in both directions.
//   - Errors: SDKError/ProviderError hierarchy with retryability classification.
//   - RetryMiddleware: optional exponential backoff for retryable errors.
//   - LoggingMiddleware: zerolog records of each completion.
//
// # Quick Start
//
//	adapter, err := unifiedllm.NewAdapter(unifiedllm.ProviderConfig{
//	    Backend:  "langchain",
//	    Provider: "openai",
//	    Model:    "gpt-4o-mini",
//	})
//	if err != nil {
//	    return err
//	}
//	client := unifiedllm.NewClient(unifiedllm.WithProvider(adapter.Name(), adapter))
//
//	resp, err := client.Complete(ctx, unifiedllm.Request{
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text())
//
// # Tool Calling
//
// Tools are offered through Request.ToolDefs. A response carrying tool calls
// exposes them through Response.ToolCallsFromResponse; results travel back to
// the model as ToolResultMessage values keyed by the originating call id.
package unifiedllm
