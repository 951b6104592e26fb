package unifiedllm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// LangchainAdapter wraps a langchaingo llms.Model and implements
// ProviderAdapter with native tool calling: tool definitions, tool call
// requests and tool results travel as structured parts, not prompt text.
type LangchainAdapter struct {
	provider string
	llm      llms.Model
	model    string
}

// NewLangchainAdapter wraps llm under the given provider name. model is the
// default model name reported when a request leaves Model empty.
func NewLangchainAdapter(provider string, llm llms.Model, model string) *LangchainAdapter {
	return &LangchainAdapter{provider: provider, llm: llm, model: model}
}

// Name returns the provider identifier.
func (a *LangchainAdapter) Name() string {
	return a.provider
}

// SupportsToolChoice reports whether the adapter supports a tool choice mode.
func (a *LangchainAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case "auto", "none", "required":
		return true
	default:
		return false
	}
}

// Complete sends a blocking request and returns the full response.
func (a *LangchainAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := toLangchainMessages(req.Messages)

	resp, err := a.llm.GenerateContent(ctx, messages, a.callOptions(req)...)
	if err != nil {
		return nil, classifyError(a.provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &InvalidResponseError{SDKError: SDKError{
			Message: "provider " + a.provider + " returned no choices",
		}}
	}
	return a.buildResponse(req, resp), nil
}

func (a *LangchainAdapter) callOptions(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.MaxTokens))
	}
	if len(req.ToolDefs) > 0 {
		tools := make([]llms.Tool, 0, len(req.ToolDefs))
		for _, def := range req.ToolDefs {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
		if req.ToolChoice != nil && req.ToolChoice.Mode != "" {
			opts = append(opts, llms.WithToolChoice(req.ToolChoice.Mode))
		}
	}
	return opts
}

// toLangchainMessages converts the unified transcript into langchaingo
// message contents, one per unified message.
func toLangchainMessages(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, msg.TextContent()))
		case RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, msg.TextContent()))
		case RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if text := msg.TextContent(); text != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: text})
			}
			for _, tc := range msg.ToolCalls() {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, mc)
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind != ContentToolResult || part.ToolResult == nil {
					continue
				}
				out = append(out, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: part.ToolResult.ToolCallID,
						Name:       msg.Name,
						Content:    part.ToolResult.Text(),
					}},
				})
			}
		}
	}
	return out
}

// buildResponse merges all choices into one assistant message. Some backends
// return one choice per content block.
func (a *LangchainAdapter) buildResponse(req Request, resp *llms.ContentResponse) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	var texts []string
	var calls []ContentPart
	var stopReason string
	var usage Usage
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		if choice.Content != "" {
			texts = append(texts, choice.Content)
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil || tc.FunctionCall.Name == "" {
				continue
			}
			calls = append(calls, ToolCallPart(
				normalizeCallID(tc.ID),
				tc.FunctionCall.Name,
				normalizeArguments(json.RawMessage(tc.FunctionCall.Arguments)),
			))
		}
		if stopReason == "" {
			stopReason = choice.StopReason
		}
		usage = usage.Add(usageFromGenerationInfo(choice.GenerationInfo))
	}

	var parts []ContentPart
	if text := strings.Join(texts, "\n"); text != "" {
		parts = append(parts, TextPart(text))
	}
	parts = append(parts, calls...)

	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      Message{Role: RoleAssistant, Content: parts},
		FinishReason: mapStopReason(stopReason, len(calls) > 0),
		Usage:        usage,
	}
}

func mapStopReason(raw string, hasToolCalls bool) FinishReason {
	if hasToolCalls {
		return FinishReason{Reason: "tool_calls", Raw: raw}
	}
	switch strings.ToLower(raw) {
	case "length", "max_tokens":
		return FinishReason{Reason: "length", Raw: raw}
	case "content_filter", "safety":
		return FinishReason{Reason: "content_filter", Raw: raw}
	case "tool_calls", "tool_use":
		return FinishReason{Reason: "tool_calls", Raw: raw}
	default:
		return FinishReason{Reason: "stop", Raw: raw}
	}
}

// usageFromGenerationInfo reads token counts from the provider-specific
// generation info map. Unknown shapes yield zero usage.
func usageFromGenerationInfo(info map[string]any) Usage {
	u := Usage{
		InputTokens:  intFromAny(info["PromptTokens"]) + intFromAny(info["InputTokens"]),
		OutputTokens: intFromAny(info["CompletionTokens"]) + intFromAny(info["OutputTokens"]),
	}
	u.TotalTokens = intFromAny(info["TotalTokens"])
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
