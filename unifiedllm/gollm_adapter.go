package unifiedllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter adapts a gollm.LLM to ProviderAdapter. gollm only offers a
// prompt-in, text-out surface, so the transcript is flattened into a single
// prompt and tool calls are recovered from JSON in the reply.
//
// Request-level model, temperature and max_tokens are set on the shared
// gollm.LLM before each call, so calls through one adapter are serialized and
// every call resets all three, falling back to the configured defaults.
type GollmAdapter struct {
	provider    string
	llm         gollm.LLM
	model       string
	temperature float64
	maxTokens   int

	mu sync.Mutex
}

const (
	gollmDefaultMaxTokens   = 4096
	gollmDefaultTemperature = 0.2
)

// NewGollmAdapter builds a gollm-backed adapter from cfg. An empty APIKey lets
// gollm fall back to its own environment lookup.
func NewGollmAdapter(cfg ProviderConfig) (*GollmAdapter, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = gollmDefaultMaxTokens
	}
	temperature := gollmDefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(maxTokens),
		gollm.SetTemperature(temperature),
		gollm.SetMaxRetries(0), // RetryMiddleware owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(cfg.APIKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, &ConfigurationError{SDKError{
			Message: fmt.Sprintf("create gollm %s model", cfg.Provider),
			Cause:   err,
		}}
	}
	return &GollmAdapter{
		provider:    cfg.Provider,
		llm:         llm,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)

	a.mu.Lock()
	for key, value := range a.requestOptions(req) {
		a.llm.SetOption(key, value)
	}
	text, err := a.llm.Generate(ctx, prompt)
	a.mu.Unlock()
	if err != nil {
		return nil, classifyError(a.provider, err)
	}
	return a.buildResponse(req, text), nil
}

// SupportsToolChoice reports whether the adapter supports a particular tool choice mode.
func (a *GollmAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case "auto", "none", "required":
		return true
	case "named":
		return a.provider != "gemini"
	default:
		return false
	}
}

// translateRequest flattens a unified Request into a gollm Prompt.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var systemPrompt strings.Builder
	var parts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt.WriteString(msg.TextContent())
			systemPrompt.WriteString("\n")
		case RoleUser:
			parts = append(parts, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				parts = append(parts, "[Assistant]: "+text)
			}
			for _, tc := range msg.ToolCalls() {
				parts = append(parts, fmt.Sprintf("[Tool Call %s]: %s %s", tc.ID, tc.Name, string(tc.Arguments)))
			}
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind != ContentToolResult || part.ToolResult == nil {
					continue
				}
				prefix := "[Tool Result " + part.ToolResult.ToolCallID + "]"
				if part.ToolResult.IsError {
					prefix = "[Tool Error " + part.ToolResult.ToolCallID + "]"
				}
				parts = append(parts, prefix+": "+part.ToolResult.Text())
			}
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if sys := strings.TrimSpace(systemPrompt.String()); sys != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(sys, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, 0, len(req.ToolDefs))
		for _, t := range req.ToolDefs {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		promptOpts = append(promptOpts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// requestOptions returns the gollm options for req. Fields the request leaves
// unset take the adapter defaults so nothing carries over from an earlier call.
func (a *GollmAdapter) requestOptions(req Request) map[string]interface{} {
	opts := map[string]interface{}{
		"model":       a.model,
		"temperature": a.temperature,
		"max_tokens":  a.maxTokens,
	}
	if req.Model != "" {
		opts["model"] = req.Model
	}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		opts["max_tokens"] = *req.MaxTokens
	}
	return opts
}

// buildResponse constructs a unified Response from the generated text.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	toolCalls, rest := parseToolCalls(text)

	var contentParts []ContentPart
	if rest != "" {
		contentParts = append(contentParts, TextPart(rest))
	}
	for i := range toolCalls {
		contentParts = append(contentParts, ContentPart{Kind: ContentToolCall, ToolCall: &toolCalls[i]})
	}
	if len(contentParts) == 0 {
		contentParts = []ContentPart{TextPart(text)}
	}

	finishReason := FinishReason{Reason: "stop", Raw: "stop"}
	if len(toolCalls) > 0 {
		finishReason = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	// gollm does not expose usage; estimate from text length.
	input := estimateTokens(req)
	output := len(text) / 4
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      Message{Role: RoleAssistant, Content: contentParts},
		FinishReason: finishReason,
		Usage:        Usage{InputTokens: input, OutputTokens: output, TotalTokens: input + output},
	}
}

type rawToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// parseToolCalls extracts tool calls that gollm returns as JSON in the reply
// text, either as {"tool_calls":[...]} or as a bare [{"name":...}] array.
// It returns the calls and the text preceding the JSON.
func parseToolCalls(text string) ([]ToolCallData, string) {
	var raws []rawToolCall
	start := -1

	if idx := strings.Index(text, `{"tool_calls"`); idx != -1 {
		var wrapper struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		if err := json.NewDecoder(strings.NewReader(text[idx:])).Decode(&wrapper); err == nil {
			raws, start = wrapper.ToolCalls, idx
		}
	}
	if start == -1 {
		if idx := strings.Index(text, `[{"`); idx != -1 {
			if err := json.NewDecoder(strings.NewReader(text[idx:])).Decode(&raws); err == nil {
				start = idx
			}
		}
	}
	if start == -1 {
		return nil, text
	}

	var calls []ToolCallData
	for _, rc := range raws {
		name, args := rc.Name, rc.Arguments
		if rc.Function != nil {
			name, args = rc.Function.Name, rc.Function.Arguments
		}
		if name == "" {
			continue
		}
		calls = append(calls, ToolCallData{
			ID:        normalizeCallID(rc.ID),
			Name:      name,
			Arguments: normalizeArguments(args),
			Type:      "function",
		})
	}
	if len(calls) == 0 {
		return nil, text
	}
	return calls, strings.TrimSpace(text[:start])
}

// normalizeArguments returns args as a JSON object payload. OpenAI-style
// string-encoded arguments are unwrapped; empty arguments become {}.
func normalizeArguments(args json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			if strings.TrimSpace(s) == "" {
				return json.RawMessage("{}")
			}
			return json.RawMessage(s)
		}
	}
	return json.RawMessage(trimmed)
}

func normalizeCallID(id string) string {
	if id != "" {
		return id
	}
	return "call_" + uuid.New().String()[:8]
}

// estimateTokens provides a rough token count estimate from request messages.
func estimateTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			if part.Kind == ContentText {
				total += len(part.Text) / 4
			}
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
