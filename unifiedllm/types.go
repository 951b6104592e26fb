package unifiedllm

import (
	"encoding/json"
	"strings"
)

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind tags which field of a ContentPart is populated.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ToolCallData is a tool invocation requested by the model. Arguments hold a
// JSON object.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Type      string          `json:"type,omitempty"`
}

// ToolResultData answers the tool call with the same ToolCallID.
type ToolResultData struct {
	ToolCallID string          `json:"tool_call_id"`
	Content    json.RawMessage `json:"content"`
	IsError    bool            `json:"is_error"`
}

// Text decodes Content when it is a JSON string and returns it verbatim
// otherwise.
func (d ToolResultData) Text() string {
	var s string
	if json.Unmarshal(d.Content, &s) == nil {
		return s
	}
	return string(d.Content)
}

// ContentPart holds one piece of a message. Exactly one payload field matches
// Kind.
type ContentPart struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	call := ToolCallData{ID: id, Name: name, Arguments: args, Type: "function"}
	return ContentPart{Kind: ContentToolCall, ToolCall: &call}
}

func ToolResultPart(toolCallID string, content json.RawMessage, isError bool) ContentPart {
	result := ToolResultData{ToolCallID: toolCallID, Content: content, IsError: isError}
	return ContentPart{Kind: ContentToolResult, ToolResult: &result}
}

// Message is one entry of the conversation sent to a provider.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content"`
	Name       string        `json:"name,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// TextContent joins the text parts of m.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, p := range m.Content {
		if p.Kind == ContentText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool call parts of m in order.
func (m Message) ToolCalls() []ToolCallData {
	var out []ToolCallData
	for _, p := range m.Content {
		if p.Kind == ContentToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage omits the text part when text is empty; several providers
// reject empty content on tool-call-only turns.
func AssistantMessage(text string) Message {
	msg := Message{Role: RoleAssistant}
	if text != "" {
		msg.Content = []ContentPart{TextPart(text)}
	}
	return msg
}

// ToolResultMessage carries the output of the call toolCallID back to the
// model.
func ToolResultMessage(toolCallID, toolName, content string, isError bool) Message {
	raw, _ := json.Marshal(content)
	return Message{
		Role:       RoleTool,
		Content:    []ContentPart{ToolResultPart(toolCallID, raw, isError)},
		Name:       toolName,
		ToolCallID: toolCallID,
	}
}

// ToolChoice steers tool use. Mode is one of auto, none, required or named;
// ToolName applies to named.
type ToolChoice struct {
	Mode     string `json:"mode"`
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is the flattened form of a tool call part used by callers.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// FinishReason records why generation stopped. Reason is normalized to stop,
// length, tool_calls, content_filter, error or other; Raw keeps the
// provider's value.
type FinishReason struct {
	Reason string `json:"reason"`
	Raw    string `json:"raw,omitempty"`
}

// Usage counts tokens for one or more completions.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func (u Usage) Add(o Usage) Usage {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.TotalTokens += o.TotalTokens
	return u
}

// Request is a single completion request.
type Request struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Provider    string           `json:"provider,omitempty"`
	ToolDefs    []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  *ToolChoice      `json:"tool_choice,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   *int             `json:"max_tokens,omitempty"`
}

// ToolDefinition is a tool offered to the model. Parameters is a JSON Schema
// object.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Response is the result of one completion.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// Text is the joined text of the response message.
func (r Response) Text() string {
	return r.Message.TextContent()
}

// ToolCallsFromResponse returns the requested tool calls in order.
func (r Response) ToolCallsFromResponse() []ToolCall {
	parts := r.Message.ToolCalls()
	if len(parts) == 0 {
		return nil
	}
	calls := make([]ToolCall, len(parts))
	for i, p := range parts {
		calls[i] = ToolCall{ID: p.ID, Name: p.Name, Arguments: p.Arguments}
	}
	return calls
}
