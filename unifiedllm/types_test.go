package unifiedllm

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		role Role
		text string
	}{
		{"system", SystemMessage("You answer questions about code."), RoleSystem, "You answer questions about code."},
		{"user", UserMessage("where is main?"), RoleUser, "where is main?"},
		{"assistant", AssistantMessage("in cmd/"), RoleAssistant, "in cmd/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Role != tt.role {
				t.Errorf("role = %q, want %q", tt.msg.Role, tt.role)
			}
			if got := tt.msg.TextContent(); got != tt.text {
				t.Errorf("text = %q, want %q", got, tt.text)
			}
		})
	}

	if msg := AssistantMessage(""); len(msg.Content) != 0 {
		t.Errorf("empty assistant text should produce no parts, got %d", len(msg.Content))
	}
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage("call_123", "read_file", "package main", true)
	if msg.Role != RoleTool || msg.ToolCallID != "call_123" || msg.Name != "read_file" {
		t.Fatalf("unexpected message header %+v", msg)
	}
	if len(msg.Content) != 1 || msg.Content[0].Kind != ContentToolResult {
		t.Fatalf("expected a single tool result part, got %+v", msg.Content)
	}
	result := msg.Content[0].ToolResult
	if result.Text() != "package main" || !result.IsError {
		t.Errorf("unexpected tool result %+v", result)
	}

	raw := ToolResultData{Content: json.RawMessage(`{"ok":true}`)}
	if raw.Text() != `{"ok":true}` {
		t.Errorf("non-string content should pass through, got %q", raw.Text())
	}
}

func TestResponseAccessors(t *testing.T) {
	resp := Response{Message: Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			TextPart("Checking "),
			ToolCallPart("call_1", "read_file", json.RawMessage(`{"path":"go.mod"}`)),
			TextPart("now."),
			ToolCallPart("call_2", "list_files", json.RawMessage(`{"path":"."}`)),
		},
	}}

	if resp.Text() != "Checking now." {
		t.Errorf("text = %q", resp.Text())
	}

	calls := resp.ToolCallsFromResponse()
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].ID != "call_1" || calls[1].Name != "list_files" {
		t.Errorf("unexpected calls %+v", calls)
	}
	if string(calls[0].Arguments) != `{"path":"go.mod"}` {
		t.Errorf("arguments = %s", calls[0].Arguments)
	}
	if len(resp.Message.ToolCalls()) != 2 {
		t.Error("Message.ToolCalls should agree with the response accessor")
	}
	if resp.Message.Content[1].ToolCall.Type != "function" {
		t.Errorf("tool call type = %q", resp.Message.Content[1].ToolCall.Type)
	}
}

func TestUsageAdd(t *testing.T) {
	got := Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}.Add(Usage{InputTokens: 5, OutputTokens: 15, TotalTokens: 20})
	want := Usage{InputTokens: 15, OutputTokens: 35, TotalTokens: 50}
	if got != want {
		t.Errorf("Add = %+v, want %+v", got, want)
	}
}
