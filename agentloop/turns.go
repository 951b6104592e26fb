package agentloop

import (
	"errors"
	"fmt"
	"time"

	"github.com/martinemde/coderag/unifiedllm"
)

// ErrToolCallMismatch is returned when a tool result does not answer an
// outstanding call of the immediately preceding assistant turn.
var ErrToolCallMismatch = errors.New("tool result does not match a pending tool call")

// unexecutedToolOutput answers calls that carried-over history left open.
const unexecutedToolOutput = "Error: tool call was not executed"

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnSystem     TurnKind = "system"
	TurnHuman      TurnKind = "human"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
)

// Turn is a single entry in the transcript. Exactly one of the variant
// pointers is set, matching Kind.
type Turn struct {
	Kind       TurnKind        `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	System     *SystemTurn     `json:"system,omitempty"`
	Human      *HumanTurn      `json:"human,omitempty"`
	Assistant  *AssistantTurn  `json:"assistant,omitempty"`
	ToolResult *ToolResultTurn `json:"tool_result,omitempty"`
}

// SystemTurn holds the instruction block with injected context.
type SystemTurn struct {
	Content string `json:"content"`
}

// HumanTurn holds a user query.
type HumanTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds a model response.
type AssistantTurn struct {
	Content    string                `json:"content"`
	ToolCalls  []unifiedllm.ToolCall `json:"tool_calls,omitempty"`
	Usage      unifiedllm.Usage      `json:"usage"`
	ResponseID string                `json:"response_id,omitempty"`
}

// ToolResultTurn answers one tool call of the preceding assistant turn.
type ToolResultTurn struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

func NewSystemTurn(content string) Turn {
	return Turn{Kind: TurnSystem, Timestamp: time.Now(), System: &SystemTurn{Content: content}}
}

func NewHumanTurn(content string) Turn {
	return Turn{Kind: TurnHuman, Timestamp: time.Now(), Human: &HumanTurn{Content: content}}
}

func NewAssistantTurn(content string, toolCalls []unifiedllm.ToolCall, usage unifiedllm.Usage, responseID string) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{
			Content:    content,
			ToolCalls:  toolCalls,
			Usage:      usage,
			ResponseID: responseID,
		},
	}
}

func NewToolResultTurn(toolCallID, name, content string, isError bool) Turn {
	return Turn{
		Kind:      TurnToolResult,
		Timestamp: time.Now(),
		ToolResult: &ToolResultTurn{
			ToolCallID: toolCallID,
			Name:       name,
			Content:    content,
			IsError:    isError,
		},
	}
}

// TextContent returns the text of a turn regardless of its kind.
func (t Turn) TextContent() string {
	switch {
	case t.Kind == TurnSystem && t.System != nil:
		return t.System.Content
	case t.Kind == TurnHuman && t.Human != nil:
		return t.Human.Content
	case t.Kind == TurnAssistant && t.Assistant != nil:
		return t.Assistant.Content
	case t.Kind == TurnToolResult && t.ToolResult != nil:
		return t.ToolResult.Content
	}
	return ""
}

func (t Turn) valid() bool {
	switch t.Kind {
	case TurnSystem:
		return t.System != nil
	case TurnHuman:
		return t.Human != nil
	case TurnAssistant:
		return t.Assistant != nil
	case TurnToolResult:
		return t.ToolResult != nil
	}
	return false
}

// Transcript is the ordered, append-only message list of one run. The first
// turn is always the system turn.
type Transcript struct {
	turns []Turn
	// pending holds unanswered call ids of the last assistant turn, in order.
	pending []unifiedllm.ToolCall
}

// NewTranscript starts a transcript with the system prompt, the carried-over
// history and the new query. System turns in history are dropped, results
// that answer no pending call are dropped, and calls left unanswered are
// closed with an error result so the transcript stays well formed.
func NewTranscript(system string, history []Turn, query string) *Transcript {
	t := &Transcript{turns: []Turn{NewSystemTurn(system)}}
	for _, turn := range history {
		if !turn.valid() {
			continue
		}
		switch turn.Kind {
		case TurnSystem:
			continue
		case TurnToolResult:
			_ = t.appendToolResult(turn)
		case TurnAssistant:
			t.closePending()
			t.appendAssistant(turn)
		default:
			t.closePending()
			t.turns = append(t.turns, turn)
		}
	}
	t.closePending()
	t.turns = append(t.turns, NewHumanTurn(query))
	return t
}

// AppendAssistant records a model response. Its tool calls become the
// pending set that subsequent tool results must answer.
func (t *Transcript) AppendAssistant(resp *unifiedllm.Response) {
	t.closePending()
	t.appendAssistant(NewAssistantTurn(resp.Text(), resp.ToolCallsFromResponse(), resp.Usage, resp.ID))
}

// AppendToolResult records the outcome of a pending tool call.
func (t *Transcript) AppendToolResult(toolCallID, name, content string, isError bool) error {
	return t.appendToolResult(NewToolResultTurn(toolCallID, name, content, isError))
}

func (t *Transcript) appendAssistant(turn Turn) {
	t.turns = append(t.turns, turn)
	t.pending = append(t.pending[:0], turn.Assistant.ToolCalls...)
}

func (t *Transcript) appendToolResult(turn Turn) error {
	id := turn.ToolResult.ToolCallID
	for i, call := range t.pending {
		if call.ID == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			t.turns = append(t.turns, turn)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrToolCallMismatch, id)
}

func (t *Transcript) closePending() {
	for _, call := range t.pending {
		t.turns = append(t.turns, NewToolResultTurn(call.ID, call.Name, unexecutedToolOutput, true))
	}
	t.pending = t.pending[:0]
}

// Turns returns a copy of every turn, system turn included.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// History returns the turns after the system turn, suitable for carrying
// into the next run.
func (t *Transcript) History() []Turn {
	out := make([]Turn, 0, len(t.turns))
	for _, turn := range t.turns {
		if turn.Kind != TurnSystem {
			out = append(out, turn)
		}
	}
	return out
}

// Messages converts the transcript into request messages.
func (t *Transcript) Messages() []unifiedllm.Message {
	messages := make([]unifiedllm.Message, 0, len(t.turns))
	for _, turn := range t.turns {
		switch turn.Kind {
		case TurnSystem:
			messages = append(messages, unifiedllm.SystemMessage(turn.System.Content))
		case TurnHuman:
			messages = append(messages, unifiedllm.UserMessage(turn.Human.Content))
		case TurnAssistant:
			msg := unifiedllm.AssistantMessage(turn.Assistant.Content)
			for _, tc := range turn.Assistant.ToolCalls {
				msg.Content = append(msg.Content, unifiedllm.ToolCallPart(tc.ID, tc.Name, tc.Arguments))
			}
			messages = append(messages, msg)
		case TurnToolResult:
			r := turn.ToolResult
			messages = append(messages, unifiedllm.ToolResultMessage(r.ToolCallID, r.Name, r.Content, r.IsError))
		}
	}
	return messages
}
