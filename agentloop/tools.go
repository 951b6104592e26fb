package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/martinemde/coderag/unifiedllm"
)

// ToolNotFoundOutput is the result recorded for calls to unregistered tools.
const ToolNotFoundOutput = "Error: Tool not found"

// ToolExecutor runs one tool against env. arguments have already passed
// schema validation. A returned error reaches the model as an "Error: " result.
type ToolExecutor func(arguments json.RawMessage, env ExecutionEnvironment) (string, error)

// ToolDefinition is the name, description and JSON Schema offered to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RegisteredTool binds a definition to the code that runs it.
type RegisteredTool struct {
	Definition ToolDefinition
	Executor   ToolExecutor
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	ToolCallID string
	Name       string
	Output     string
	IsError    bool
}

// ToolRegistry holds the tools available to an agent, keyed by name and
// reported in registration order. It is safe for concurrent use.
type ToolRegistry struct {
	tools map[string]*RegisteredTool
	order []string
	mu    sync.RWMutex
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*RegisteredTool),
	}
}

// DefaultToolRegistry returns a registry holding read_file, write_file and
// list_files.
func DefaultToolRegistry() *ToolRegistry {
	reg := NewToolRegistry()
	RegisterCoreTools(reg)
	return reg
}

// Register adds tool. A tool with the same name is replaced in place.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &tool
}

// Get returns the tool called name, or nil.
func (r *ToolRegistry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToUnifiedLLMToolDefs returns the definitions in request form.
func (r *ToolRegistry) ToUnifiedLLMToolDefs() []unifiedllm.ToolDefinition {
	defs := r.Definitions()
	out := make([]unifiedllm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = unifiedllm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return out
}

// Execute validates call arguments against the tool schema and runs the tool.
// It never fails: unknown tools, invalid arguments, executor errors and
// panics all become an "Error: "-prefixed output with IsError set.
func (r *ToolRegistry) Execute(call unifiedllm.ToolCall, env ExecutionEnvironment) (result ToolResult) {
	result = ToolResult{ToolCallID: call.ID, Name: call.Name}

	tool := r.Get(call.Name)
	if tool == nil {
		result.Output, result.IsError = ToolNotFoundOutput, true
		return result
	}

	args, err := ParseToolArguments(call.Arguments)
	if err != nil {
		result.Output, result.IsError = errorOutput(err), true
		return result
	}
	if err := validateArguments(tool.Definition.Parameters, args); err != nil {
		result.Output, result.IsError = "Error: invalid arguments for "+call.Name+": "+err.Error(), true
		return result
	}

	defer func() {
		if p := recover(); p != nil {
			result.Output = fmt.Sprintf("Error: tool %s panicked: %v", call.Name, p)
			result.IsError = true
		}
	}()

	raw := call.Arguments
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage("{}")
	}
	output, err := tool.Executor(raw, env)
	if err != nil {
		result.Output, result.IsError = errorOutput(err), true
		return result
	}
	result.Output = output
	return result
}

func errorOutput(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "Error:") {
		return msg
	}
	return "Error: " + msg
}

// ParseToolArguments decodes a JSON object of arguments. Empty or null input
// yields an empty map.
func ParseToolArguments(raw json.RawMessage) (map[string]interface{}, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// GetStringArg returns args[key] when it is a string.
func GetStringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
