package agentloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/martinemde/coderag/embedding"
	"github.com/martinemde/coderag/retrieval"
	"github.com/martinemde/coderag/unifiedllm"
)

// DefaultMaxTurns bounds the model invocations of one run.
const DefaultMaxTurns = 15

// ErrMissingModel is returned by NewAgent when no language model is set.
var ErrMissingModel = errors.New("agentloop: language model is required")

// LanguageModel is the capability the loop drives. *unifiedllm.Client
// satisfies it.
type LanguageModel interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
}

// Options configures an Agent. Only Model is required.
type Options struct {
	Model LanguageModel
	// ModelName and Provider are forwarded on every request; empty values
	// leave the choice to the model client.
	ModelName string
	Provider  string

	// Embedder embeds queries for retrieval. Nil disables retrieval.
	Embedder embedding.Embedder
	// Index is used as is when set; otherwise IndexPath is loaded once.
	Index     *retrieval.Index
	IndexPath string
	TopK      int

	MaxTurns int

	// Environment runs the tools. When nil a local environment rooted at
	// WorkspaceRoot (default ".") is created.
	Environment   ExecutionEnvironment
	WorkspaceRoot string
	Registry      *ToolRegistry

	// Instructions are appended to the system prompt.
	Instructions string

	ToolOutputLimits map[string]int
	ToolLineLimits   map[string]int

	Logger *zerolog.Logger
}

// Agent answers queries about a workspace by combining retrieved context
// with a tool-calling loop. An Agent is safe for concurrent Runs.
type Agent struct {
	model     LanguageModel
	modelName string
	provider  string
	retriever *retrieval.Retriever
	env       ExecutionEnvironment
	registry  *ToolRegistry
	maxTurns  int

	instructions string
	charLimits   map[string]int
	lineLimits   map[string]int

	logger zerolog.Logger
}

// NewAgent validates opts, loads the index and prepares the tool environment.
func NewAgent(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, ErrMissingModel
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	env := opts.Environment
	if env == nil {
		local, err := NewLocalExecutionEnvironment(opts.WorkspaceRoot)
		if err != nil {
			return nil, fmt.Errorf("agentloop: %w", err)
		}
		env = local
	}

	registry := opts.Registry
	if registry == nil {
		registry = DefaultToolRegistry()
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	index := opts.Index
	if index == nil {
		index = retrieval.LoadIndexOrEmpty(opts.IndexPath, logger)
	}
	if opts.Embedder == nil && index.HasVectors() {
		logger.Warn().Msg("no embedder configured, answering without retrieved context")
	}

	return &Agent{
		model:        opts.Model,
		modelName:    opts.ModelName,
		provider:     opts.Provider,
		retriever:    retrieval.NewRetriever(index, opts.Embedder, retrieval.WithTopK(opts.TopK), retrieval.WithLogger(logger)),
		env:          env,
		registry:     registry,
		maxTurns:     maxTurns,
		instructions: opts.Instructions,
		charLimits:   opts.ToolOutputLimits,
		lineLimits:   opts.ToolLineLimits,
		logger:       logger,
	}, nil
}

// Index returns the similarity index loaded at construction.
func (a *Agent) Index() *retrieval.Index { return a.retriever.Index() }

// MaxTurns returns the turn budget of each run.
func (a *Agent) MaxTurns() int { return a.maxTurns }

// Run answers query in a new goroutine and returns the stream of its
// progress. history is a transcript returned by a previous Stream.History.
// Cancelling ctx abandons the run: the stream closes without a terminal
// event and Stream.Err reports the context error.
func (a *Agent) Run(ctx context.Context, query string, history []Turn) *Stream {
	s := newStream()
	go a.run(ctx, s, query, history)
	return s
}

func (a *Agent) run(ctx context.Context, s *Stream, query string, history []Turn) {
	log := a.logger.With().Str("run_id", uuid.NewString()).Logger()

	var transcript *Transcript
	var runErr error
	defer func() {
		var h []Turn
		if transcript != nil {
			h = transcript.History()
		}
		s.finish(h, runErr)
	}()

	retrieved := a.retriever.Retrieve(ctx, query)
	transcript = NewTranscript(BuildSystemPrompt(a.env, a.modelName, a.instructions, retrieved), history, query)
	tools := a.registry.ToUnifiedLLMToolDefs()

	emit := func(ev Event) bool {
		if !s.emit(ctx, ev) {
			runErr = ctx.Err()
			log.Debug().Str("event", string(ev.Type)).Msg("consumer gone, abandoning run")
			return false
		}
		return true
	}

	for turn := 1; turn <= a.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			return
		}

		log.Debug().Int("turn", turn).Msg("invoking model")
		resp, err := a.model.Complete(ctx, unifiedllm.Request{
			Model:      a.modelName,
			Provider:   a.provider,
			Messages:   transcript.Messages(),
			ToolDefs:   tools,
			ToolChoice: &unifiedllm.ToolChoice{Mode: "auto"},
		})
		if err == nil && resp == nil {
			err = errors.New("model returned no response")
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				runErr = ctxErr
				return
			}
			log.Error().Err(err).Int("turn", turn).Msg("model invocation failed")
			emit(Event{Type: EventError, Error: err.Error()})
			return
		}

		transcript.AppendAssistant(resp)
		calls := resp.ToolCallsFromResponse()
		if len(calls) == 0 {
			log.Debug().Int("turn", turn).Msg("answered")
			emit(Event{Type: EventMessage, Content: resp.Text()})
			return
		}

		names := make([]string, len(calls))
		for i, call := range calls {
			names[i] = call.Name
		}
		if !emit(Event{Type: EventToolStart, Tools: names}) {
			return
		}

		for _, call := range calls {
			known := a.registry.Get(call.Name) != nil
			result := a.registry.Execute(call, a.env)
			log.Debug().
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Bool("is_error", result.IsError).
				Msg("tool executed")

			content := TruncateToolOutput(result.Output, call.Name, a.charLimits, a.lineLimits)
			if err := transcript.AppendToolResult(call.ID, call.Name, content, result.IsError); err != nil {
				log.Warn().Err(err).Str("tool", call.Name).Msg("dropping tool result")
			}
			if known && !emit(Event{Type: EventToolResult, Tool: call.Name, Output: result.Output}) {
				return
			}
		}
	}

	log.Warn().Int("turns", a.maxTurns).Msg("turn budget exhausted without an answer")
	emit(Event{Type: EventTurnLimit, Turns: a.maxTurns})
}
