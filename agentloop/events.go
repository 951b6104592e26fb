package agentloop

import (
	"context"
	"encoding/json"
	"sync"
)

// EventType identifies the kind of progress event.
type EventType string

const (
	EventToolStart  EventType = "tool_start"
	EventToolResult EventType = "tool_result"
	EventMessage    EventType = "message"
	EventError      EventType = "error"
	EventTurnLimit  EventType = "turn_limit"
)

// Event is one progress record of a run. Only the fields of its Type are
// meaningful: Tools for tool_start, Tool and Output for tool_result, Content
// for message, Error for error and Turns for turn_limit.
type Event struct {
	Type    EventType `json:"type"`
	Tools   []string  `json:"tools,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Output  string    `json:"output,omitempty"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
	Turns   int       `json:"turns,omitempty"`
}

// Terminal reports whether e ends a run.
func (e Event) Terminal() bool {
	return e.Type == EventMessage || e.Type == EventError || e.Type == EventTurnLimit
}

// MarshalJSON writes the type discriminator plus the fields of that type,
// including empty ones.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventToolStart:
		tools := e.Tools
		if tools == nil {
			tools = []string{}
		}
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Tools []string  `json:"tools"`
		}{e.Type, tools})
	case EventToolResult:
		return json.Marshal(struct {
			Type   EventType `json:"type"`
			Tool   string    `json:"tool"`
			Output string    `json:"output"`
		}{e.Type, e.Tool, e.Output})
	case EventMessage:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventError:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Error})
	case EventTurnLimit:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Turns int       `json:"turns"`
		}{e.Type, e.Turns})
	}
	type plain Event
	return json.Marshal(plain(e))
}

// Stream is the consumer side of a run. Events are delivered over an
// unbuffered channel that is closed when the run ends.
type Stream struct {
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	history []Turn
	err     error
}

func newStream() *Stream {
	return &Stream{
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

// Events returns the event channel. A consumer that stops reading before the
// channel closes must cancel the run's context.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Done is closed after the event channel is closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// History waits for the run to finish and returns the transcript without its
// system turn. Call it after draining Events or cancelling the context.
func (s *Stream) History() []Turn {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Err waits for the run to finish and returns the context error when the run
// was abandoned, or nil.
func (s *Stream) Err() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Collect drains the stream and returns every event.
func (s *Stream) Collect() []Event {
	var out []Event
	for ev := range s.events {
		out = append(out, ev)
	}
	<-s.done
	return out
}

// emit delivers ev or gives up when ctx is done.
func (s *Stream) emit(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) finish(history []Turn, err error) {
	s.mu.Lock()
	s.history = history
	s.err = err
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}
