package unifiedllm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockAdapter answers every request with a fixed response or error.
type mockAdapter struct {
	name     string
	response *Response
	err      error
	lastReq  Request
	calls    int
	closeErr error
	closed   bool
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockAdapter) Close() error {
	m.closed = true
	return m.closeErr
}

func newMockAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name: name,
		response: &Response{
			ID:           "resp_1",
			Model:        "test-model",
			Provider:     name,
			Message:      AssistantMessage(text),
			FinishReason: FinishReason{Reason: "stop"},
			Usage:        Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		},
	}
}

// choosyAdapter only accepts the "auto" tool choice.
type choosyAdapter struct{ *mockAdapter }

func (choosyAdapter) SupportsToolChoice(mode string) bool { return mode == "auto" }

func ask(client *Client, req Request) (*Response, error) {
	if req.Messages == nil {
		req.Messages = []Message{UserMessage("Hi")}
	}
	return client.Complete(context.Background(), req)
}

func TestClientRouting(t *testing.T) {
	openai := newMockAdapter("openai", "from openai")
	ollama := newMockAdapter("ollama", "from ollama")
	client := NewClient(
		WithProvider("openai", openai),
		WithProvider("ollama", ollama),
		WithDefaultProvider("openai"),
	)

	tests := []struct {
		provider string
		want     string
	}{
		{"", "from openai"},
		{"ollama", "from ollama"},
		{"openai", "from openai"},
	}
	for _, tt := range tests {
		resp, err := ask(client, Request{Provider: tt.provider})
		if err != nil {
			t.Fatalf("provider %q: %v", tt.provider, err)
		}
		if resp.Text() != tt.want {
			t.Errorf("provider %q: text = %q, want %q", tt.provider, resp.Text(), tt.want)
		}
	}
}

func TestClientConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
		req    Request
	}{
		{"no providers", NewClient(), Request{}},
		{"unregistered", NewClient(WithProvider("openai", newMockAdapter("openai", "ok"))), Request{Provider: "ollama"}},
		{"ambiguous default", NewClient(
			WithProvider("a", newMockAdapter("a", "ok")),
			WithProvider("b", newMockAdapter("b", "ok")),
		), Request{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ask(tt.client, tt.req)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected ConfigurationError, got %T: %v", err, err)
			}
		})
	}
}

func TestClientFillsDefaults(t *testing.T) {
	mock := newMockAdapter("openai", "ok")
	client := NewClient(WithProvider("openai", mock), WithDefaultModel("gpt-4o-mini"))

	if _, err := ask(client, Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastReq.Provider != "openai" || mock.lastReq.Model != "gpt-4o-mini" {
		t.Errorf("defaults not applied: provider=%q model=%q", mock.lastReq.Provider, mock.lastReq.Model)
	}

	if _, err := ask(client, Request{Model: "gpt-4o"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastReq.Model != "gpt-4o" {
		t.Errorf("explicit model overridden: %q", mock.lastReq.Model)
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	var order []string
	trace := func(label string) Middleware {
		return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
			order = append(order, "in:"+label)
			resp, err := next(ctx, req)
			order = append(order, "out:"+label)
			return resp, err
		}
	}

	client := NewClient(
		WithProvider("test", newMockAdapter("test", "ok")),
		WithMiddleware(trace("outer"), trace("inner")),
	)
	if _, err := ask(client, Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "in:outer in:inner out:inner out:outer"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

func TestClientRejectsUnsupportedToolChoice(t *testing.T) {
	mock := newMockAdapter("picky", "ok")
	client := NewClient(WithProvider("picky", choosyAdapter{mock}))

	_, err := ask(client, Request{ToolChoice: &ToolChoice{Mode: "required"}})
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %T: %v", err, err)
	}
	if mock.calls != 0 {
		t.Error("adapter should not be called for an unsupported tool choice")
	}

	if _, err := ask(client, Request{ToolChoice: &ToolChoice{Mode: "auto"}}); err != nil {
		t.Fatalf("auto should pass: %v", err)
	}
}

// flakyAdapter fails with err for the first failures calls.
type flakyAdapter struct {
	failures int
	err      error
	calls    int
}

func (f *flakyAdapter) Name() string { return "flaky" }

func (f *flakyAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Response{Message: AssistantMessage("recovered")}, nil
}

func TestClientRetryMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		policy    RetryPolicy
		wantCalls int
		wantErr   bool
	}{
		{"recovers", RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}, 3, false},
		{"disabled", RetryPolicy{}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky := &flakyAdapter{failures: 2, err: serverFailure()}
			client := NewClient(WithProvider("flaky", flaky), WithMiddleware(RetryMiddleware(tt.policy)))

			resp, err := ask(client, Request{})
			if flaky.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", flaky.calls, tt.wantCalls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected the failure to surface")
				}
				return
			}
			if err != nil || resp.Text() != "recovered" {
				t.Fatalf("got (%v, %v)", resp, err)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	client := NewClient(
		WithProvider("openai", newMockAdapter("openai", "ok")),
		WithDefaultModel("gpt-4o-mini"),
		WithMiddleware(LoggingMiddleware(logger)),
	)
	if _, err := ask(client, Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"message":"completion"`, `"provider":"openai"`, `"model":"gpt-4o-mini"`, `"output_tokens":20`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %s", out, want)
		}
	}

	buf.Reset()
	failing := &mockAdapter{name: "openai", err: &AuthenticationError{}}
	client = NewClient(WithProvider("openai", failing), WithMiddleware(LoggingMiddleware(logger)))
	if _, err := ask(client, Request{}); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("failure should log at warn: %q", buf.String())
	}
}

func TestClientClose(t *testing.T) {
	ok := newMockAdapter("ok", "x")
	broken := newMockAdapter("broken", "x")
	broken.closeErr = errors.New("socket stuck")

	client := NewClient(WithProvider("ok", ok), WithProvider("broken", broken))
	err := client.Close()
	if err == nil || !strings.Contains(err.Error(), "close broken") {
		t.Errorf("expected wrapped close error, got %v", err)
	}
	if !ok.closed || !broken.closed {
		t.Error("every adapter should be closed")
	}
}
