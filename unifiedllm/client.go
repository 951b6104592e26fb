package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CompleteFunc performs one completion.
type CompleteFunc func(ctx context.Context, req Request) (*Response, error)

// Middleware wraps a completion. Middleware registered first sees the request
// first and the response last.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

// Client routes requests to registered provider adapters.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	defaultModel    string
	middleware      []Middleware
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers adapter under name.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) { c.providers[name] = adapter }
}

// WithDefaultProvider names the adapter used when a request omits Provider.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) { c.defaultProvider = name }
}

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) { c.defaultModel = model }
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) { c.middleware = append(c.middleware, mw...) }
}

// NewClient builds a Client. A client with a single provider uses it as the
// default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{providers: make(map[string]ProviderAdapter)}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	return c
}

func (c *Client) adapterFor(req Request) (ProviderAdapter, error) {
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{SDKError{Message: "no provider specified and no default provider configured"}}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{SDKError{Message: fmt.Sprintf("provider %q is not registered", name)}}
	}
	return adapter, nil
}

// Complete fills in the provider and model defaults, then sends req through
// the middleware chain to the adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.adapterFor(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.ToolChoice != nil {
		if s, ok := adapter.(ToolChoiceSupporter); ok && !s.SupportsToolChoice(req.ToolChoice.Mode) {
			return nil, &InvalidRequestError{ProviderError{
				SDKError: SDKError{Message: fmt.Sprintf("tool choice %q is not supported", req.ToolChoice.Mode)},
				Provider: adapter.Name(),
			}}
		}
	}

	return chain(c.middleware, adapter.Complete)(ctx, req)
}

func chain(mws []Middleware, last CompleteFunc) CompleteFunc {
	if len(mws) == 0 {
		return last
	}
	rest := chain(mws[1:], last)
	mw := mws[0]
	return func(ctx context.Context, req Request) (*Response, error) {
		return mw(ctx, req, rest)
	}
}

// Close closes every adapter that holds resources.
func (c *Client) Close() error {
	var errs []error
	for name, adapter := range c.providers {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// LoggingMiddleware logs each completion at debug level and failures at warn.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		if err != nil {
			logger.Warn().Err(err).
				Str("provider", req.Provider).
				Str("model", req.Model).
				Dur("elapsed", time.Since(start)).
				Msg("completion failed")
			return nil, err
		}
		if resp == nil {
			return nil, nil
		}
		logger.Debug().
			Str("provider", req.Provider).
			Str("model", req.Model).
			Int("messages", len(req.Messages)).
			Int("tool_calls", len(resp.ToolCallsFromResponse())).
			Int("input_tokens", resp.Usage.InputTokens).
			Int("output_tokens", resp.Usage.OutputTokens).
			Dur("elapsed", time.Since(start)).
			Msg("completion")
		return resp, nil
	}
}
