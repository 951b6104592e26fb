package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SDKError is the base error type for all unified LLM errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError is an error reported by a provider backend.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.SDKError.Error())
	}
	return fmt.Sprintf("%s (status %d): %s", e.Provider, e.StatusCode, e.SDKError.Error())
}

// Provider errors by cause.
type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }

// Errors raised outside the provider.
type RequestTimeoutError struct{ SDKError }
type AbortError struct{ SDKError }
type NetworkError struct{ SDKError }
type InvalidResponseError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatus maps an HTTP status code reported by provider to the
// matching error type. Unknown statuses become a retryable ProviderError.
func ErrorFromStatus(provider string, status int, cause error) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: cause.Error(), Cause: cause},
		Provider:   provider,
		StatusCode: status,
	}
	switch {
	case status == 400 || status == 422:
		return &InvalidRequestError{pe}
	case status == 401:
		return &AuthenticationError{pe}
	case status == 403:
		return &AccessDeniedError{pe}
	case status == 404:
		return &NotFoundError{pe}
	case status == 408:
		return &RequestTimeoutError{pe.SDKError}
	case status == 413:
		return &ContextLengthError{pe}
	case status == 429:
		pe.Retryable = true
		return &RateLimitError{pe}
	case status >= 500:
		pe.Retryable = true
		return &ServerError{pe}
	default:
		pe.Retryable = true
		return &pe
	}
}

// IsRetryable reports whether err is worth retrying. Errors outside the
// hierarchy are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *RateLimitError, *ServerError, *NetworkError, *RequestTimeoutError:
		return true
	case *AuthenticationError, *AccessDeniedError, *NotFoundError, *InvalidRequestError,
		*ContextLengthError, *ContentFilterError, *ConfigurationError,
		*InvalidResponseError, *AbortError:
		return false
	case *ProviderError:
		return e.Retryable
	}
	if inner := errors.Unwrap(err); inner != nil {
		return IsRetryable(inner)
	}
	return true
}

var statusPattern = regexp.MustCompile(`(?i)status(?: code)?[:= ]+([45]\d\d)\b`)

// messageRule maps message fragments to an error constructor.
type messageRule struct {
	fragments []string
	build     func(pe ProviderError) error
}

var messageRules = []messageRule{
	{[]string{"unauthorized", "invalid api key", "invalid key", "incorrect api key"}, func(pe ProviderError) error { return &AuthenticationError{pe} }},
	{[]string{"forbidden", "permission denied"}, func(pe ProviderError) error { return &AccessDeniedError{pe} }},
	{[]string{"model not found", "not found"}, func(pe ProviderError) error { return &NotFoundError{pe} }},
	{[]string{"rate limit", "too many requests"}, func(pe ProviderError) error { pe.Retryable = true; return &RateLimitError{pe} }},
	{[]string{"context length", "context window", "too many tokens", "maximum context"}, func(pe ProviderError) error { return &ContextLengthError{pe} }},
	{[]string{"content filter", "safety"}, func(pe ProviderError) error { return &ContentFilterError{pe} }},
	{[]string{"internal server", "bad gateway", "service unavailable", "overloaded"}, func(pe ProviderError) error { pe.Retryable = true; return &ServerError{pe} }},
	{[]string{"timeout", "timed out"}, func(pe ProviderError) error { return &RequestTimeoutError{pe.SDKError} }},
	{[]string{"connection refused", "no such host", "connection reset", "eof"}, func(pe ProviderError) error { return &NetworkError{pe.SDKError} }},
}

// classifyError converts a backend error into the unified hierarchy. Backends
// that only surface error strings are classified by an embedded status code
// first and by message fragments second.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &AbortError{SDKError{Message: "request cancelled", Cause: err}}
	case errors.Is(err, context.DeadlineExceeded):
		return &RequestTimeoutError{SDKError{Message: "request deadline exceeded", Cause: err}}
	}

	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return ErrorFromStatus(provider, status, err)
	}

	pe := ProviderError{
		SDKError: SDKError{Message: err.Error(), Cause: err},
		Provider: provider,
	}
	lower := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				return rule.build(pe)
			}
		}
	}
	pe.Retryable = true
	return &pe
}
