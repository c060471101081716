package generator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrRateLimited     = errors.New("generator: rate limited")
	ErrContentFiltered = errors.New("generator: content filtered")
	ErrInvalidArgument = errors.New("generator: invalid argument")
	ErrAuth            = errors.New("generator: authentication failed")
)

// classify tags a backend error with one of the sentinel kinds. Unknown
// errors are returned wrapped but untagged.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isContentFilter(apiErr.Code, apiErr.Type, apiErr.Message) {
			return fmt.Errorf("%w: %w", ErrContentFiltered, err)
		}
		if kind := kindForStatus(apiErr.HTTPStatusCode); kind != nil {
			return fmt.Errorf("%w: %w", kind, err)
		}
		return fmt.Errorf("chat completion: %w", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if kind := kindForStatus(reqErr.HTTPStatusCode); kind != nil {
			return fmt.Errorf("%w: %w", kind, err)
		}
	}
	return fmt.Errorf("chat completion: %w", err)
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrInvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	}
	return nil
}

func isContentFilter(code any, typ, message string) bool {
	if s, ok := code.(string); ok && s == "content_filter" {
		return true
	}
	if typ == "content_filter" {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "content management policy") || strings.Contains(lower, "safety")
}
