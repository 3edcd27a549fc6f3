package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAPI indicates the provider rejected the call for a reason that
// retrying will not fix (credentials, billing, quota). Callers should
// surface it instead of retrying.
var ErrFatalAPI = errors.New("fatal LLM API error")

// ErrMalformedOutput indicates the model answered with something that is
// not the requested JSON document.
var ErrMalformedOutput = errors.New("malformed model output")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err looks like a non-retryable provider error.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal provider errors with ErrFatalAPI and returns
// other errors unchanged.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
