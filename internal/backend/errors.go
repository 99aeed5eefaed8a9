package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotJSON is returned when a response body is not structured data
	ErrNotJSON = errors.New("expected JSON response")

	// ErrEnvelopeDecode is the first stage of the AI feedback decode: the
	// outer {"res": "..."} document is missing or res is not a string
	ErrEnvelopeDecode = errors.New("decode feedback envelope")

	// ErrPayloadDecode is the second stage: the string inside res is not a
	// valid {answer, hints, score} document
	ErrPayloadDecode = errors.New("decode feedback payload")

	// ErrRateLimited is returned when the local rate limiter rejects a call
	ErrRateLimited = errors.New("backend rate limit exceeded")
)

// maxErrorBody bounds how much of a failed response is kept in an HTTPError
const maxErrorBody = 300

// HTTPError is returned for non-2xx backend responses
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func newHTTPError(status int, body []byte) *HTTPError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPError{StatusCode: status, Body: string(body)}
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
