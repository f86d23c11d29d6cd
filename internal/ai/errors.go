package ai

import "fmt"

// NetworkError is a connection-level failure: refused, timed out, DNS.
// It is reported for the current turn and never retried automatically.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("could not reach the API endpoint: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response. Body carries the server's
// error detail, which for Azure OpenAI is a structured API error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API request failed (status %d)", e.Code)
	}
	return fmt.Sprintf("API request failed (status %d): %s", e.Code, e.Body)
}

// APIError is an error object the server delivered in-band, either as a
// streamed frame or inside an otherwise well-formed response body.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// StreamError reports a stream that ended abnormally mid-reply. Partial
// holds the content received (and already displayed) before the failure.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream interrupted after %d chars: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
