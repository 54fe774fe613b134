package gpstracker

import (
	"errors"
	"fmt"
)

// GpsTrackerError is implemented by every error returned by the Client.
type GpsTrackerError interface {
	error
	gpsTrackerError()
}

// UnauthorizedQueryError is returned when the API rejects the credentials.
type UnauthorizedQueryError struct {
	Path       string
	StatusCode int
}

func (e *UnauthorizedQueryError) Error() string {
	return fmt.Sprintf("unauthorized query %s: status %d", e.Path, e.StatusCode)
}

func (*UnauthorizedQueryError) gpsTrackerError() {}

// HTTPError is returned for any other non-2xx response.
type HTTPError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request %s failed: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("request %s failed: status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (*HTTPError) gpsTrackerError() {}

// ConnectionError wraps transport level failures.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (*ConnectionError) gpsTrackerError() {}

// DecodeError is returned when a response body cannot be parsed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (*DecodeError) gpsTrackerError() {}

// ErrClientClosed is wrapped in a ConnectionError once Close has been called.
var ErrClientClosed = errors.New("client is closed")

// IsGpsTrackerError reports whether err originates from the Client.
func IsGpsTrackerError(err error) bool {
	var e GpsTrackerError
	return errors.As(err, &e)
}
