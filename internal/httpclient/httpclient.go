package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/samber/lo"
)

// StatusError is returned by ExpectStatus for an unexpected response code
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// New returns a client whose every request is bounded by timeout
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ExpectStatus accepts only the given response codes
func ExpectStatus(codes ...int) requests.ResponseHandler {
	return func(r *http.Response) error {
		if lo.Contains(codes, r.StatusCode) {
			return nil
		}
		return &StatusError{Code: r.StatusCode}
	}
}

// Responded reports whether err came from a response with an unexpected
// status, as opposed to a transport failure
func Responded(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// HasStatus reports whether err is a StatusError with one of codes
func HasStatus(err error, codes ...int) bool {
	var se *StatusError
	return errors.As(err, &se) && lo.Contains(codes, se.Code)
}
