package gateway

import "fmt"

// TransportError wraps any network or backend failure of a gateway call.
// Status is the HTTP status code when the backend answered at all, 0 when
// the request never completed. Callers never retry automatically.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

func statusErr(op string, status int) error {
	return &TransportError{Op: op, Status: status, Err: fmt.Errorf("unexpected status %d", status)}
}
