package skytap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"
)

// Class groups failures the way callers report them.
type Class int

const (
	ClassNone Class = iota
	ClassTransport
	ClassClient
	ClassServer
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassClient:
		return "client"
	case ClassServer:
		return "server"
	default:
		return "none"
	}
}

// handledStatus are the error codes the API documents for its endpoints.
var handledStatus = []int{
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusLocked,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
}

// IsHandledStatus reports whether code is one of the documented API errors.
func IsHandledStatus(code int) bool { return slices.Contains(handledStatus, code) }

// APIError carries the HTTP status code from a REST API response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Class returns ClassClient for 4xx and ClassServer otherwise.
func (e *APIError) Class() Class {
	if e.Code >= 400 && e.Code < 500 {
		return ClassClient
	}
	return ClassServer
}

// TransportError is a network-level failure: no response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// ClassOf returns the class of the first APIError or TransportError in err's chain.
func ClassOf(err error) Class {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Class()
	}
	var te *TransportError
	if errors.As(err, &te) {
		return ClassTransport
	}
	return ClassNone
}

// do sends one authenticated JSON request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.endpoint + path
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, url, err)
	}
	reqID := uuid.NewString()
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + url + " read body", Err: err}
	}
	if resp.StatusCode/100 != 2 { //nolint:mnd
		if !IsHandledStatus(resp.StatusCode) {
			log.WithFunc("skytap.do").Warnf(ctx, "unexpected status %d for %s %s (request %s)", resp.StatusCode, method, url, reqID)
		}
		return nil, &APIError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("Status %d: %s %s: %s", resp.StatusCode, method, url, bytes.TrimSpace(rb)),
		}
	}
	return rb, nil
}
