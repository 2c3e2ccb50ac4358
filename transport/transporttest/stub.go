// Package transporttest provides a scripted transport.Getter for adapter
// tests, so no test ever opens a real socket.
package transporttest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/quantfetch/perpdata/transport"
)

// Handler produces the response for one stubbed request.
type Handler func(ctx context.Context, rawURL string, params url.Values) (*transport.Response, error)

// Call records one request routed through the stub.
type Call struct {
	URL    string
	Params url.Values
}

// Stub implements transport.Getter from a Handler and records every call.
// It is safe for concurrent use.
type Stub struct {
	mu      sync.Mutex
	handler Handler
	calls   []Call
}

// New builds a Stub. A nil handler answers every request with HTTP 200 and
// an empty JSON object.
func New(handler Handler) *Stub {
	if handler == nil {
		handler = RespondJSON(http.StatusOK, `{}`)
	}
	return &Stub{handler: handler}
}

// Get records the call and delegates to the handler.
func (s *Stub) Get(ctx context.Context, rawURL string, params url.Values) (*transport.Response, error) {
	s.mu.Lock()
	copied := url.Values{}
	for key, values := range params {
		copied[key] = append([]string(nil), values...)
	}
	s.calls = append(s.calls, Call{URL: rawURL, Params: copied})
	handler := s.handler
	s.mu.Unlock()

	return handler(ctx, rawURL, params)
}

// Calls returns a copy of every recorded call in order.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of requests seen so far.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastCall returns the most recent call, or false when none was made.
func (s *Stub) LastCall() (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return Call{}, false
	}
	return s.calls[len(s.calls)-1], true
}

// RespondJSON answers every request with the given status and body.
func RespondJSON(status int, body string) Handler {
	return func(ctx context.Context, rawURL string, params url.Values) (*transport.Response, error) {
		return &transport.Response{StatusCode: status, Body: []byte(body)}, nil
	}
}

// RespondError fails every request with err, as a transport-level failure.
func RespondError(err error) Handler {
	return func(ctx context.Context, rawURL string, params url.Values) (*transport.Response, error) {
		return nil, err
	}
}

// Route dispatches on the request URL path. Requests for paths without an
// entry fail the exchange with an error naming the path.
func Route(routes map[string]Handler) Handler {
	return func(ctx context.Context, rawURL string, params url.Values) (*transport.Response, error) {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		handler, ok := routes[parsed.Path]
		if !ok {
			return nil, fmt.Errorf("no stub route for path %s", parsed.Path)
		}
		return handler(ctx, rawURL, params)
	}
}
