package gateway

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// CallbackRequest wraps one inbound webhook for the lifetime of its HTTP
// request. The body is captured exactly once at construction (webhook bodies
// are single-read streams, and upstream middleware may already have consumed
// them), and parse-plus-verify results are memoized per gateway so that a
// "find the order" phase and a "process the payment" phase see the identical
// event without a second signature check.
//
// The cache lives on this request-scoped struct on purpose: a module-level
// cache would leak events across requests.
type CallbackRequest struct {
	header http.Header
	query  url.Values
	form   url.Values
	body   []byte

	events map[string]*cachedEvent
}

type cachedEvent struct {
	event any
	err   error
}

// NewCallbackRequest captures the raw body and, for form-encoded callbacks,
// the posted fields. The request body is read here and nowhere else.
func NewCallbackRequest(r *http.Request) (*CallbackRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "application/x-www-form-urlencoded" {
		form, err = url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
	}

	return &CallbackRequest{
		header: r.Header,
		query:  r.URL.Query(),
		body:   body,
		form:   form,
		events: map[string]*cachedEvent{},
	}, nil
}

// NewCallbackRequestFromParts builds a request without an *http.Request;
// used by tests and by callers that captured the body upstream.
func NewCallbackRequestFromParts(header http.Header, query, form url.Values, body []byte) *CallbackRequest {
	if header == nil {
		header = http.Header{}
	}
	if query == nil {
		query = url.Values{}
	}
	if form == nil {
		form = url.Values{}
	}
	return &CallbackRequest{
		header: header,
		query:  query,
		form:   form,
		body:   body,
		events: map[string]*cachedEvent{},
	}
}

func (r *CallbackRequest) Body() []byte {
	return r.body
}

func (r *CallbackRequest) Header(name string) string {
	return strings.TrimSpace(r.header.Get(name))
}

// Field returns a posted form field, falling back to the query string for
// gateways that redirect the customer's browser with callback parameters.
func (r *CallbackRequest) Field(name string) string {
	if value := strings.TrimSpace(r.form.Get(name)); value != "" {
		return value
	}
	return strings.TrimSpace(r.query.Get(name))
}

// Fields flattens form and query parameters into the field map
// canonicalization runs over. Form fields win on name collision.
func (r *CallbackRequest) Fields() map[string]string {
	fields := make(map[string]string, len(r.form)+len(r.query))
	for name, values := range r.query {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}
	for name, values := range r.form {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}
	return fields
}

// Event returns the parsed webhook event for the given gateway, invoking
// parse at most once per request. The outcome is memoized even when parse
// fails, so an untrusted callback is signature-checked exactly once too.
func (r *CallbackRequest) Event(gatewayCode string, parse func() (any, error)) (any, error) {
	if cached, ok := r.events[gatewayCode]; ok {
		return cached.event, cached.err
	}

	event, err := parse()
	r.events[gatewayCode] = &cachedEvent{event: event, err: err}
	return event, err
}
