// Package httpkit provides handler and routing helpers that alias the platform http package
// use these from modules so they do not import internal/platform/net/http directly
package httpkit

import (
	"net/http"

	phttp "marketfeed/internal/platform/net/http"
	"marketfeed/internal/platform/net/http/bind"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Attachment returns a raw download response
func Attachment(filename, contentType string, data []byte) Response {
	return phttp.Attachment(filename, contentType, data)
}

// JSON decodes and validates T with opts, calls fn, and wraps the result
// fn may return a Response to control status or headers
func JSON[T any](opts bind.JSONOptions, fn func(*http.Request, T) (any, error)) Handler {
	return phttp.JSONHandler(opts, fn)
}

// Call adapts a handler that takes no JSON body
func Call(fn func(*http.Request) (any, error)) Handler { return phttp.JSONHandlerNoBody(fn) }

// Handle lets you directly adapt a Response-returning function
func Handle(fn func(*http.Request) Response) Handler { return phttp.Handle(fn) }
