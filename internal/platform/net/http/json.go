package http

import (
	"net/http"

	"marketfeed/internal/platform/net/http/bind"
)

// JSONHandler decodes and validates T with opts, calls fn and answers with the envelope
func JSONHandler[T any](opts bind.JSONOptions, fn func(*http.Request, T) (any, error)) Handler {
	return Handle(func(r *http.Request) Response {
		in, err := bind.ParseJSON[T](r, opts)
		if err != nil {
			return Error(err)
		}
		return Result(fn(r, in))
	})
}

// JSONHandlerNoBody calls fn without reading the body
func JSONHandlerNoBody(fn func(*http.Request) (any, error)) Handler {
	return Handle(func(r *http.Request) Response { return Result(fn(r)) })
}

// Result maps a handler return to a Response; a returned Response passes through untouched
func Result(out any, err error) Response {
	if err != nil {
		return Error(err)
	}
	if resp, ok := out.(Response); ok {
		return resp
	}
	return OK(out)
}
