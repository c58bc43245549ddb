package httpkit

import (
	"net/http"

	"marketfeed/internal/platform/net/http/bind"
)

// BodyLimit caps JSON request bodies mounted through PostJSON
const BodyLimit = 1 << 20

// Get registers a no-body handler and uses the envelope adapter
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// Post registers a POST whose body is ignored
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, Call(h))
}

// PostJSON mounts a JSON handler under POST; a body is required
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSON(bind.JSONOptions{MaxBytes: BodyLimit, DisallowUnknown: true}, h))
}

// PostOptionalJSON mounts a JSON handler under POST where an empty body decodes to the zero T
func PostOptionalJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSON(bind.JSONOptions{MaxBytes: BodyLimit, DisallowUnknown: true, AllowEmptyBody: true}, h))
}
