package httpkit

import (
	"net/http"
	"time"

	"marketfeed/internal/platform/metrics"
	"marketfeed/internal/platform/net/middleware"
)

// StackOptions tunes CommonStack
type StackOptions struct {
	CORSOrigins []string
	SlowRequest time.Duration // access log warns above this, default 2s
	Metrics     *metrics.Metrics
}

// CommonStack returns the root middleware slice; the access log sits outside the recoverer so panics log as 500
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	slow := o.SlowRequest
	if slow <= 0 {
		slow = 2 * time.Second
	}
	stack := middleware.Defaults()
	return append(stack,
		middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: slow, Observe: o.Metrics.ObserveHTTP}),
		middleware.RecoverJSON,
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.CORSOrigins}),
	)
}
