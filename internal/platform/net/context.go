// Package net carries request scoped values shared by transports and offline runs
package net

import (
	"context"

	"marketfeed/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// NewRequestID returns a fresh id for work that did not arrive over http
func NewRequestID() string { return uuid.NewString() }

// WithRequest stores reqID where chimw.GetReqID and logger.C can find it
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return logger.WithRequest(context.WithValue(ctx, chimw.RequestIDKey, reqID), reqID)
}

// EnsureRequest returns ctx with a request id, minting one when absent
func EnsureRequest(ctx context.Context) (context.Context, string) {
	if id := RequestID(ctx); id != "" {
		return ctx, id
	}
	id := NewRequestID()
	return WithRequest(ctx, id), id
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}
