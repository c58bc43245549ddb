package store

import (
	"errors"

	"marketfeed/internal/platform/logger"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by subclients
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithBlobFactory registers a blob backend under name, replacing a builtin of the same name
func WithBlobFactory(name string, f BlobFactory) Option {
	return func(s *Store) error {
		if name == "" || f == nil {
			return errors.New("store: blob factory needs a name and a func")
		}
		if s.factories == nil {
			s.factories = map[string]BlobFactory{}
		}
		s.factories[name] = f
		return nil
	}
}
