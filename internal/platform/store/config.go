package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG   PGConfig
	CH   CHConfig
	Blob BlobConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot knobs
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string // reported in client info, e.g. "api" or "parse"
	Tag     string
}

// BlobConfig selects and configures the file backend
type BlobConfig struct {
	Backend        string // local, badger, gcs or any name registered with WithBlobFactory
	Root           string
	BadgerPath     string
	GCSBucket      string
	GCSCredentials string // service account JSON; empty uses application default credentials
}
