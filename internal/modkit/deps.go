// Package modkit provides module wiring and core deps
package modkit

import (
	"marketfeed/internal/modkit/repokit"
	"marketfeed/internal/platform/config"
	"marketfeed/internal/platform/logger"
	"marketfeed/internal/platform/metrics"
	"marketfeed/internal/platform/store"
	"marketfeed/internal/platform/store/blob"
)

// Deps holds core dependencies passed to modules
// optional seams are nil when their backend is disabled
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Blobs   blob.Store
	Metrics *metrics.Metrics
}

// FromStore copies the open seams of s into a Deps
func FromStore(s *store.Store, cfg config.Conf, m *metrics.Metrics) Deps {
	return Deps{Log: s.Log, Cfg: cfg, PG: s.PG, CH: s.CH, Blobs: s.Blobs, Metrics: m}
}
