package store

import (
	"marketfeed/internal/platform/config"
	"marketfeed/internal/platform/store/blob"
)

// ConfigFromEnv reads backend settings from CORE_FILES_*, SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_*
// Postgres opens when the pg file backend is selected or a DBURL is set; ClickHouse only for the update sink
func ConfigFromEnv(root config.Conf, appName, role string) Config {
	fc := root.Prefix("CORE_FILES_")
	pc := root.Prefix("SERVICE_PGSQL_")
	cc := root.Prefix("SERVICE_CLICKHOUSE_")

	backend := fc.MayEnum("BACKEND", blob.BackendLocal,
		blob.BackendLocal, blob.BackendBadger, blob.BackendGCS, blob.BackendPG)

	cfg := Config{
		AppName: appName,
		Blob: BlobConfig{
			Backend:        backend,
			Root:           fc.MayString("ROOT", "./storage"),
			BadgerPath:     fc.MayString("BADGER_PATH", "./storage/badger"),
			GCSBucket:      fc.MayString("GCS_BUCKET", "betfair-parser-files"),
			GCSCredentials: fc.MayString("GCS_CREDENTIALS", ""),
		},
	}

	if backend == blob.BackendPG || pc.MayString("DBURL", "") != "" {
		cfg.PG = PGConfig{
			Enabled:     true,
			URL:         pc.MustString("DBURL"),
			MaxConns:    int32(pc.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pc.MayInt("SLOW_MS", 500),
			LogSQL:      pc.MayBool("LOG_SQL", false),
		}
	}
	if fc.MayBool("CH_SINK", false) {
		cfg.CH = CHConfig{
			Enabled: true,
			URL:     cc.MustString("DBURL"),
			Role:    role,
			Tag:     cc.MayString("TAG", ""),
		}
	}
	return cfg
}
