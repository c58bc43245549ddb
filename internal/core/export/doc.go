// Package export renders reconstructed markets as json, csv, xlsx or parquet
//
// Tabular formats share Flatten: one row per market with market_id, update_count and the
// updates array as JSON text, followed by the definition flattened into dotted columns.
// Parquet uses a fixed four column schema instead so files from different feeds line up.
package export
