package repo

import (
	"context"
	"errors"
	"time"

	"marketfeed/internal/core/feed"
	"marketfeed/internal/platform/store"
)

// UpdatesTable receives one row per market update
const UpdatesTable = "market_updates"

const updatesDDL = `
CREATE TABLE IF NOT EXISTS market_updates (
	file           String,
	market_id      String,
	seq            UInt32,
	has_definition UInt8,
	payload        String,
	ingested_at    DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (market_id, file, seq)`

var updateColumns = []string{"file", "market_id", "seq", "has_definition", "payload", "ingested_at"}

// Sink writes reconstructed updates to ClickHouse
type Sink struct {
	ch    store.Clickhouse
	now   func() time.Time
	batch int
}

// NewSink creates the table when missing
func NewSink(ctx context.Context, ch store.Clickhouse) (*Sink, error) {
	if ch == nil {
		return nil, errors.New("update sink: clickhouse is not enabled")
	}
	if err := ch.Exec(ctx, updatesDDL); err != nil {
		return nil, err
	}
	return &Sink{ch: ch, now: time.Now, batch: 5000}, nil
}

// WriteUpdates inserts every update of res in market then input order
func (s *Sink) WriteUpdates(ctx context.Context, source string, res *feed.ParseResult) error {
	if res == nil {
		return nil
	}
	at := s.now().UTC()
	rows := make([][]any, 0, min(res.UpdateCount(), s.batch))
	var err error
	res.Each(func(m *feed.MarketAggregate) {
		def := uint8(0)
		if m.HasDefinition() {
			def = 1
		}
		for i, u := range m.Updates {
			if err != nil {
				return
			}
			rows = append(rows, []any{source, m.MarketID, uint32(i), def, string(u), at})
			if len(rows) == s.batch {
				err = s.ch.Insert(ctx, UpdatesTable, updateColumns, rows)
				rows = rows[:0]
			}
		}
	})
	if err != nil {
		return err
	}
	return s.ch.Insert(ctx, UpdatesTable, updateColumns, rows)
}
