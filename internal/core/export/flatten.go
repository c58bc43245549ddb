package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"marketfeed/internal/core/feed"
)

// fixed leading columns, definition keys follow in first seen order
const (
	ColMarketID    = "market_id"
	ColUpdateCount = "update_count"
	ColUpdates     = "updates"
	ColDefinition  = "definition"
)

// Table is a rectangular view of a parse result, one row per market
type Table struct {
	Columns []string
	Rows    [][]string
}

// Flatten turns each market into a row
// nested definition objects become dotted columns; arrays are kept as JSON text
func Flatten(res *feed.ParseResult) (*Table, error) {
	cols := newColumns(ColMarketID, ColUpdateCount, ColUpdates)
	var cells []map[string]string

	var err error
	res.Each(func(m *feed.MarketAggregate) {
		if err != nil {
			return
		}
		row := map[string]string{
			ColMarketID:    m.MarketID,
			ColUpdateCount: strconv.Itoa(len(m.Updates)),
		}
		updates, merr := json.Marshal(m.Updates)
		if merr != nil {
			err = fmt.Errorf("export: market %s updates: %w", m.MarketID, merr)
			return
		}
		row[ColUpdates] = string(updates)

		if !m.HasDefinition() {
			cols.add(ColDefinition)
			row[ColDefinition] = ""
		} else if ferr := flattenValue(m.Definition, ColDefinition, func(k, v string) {
			cols.add(k)
			row[k] = v
		}); ferr != nil {
			err = fmt.Errorf("export: market %s definition: %w", m.MarketID, ferr)
			return
		}
		cells = append(cells, row)
	})
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols.names, Rows: make([][]string, 0, len(cells))}
	for _, c := range cells {
		row := make([]string, len(t.Columns))
		for i, name := range t.Columns {
			row[i] = c[name]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

type columns struct {
	names []string
	seen  map[string]struct{}
}

func newColumns(names ...string) *columns {
	c := &columns{seen: map[string]struct{}{}}
	for _, n := range names {
		c.add(n)
	}
	return c
}

func (c *columns) add(name string) {
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.names = append(c.names, name)
}

// flattenValue walks raw and emits one cell per leaf
func flattenValue(raw json.RawMessage, prefix string, emit func(k, v string)) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		emit(prefix, "")
		return nil
	}
	switch raw[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := tok.(string)
			var child json.RawMessage
			if err := dec.Decode(&child); err != nil {
				return err
			}
			if err := flattenValue(child, prefix+"."+key, emit); err != nil {
				return err
			}
		}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		emit(prefix, s)
		return nil
	case 'n':
		emit(prefix, "")
		return nil
	case '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		emit(prefix, buf.String())
		return nil
	default:
		// numbers and booleans keep their literal text
		emit(prefix, string(raw))
		return nil
	}
}
