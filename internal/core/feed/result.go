package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var jsonNull = []byte("null")

// MarketAggregate is everything the feed said about one market
// Updates keep input order; Definition is the last snapshot seen, nil when none was
type MarketAggregate struct {
	MarketID   string            `json:"market_id"`
	Updates    []json.RawMessage `json:"updates"`
	Definition json.RawMessage   `json:"definition"`
}

// HasDefinition reports whether a definition snapshot was captured
func (m *MarketAggregate) HasDefinition() bool { return m.Definition != nil }

// ParseResult is the reconstructed view of one feed file
// Markets iterates in first seen order through MarketIDs
type ParseResult struct {
	MarketCount int
	RecordCount int
	Markets     map[string]*MarketAggregate

	order []string
}

// NewParseResult returns an empty result
func NewParseResult() *ParseResult {
	return &ParseResult{Markets: map[string]*MarketAggregate{}}
}

// MarketIDs returns market ids in the order they first appeared
func (r *ParseResult) MarketIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Market looks up one aggregate
func (r *ParseResult) Market(id string) (*MarketAggregate, bool) {
	m, ok := r.Markets[id]
	return m, ok
}

// Each calls fn for every market in first seen order
func (r *ParseResult) Each(fn func(*MarketAggregate)) {
	for _, id := range r.order {
		fn(r.Markets[id])
	}
}

// UpdateCount sums updates across markets
func (r *ParseResult) UpdateCount() int {
	n := 0
	for _, m := range r.Markets {
		n += len(m.Updates)
	}
	return n
}

// fold applies one record to the aggregate map and reports whether it was keyed
func (r *ParseResult) fold(rec Record) bool {
	if !rec.Keyed() {
		return false
	}
	m, ok := r.Markets[rec.MarketID]
	if !ok {
		m = &MarketAggregate{MarketID: rec.MarketID, Updates: []json.RawMessage{}}
		r.Markets[rec.MarketID] = m
		r.order = append(r.order, rec.MarketID)
	}
	if rec.HasMC {
		m.Updates = append(m.Updates, rec.Raw)
	}
	if rec.HasDefinition {
		m.Definition = rec.MarketDefinition
		if bytes.Equal(m.Definition, jsonNull) {
			m.Definition = nil
		}
	}
	return true
}

// wire shape of the parsed document
// {"market_count":n,"record_count":n,"markets":{"id":{...}}}

// MarshalJSON writes markets in first seen order
func (r *ParseResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"market_count":%d,"record_count":%d,"markets":{`, r.MarketCount, r.RecordCount)
	for i, id := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Markets[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a parsed document back, keeping the markets object order
func (r *ParseResult) UnmarshalJSON(b []byte) error {
	var doc struct {
		MarketCount int             `json:"market_count"`
		RecordCount int             `json:"record_count"`
		Markets     json.RawMessage `json:"markets"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*r = ParseResult{MarketCount: doc.MarketCount, RecordCount: doc.RecordCount, Markets: map[string]*MarketAggregate{}}
	if len(doc.Markets) == 0 || bytes.Equal(bytes.TrimSpace(doc.Markets), jsonNull) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Markets))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("feed: markets must be an object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var m MarketAggregate
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("feed: market %q: %w", id, err)
		}
		if m.MarketID == "" {
			m.MarketID = id
		}
		if m.Updates == nil {
			m.Updates = []json.RawMessage{}
		}
		if bytes.Equal(m.Definition, jsonNull) {
			m.Definition = nil
		}
		if _, dup := r.Markets[id]; !dup {
			r.order = append(r.order, id)
		}
		r.Markets[id] = &m
	}
	return nil
}
