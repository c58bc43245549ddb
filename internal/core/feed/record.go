package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Record is one decoded feed line
// only the three keys the fold interprets are lifted out, the rest stays in Raw
type Record struct {
	MarketID string

	MC    json.RawMessage
	HasMC bool

	MarketDefinition json.RawMessage
	HasDefinition    bool

	// Raw is the whole line as it appeared in the input
	Raw json.RawMessage
}

// Keyed reports whether the record carries a usable market identifier
func (r Record) Keyed() bool { return r.MarketID != "" }

// SkipReason explains why a line produced no record
type SkipReason string

const (
	// ReasonInvalidJSON marks a line that is not a single JSON value
	ReasonInvalidJSON SkipReason = "invalid_json"
)

// LineOutcome is the per line result of decoding: either Record or a skip reason
type LineOutcome struct {
	Line    int
	Record  Record
	Skipped bool
	Reason  SkipReason
	Detail  string
}

// DecodeLine decodes a single trimmed, non blank line
// valid JSON that is not an object still decodes, it just has no keys
func DecodeLine(lineNo int, line []byte) LineOutcome {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return LineOutcome{Line: lineNo, Skipped: true, Reason: ReasonInvalidJSON, Detail: err.Error()}
		}
		return LineOutcome{Line: lineNo, Record: Record{Raw: line}}
	}

	rec := Record{Raw: line}
	if id, ok := marketKey(obj["marketId"]); ok {
		rec.MarketID = id
	} else if id, ok := marketKey(obj["id"]); ok {
		rec.MarketID = id
	}
	if v, ok := obj["mc"]; ok {
		rec.MC, rec.HasMC = v, true
	}
	if v, ok := obj["marketDefinition"]; ok {
		rec.MarketDefinition, rec.HasDefinition = v, true
	}
	return LineOutcome{Line: lineNo, Record: rec}
}

// marketKey turns an identifier value into a map key
// accepted: non empty strings and non zero numbers; anything else is not truthy enough to key on
func marketKey(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || f == 0 {
			return "", false
		}
		return string(raw), true
	default:
		return "", false
	}
}
