package feed

import (
	"bytes"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// maxSkipSamples bounds both the skip samples kept on a Report and the per line warnings logged
	maxSkipSamples = 20
	sampleRawMax   = 256
)

// Skip is one sampled skipped line
type Skip struct {
	Line   int        `json:"line"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// Report summarizes how a buffer decoded
// Lines counts non blank lines; Parsed + Skipped == Lines
type Report struct {
	Lines       int    `json:"lines"`
	Parsed      int    `json:"parsed"`
	Skipped     int    `json:"skipped"`
	Unkeyed     int    `json:"unkeyed"`
	InvalidUTF8 bool   `json:"invalid_utf8,omitempty"`
	Samples     []Skip `json:"samples,omitempty"`
}

func (rp *Report) add(out LineOutcome) {
	rp.Lines++
	if !out.Skipped {
		rp.Parsed++
		return
	}
	rp.Skipped++
	if len(rp.Samples) < maxSkipSamples {
		rp.Samples = append(rp.Samples, Skip{Line: out.Line, Reason: out.Reason, Detail: out.Detail})
	}
}

// Reconstructor folds newline delimited feed records into per market aggregates
type Reconstructor struct {
	log zerolog.Logger
}

// NewReconstructor builds a Reconstructor; a nil logger means no logging
func NewReconstructor(log *zerolog.Logger) *Reconstructor {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Reconstructor{log: *log}
}

var defaultReconstructor = NewReconstructor(nil)

// Reconstruct runs the package default Reconstructor
func Reconstruct(data []byte) (*ParseResult, *Report) {
	return defaultReconstructor.Reconstruct(data)
}

// Reconstruct decodes data line by line and folds the records in input order
// It never fails: invalid UTF-8 yields an empty result, malformed lines are skipped
func (rc *Reconstructor) Reconstruct(data []byte) (*ParseResult, *Report) {
	res := NewParseResult()
	rep := &Report{}

	if !utf8.Valid(data) {
		rep.InvalidUTF8 = true
		rc.log.Error().Int("bytes", len(data)).Msg("feed: could not decode buffer as UTF-8")
		return res, rep
	}

	// the decoder drops a leading byte order mark and hands back our own copy,
	// so records can reference it without pinning the caller's buffer
	text, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		text = bytes.Clone(data)
	}
	text = bytes.TrimSpace(text)

	lineNo := 0
	for len(text) > 0 {
		var line []byte
		if i := bytes.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			line, text = text, nil
		}
		lineNo++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		out := DecodeLine(lineNo, line)
		rep.add(out)
		if out.Skipped {
			if rep.Skipped <= maxSkipSamples {
				rc.log.Warn().
					Int("line", out.Line).
					Str("reason", string(out.Reason)).
					Str("detail", out.Detail).
					Str("sample_raw", truncate(line, sampleRawMax)).
					Msg("feed: skipping invalid JSON line")
			}
			continue
		}

		res.RecordCount++
		if !res.fold(out.Record) {
			rep.Unkeyed++
		}
	}
	res.MarketCount = len(res.Markets)

	if rep.Skipped > 0 {
		rc.log.Warn().
			Int("lines", rep.Lines).
			Int("skipped", rep.Skipped).
			Msg("feed: buffer had invalid lines")
	}
	rc.log.Debug().
		Int("records", res.RecordCount).
		Int("markets", res.MarketCount).
		Int("unkeyed", rep.Unkeyed).
		Msg("feed: reconstructed")
	return res, rep
}

// truncate cuts b to at most max bytes on a rune boundary
func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	i := max
	for i > 0 && !utf8.RuneStart(b[i]) {
		i--
	}
	return string(b[:i]) + "..."
}
