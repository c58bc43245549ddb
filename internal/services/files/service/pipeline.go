package service

import (
	"encoding/json"
	"time"

	"marketfeed/internal/core/archive"
	"marketfeed/internal/core/feed"
	"marketfeed/internal/platform/logger"
	"marketfeed/internal/platform/metrics"
	pstrings "marketfeed/internal/platform/strings"
)

// ParsedSuffix is appended to the base name of every parsed document
const ParsedSuffix = "_parsed.json"

// ParsedName maps an uploaded name to its parsed document name
func ParsedName(uploaded string) string { return pstrings.TrimLastExt(uploaded) + ParsedSuffix }

// Parsed is one file run through normalize and reconstruct
type Parsed struct {
	Result   *feed.ParseResult
	Report   *feed.Report
	Method   archive.Method
	Document []byte
}

// Pipeline turns raw uploaded bytes into a parsed document
// shared by the API service and the offline parser
type Pipeline struct {
	norm    *archive.Normalizer
	rec     *feed.Reconstructor
	metrics *metrics.Metrics
}

// NewPipeline builds a pipeline; maxExpanded caps decompressed size, zero is unlimited
func NewPipeline(maxExpanded int64, m *metrics.Metrics) *Pipeline {
	alog := logger.Named("archive")
	flog := logger.Named("feed")
	return &Pipeline{
		norm:    archive.New(archive.WithLogger(*alog), archive.WithMaxSize(maxExpanded)),
		rec:     feed.NewReconstructor(flog),
		metrics: m,
	}
}

// Run normalizes data named filename, reconstructs it and encodes the parsed document
func (p *Pipeline) Run(filename string, data []byte) (Parsed, error) {
	nr := p.norm.Normalize(data, filename)
	p.metrics.Archive(string(nr.Method))

	start := time.Now()
	res, rep := p.rec.Reconstruct(nr.Data)
	p.metrics.Parsed(time.Since(start), res.MarketCount)
	p.metrics.Lines("parsed", rep.Parsed)
	p.metrics.Lines("skipped", rep.Skipped)
	p.metrics.Lines("unkeyed", rep.Unkeyed)
	if rep.InvalidUTF8 {
		p.metrics.Lines("invalid_utf8", 1)
	}

	doc, err := json.Marshal(res)
	if err != nil {
		return Parsed{}, err
	}
	return Parsed{Result: res, Report: rep, Method: nr.Method, Document: doc}, nil
}
