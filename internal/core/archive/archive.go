package archive

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Method names the attempt that produced a canonical buffer
type Method string

const (
	// MethodPassthrough means the input bytes were returned unchanged
	MethodPassthrough Method = "passthrough"
	// MethodBzip2 is a single bzip2 stream
	MethodBzip2 Method = "bzip2"
	// MethodGzip is a single gzip stream
	MethodGzip Method = "gzip"
	// MethodTar is the first member of a tar archive
	MethodTar Method = "tar"
	// MethodZip is the first entry of a zip archive
	MethodZip Method = "zip"
)

var (
	errNoMembers = errors.New("archive: no regular members")
	errTooLarge  = errors.New("archive: expanded size exceeds limit")
)

// Result is the outcome of Normalize
// Err carries the last extraction failure when the bytes fell back to passthrough
type Result struct {
	Data   []byte
	Method Method
	Member string
	Err    error
}

// Normalizer dispatches on filename suffix and extracts the canonical buffer
type Normalizer struct {
	log      zerolog.Logger
	maxBytes int64
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithLogger sets the logger used for extraction failures
func WithLogger(l zerolog.Logger) Option {
	return func(n *Normalizer) { n.log = l }
}

// WithMaxSize caps the expanded size of any single attempt, zero disables the cap
func WithMaxSize(maxBytes int64) Option {
	return func(n *Normalizer) { n.maxBytes = maxBytes }
}

// New builds a Normalizer, the zero config logs nothing and has no size cap
func New(opts ...Option) *Normalizer {
	n := &Normalizer{log: zerolog.Nop()}
	for _, o := range opts {
		o(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize runs the package default Normalizer
func Normalize(data []byte, filename string) Result {
	return defaultNormalizer.Normalize(data, filename)
}

// Normalize returns the canonical buffer for data named filename
// Attempts run in priority order (bz2, gz, tar, zip) and only when their suffix matches
func (n *Normalizer) Normalize(data []byte, filename string) Result {
	lower := strings.ToLower(strings.TrimSpace(filename))

	var lastErr error
	for _, a := range attempts {
		if !a.match(lower) {
			continue
		}
		out, member, err := a.run(n, data)
		if err == nil {
			return Result{Data: out, Method: a.method, Member: member}
		}
		lastErr = err
		n.log.Error().
			Err(err).
			Str("filename", filename).
			Str("method", string(a.method)).
			Int("bytes", len(data)).
			Msg("archive: extraction failed")
	}

	if lastErr != nil {
		n.log.Warn().
			Str("filename", filename).
			Msg("archive: passing original bytes through")
	}
	return Result{Data: data, Method: MethodPassthrough, Err: lastErr}
}

// Detect reports which method Normalize would try first for filename
func Detect(filename string) Method {
	lower := strings.ToLower(strings.TrimSpace(filename))
	for _, a := range attempts {
		if a.match(lower) {
			return a.method
		}
	}
	return MethodPassthrough
}
