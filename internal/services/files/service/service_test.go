package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"marketfeed/internal/core/export"
	"marketfeed/internal/core/feed"
	perr "marketfeed/internal/platform/errors"
	"marketfeed/internal/platform/metrics"
	"marketfeed/internal/platform/store/blob"
	"marketfeed/internal/platform/testkit"
	dom "marketfeed/internal/services/files/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var feedLines = strings.Join([]string{
	`{"op":"mcm","marketId":"1.1","mc":[{"id":"1.1"}],"marketDefinition":{"status":"OPEN","eventId":"29"}}`,
	`{"op":"mcm","marketId":"1.2","mc":[]}`,
	`not json`,
	`{"op":"mcm","marketId":"1.1","mc":[{"id":"1.1","rc":[]}]}`,
}, "\n")

var fixed = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, opts ...Option) (*Service, blob.Store) {
	t.Helper()
	store, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return New(store, Config{Workers: 2}, opts...), store
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"1.234.bz2":          "1.234.bz2",
		"dir/sub/1.234.bz2":  "1.234.bz2",
		`C:\feeds\1.234.bz2`: "1.234.bz2",
	} {
		got, err := SanitizeName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "  ", "..", "a/.."} {
		_, err := SanitizeName(bad)
		assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), bad)
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.234_parsed.json", ParsedName("1.234.bz2"))
	assert.Equal(t, "feed.tar_parsed.json", ParsedName("feed.tar.gz"))
	assert.Equal(t, "plain_parsed.json", ParsedName("plain"))
	assert.Equal(t, "1.234_export.csv", ExportName("1.234_parsed.json", export.FormatCSV))
}

func TestUpload(t *testing.T) {
	t.Parallel()

	s, store := newService(t)
	b := s.Upload(context.Background(), []dom.Upload{
		{Filename: "nested/1.1.gz", Data: []byte("abc")},
		{Filename: "..", Data: []byte("x")},
	})

	assert.Equal(t, 2, b.Total)
	assert.Equal(t, 1, b.Successful)
	assert.Equal(t, dom.UploadResult{Filename: "1.1.gz", SizeBytes: 3, Status: dom.StatusUploaded, Timestamp: &fixed}, b.Results[0])
	assert.Equal(t, dom.StatusError, b.Results[1].Status)
	assert.NotEmpty(t, b.Results[1].Error)

	ok, err := store.Exists(context.Background(), blob.Uploaded, "1.1.gz")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParse_AllUploadedAndRequestOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := metrics.New()
	s, store := newService(t, WithMetrics(m))
	require.NoError(t, store.Put(ctx, blob.Uploaded, "1.1.gz", testkit.Gzip(t, feedLines)))
	require.NoError(t, store.Put(ctx, blob.Uploaded, "plain.json", []byte(feedLines)))

	all, err := s.Parse(ctx, dom.ParseInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)
	assert.Equal(t, 2, all.Successful)

	b, err := s.Parse(ctx, dom.ParseInput{Files: []string{"missing.bz2", "1.1.gz", "plain.json"}})
	require.NoError(t, err)
	require.Len(t, b.Results, 3)
	assert.Equal(t, 2, b.Successful)
	assert.Equal(t, dom.ParseOutcome{Filename: "missing.bz2", Status: dom.StatusError, Error: "File not found"}, b.Results[0])

	gz := b.Results[1]
	assert.Equal(t, "1.1.gz", gz.Filename)
	assert.Equal(t, dom.StatusSuccess, gz.Status)
	assert.Equal(t, "1.1_parsed.json", gz.OutputFile)
	assert.Equal(t, "gzip", gz.Archive)
	assert.Equal(t, 2, gz.MarketsParsed)
	assert.Equal(t, 1, gz.LinesSkipped)
	assert.Equal(t, &fixed, gz.ParseTimestamp)
	assert.Equal(t, "passthrough", b.Results[2].Archive)

	doc, err := store.Get(ctx, blob.Parsed, "1.1_parsed.json")
	require.NoError(t, err)
	var res feed.ParseResult
	require.NoError(t, json.Unmarshal(doc, &res))
	assert.Equal(t, []string{"1.1", "1.2"}, res.MarketIDs())
	assert.Equal(t, gz.RecordsParsed, res.RecordCount)

	want := `
# HELP marketfeed_files_total Files handled by operation and outcome.
# TYPE marketfeed_files_total counter
marketfeed_files_total{op="parse",status="error"} 1
marketfeed_files_total{op="parse",status="success"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "marketfeed_files_total"))
}

func TestParse_EmptyFeedReportsZeroCounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, store := newService(t)
	require.NoError(t, store.Put(ctx, blob.Uploaded, "empty.json", []byte("\n\n")))

	b, err := s.Parse(ctx, dom.ParseInput{Files: []string{"empty.json"}})
	require.NoError(t, err)
	require.Len(t, b.Results, 1)
	assert.Equal(t, dom.StatusSuccess, b.Results[0].Status)

	raw, err := json.Marshal(b.Results[0])
	require.NoError(t, err)
	testkit.MustContain(t, string(raw), `"records_parsed":0`)
	testkit.MustContain(t, string(raw), `"markets_parsed":0`)
}

type recSink struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (r *recSink) WriteUpdates(_ context.Context, source string, _ *feed.ParseResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
	return r.err
}

func TestParse_SinkFailureDoesNotFailFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &recSink{err: errors.New("clickhouse down")}
	s, store := newService(t, WithSink(sink))
	require.NoError(t, store.Put(ctx, blob.Uploaded, "a.json", []byte(feedLines)))

	b, err := s.Parse(ctx, dom.ParseInput{Files: []string{"a.json"}})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Successful)
	assert.Equal(t, []string{"a.json"}, sink.sources)
}

func TestParse_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newService(t)
	_, err := s.Parse(ctx, dom.ParseInput{Files: []string{"a.json"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func parsedFixture(t *testing.T) (*Service, blob.Store) {
	t.Helper()
	s, store := newService(t)
	require.NoError(t, store.Put(context.Background(), blob.Uploaded, "1.1.bz2.json", []byte(feedLines)))
	_, err := s.Parse(context.Background(), dom.ParseInput{})
	require.NoError(t, err)
	return s, store
}

func TestExport_Formats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, store := parsedFixture(t)
	no := false

	b, err := s.Export(ctx, dom.ExportInput{Files: []string{"1.1.bz2.json"}, Format: "csv"})
	require.NoError(t, err)
	require.Equal(t, 1, b.Successful)
	out := b.Results[0]
	assert.Equal(t, "1.1.bz2_parsed.json", out.Filename)
	assert.Equal(t, "1.1.bz2_export.csv", out.OutputFile)
	assert.Equal(t, "csv", out.Format)
	csv, err := store.Get(ctx, blob.Exported, out.OutputFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv), "market_id,update_count,updates"))

	b, err = s.Export(ctx, dom.ExportInput{Files: []string{"1.1.bz2_parsed.json"}, IncludeMetadata: &no})
	require.NoError(t, err)
	assert.Equal(t, "json", b.Results[0].Format)
	raw, err := store.Get(ctx, blob.Exported, "1.1.bz2_export.json")
	require.NoError(t, err)
	parsed, err := store.Get(ctx, blob.Parsed, "1.1.bz2_parsed.json")
	require.NoError(t, err)
	assert.Equal(t, parsed, raw)

	_, err = s.Export(ctx, dom.ExportInput{Files: []string{"1.1.bz2_parsed.json"}})
	require.NoError(t, err)
	wrapped, err := store.Get(ctx, blob.Exported, "1.1.bz2_export.json")
	require.NoError(t, err)
	var env struct {
		Metadata export.Metadata `json:"metadata"`
		Data     json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(wrapped, &env))
	assert.Equal(t, "1.1.bz2_parsed.json", env.Metadata.Source)
	assert.Equal(t, export.FormatJSON, env.Metadata.Format)
	assert.True(t, env.Metadata.ExportedAt.Equal(fixed))
	assert.JSONEq(t, string(parsed), string(env.Data))

	for _, f := range []string{"parquet", "xlsx"} {
		b, err = s.Export(ctx, dom.ExportInput{Files: []string{"1.1.bz2_parsed.json"}, Format: f})
		require.NoError(t, err)
		assert.Equal(t, 1, b.Successful, f)
	}
}

func TestExport_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := parsedFixture(t)

	b, err := s.Export(ctx, dom.ExportInput{Files: []string{"nope.bz2"}})
	require.NoError(t, err)
	assert.Equal(t, dom.ExportOutcome{Filename: "nope_parsed.json", Status: dom.StatusError, Error: "Parsed file not found"}, b.Results[0])

	_, err = s.Export(ctx, dom.ExportInput{Files: []string{"1.1.bz2_parsed.json"}, Format: "yaml"})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

func TestDownload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := parsedFixture(t)
	_, err := s.Export(ctx, dom.ExportInput{Files: []string{"1.1.bz2.json"}, Format: "csv"})
	require.NoError(t, err)

	d, err := s.Download(ctx, "1.1.bz2_export.csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", d.ContentType)
	assert.NotEmpty(t, d.Data)

	_, err = s.Download(ctx, "missing.csv")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	assert.EqualError(t, err, "File not found")
}

func TestStatusListAndClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := parsedFixture(t)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "online", st.APIStatus)
	assert.Equal(t, "normal", st.AppHealth)
	assert.Equal(t, blob.BackendLocal, st.StorageBackend)
	assert.Equal(t, 1, st.CacheStatus.UploadedFilesCount)
	assert.Equal(t, 1, st.CacheStatus.ParsedFilesCount)
	assert.Zero(t, st.CacheStatus.ExportedFilesCount)

	files, err := s.List(ctx, blob.Exported)
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	assert.Equal(t, dom.ClearResult{Status: dom.StatusSuccess, Message: "Parsed cache cleared"}, s.Clear(ctx, blob.Parsed))
	files, err = s.List(ctx, blob.Parsed)
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.Equal(t, dom.ClearResult{Status: dom.StatusError, Message: "Failed to clear cache"}, s.Clear(ctx, blob.Category("tmp")))
}
