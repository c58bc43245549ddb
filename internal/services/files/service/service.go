// Package service provides the files service implementation
package service

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"marketfeed/internal/core/export"
	"marketfeed/internal/core/feed"
	perr "marketfeed/internal/platform/errors"
	"marketfeed/internal/platform/logger"
	"marketfeed/internal/platform/metrics"
	"marketfeed/internal/platform/store/blob"
	pstrings "marketfeed/internal/platform/strings"
	dom "marketfeed/internal/services/files/domain"

	"golang.org/x/sync/errgroup"
)

// Config for the files service
type Config struct {
	Workers     int
	MaxExpanded int64
}

// Service implements domain.ServicePort over a blob store
type Service struct {
	blobs   blob.Store
	sink    dom.UpdateSink
	metrics *metrics.Metrics
	pipe    *Pipeline
	cfg     Config
	now     func() time.Time
}

var _ dom.ServicePort = (*Service)(nil)

// Option configures a Service
type Option func(*Service)

// WithSink forwards every parsed file to sink; sink failures never fail the parse
func WithSink(sink dom.UpdateSink) Option { return func(s *Service) { s.sink = sink } }

// WithMetrics records file and parse metrics
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New constructs the files service
func New(blobs blob.Store, cfg Config, opts ...Option) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	s := &Service{blobs: blobs, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.pipe = NewPipeline(cfg.MaxExpanded, s.metrics)
	return s
}

// SanitizeName reduces a client supplied name to a plain base name
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", perr.InvalidArgf("filename is empty")
	}
	base := path.Base(name)
	if err := blob.CheckName(base); err != nil {
		return "", err
	}
	return base, nil
}

func (s *Service) stamp() *time.Time {
	t := s.now().UTC()
	return &t
}

// fanOut runs fn for every index with at most Workers in flight
func (s *Service) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, i)
			return nil
		})
	}
	return g.Wait()
}

// Upload implements domain.ServicePort
func (s *Service) Upload(ctx context.Context, files []dom.Upload) dom.Batch[dom.UploadResult] {
	out := make([]dom.UploadResult, len(files))
	for i, f := range files {
		out[i] = s.uploadOne(ctx, f)
		s.metrics.File("upload", out[i].Status)
	}
	return dom.NewBatch(out, func(r dom.UploadResult) bool { return r.Status == dom.StatusUploaded })
}

func (s *Service) uploadOne(ctx context.Context, f dom.Upload) dom.UploadResult {
	name, err := SanitizeName(f.Filename)
	if err != nil {
		return dom.UploadResult{Filename: f.Filename, Status: dom.StatusError, Error: err.Error()}
	}
	if err := s.blobs.Put(ctx, blob.Uploaded, name, f.Data); err != nil {
		logger.C(logger.WithFile(ctx, name)).Error().Err(err).Msg("upload failed")
		return dom.UploadResult{Filename: name, Status: dom.StatusError, Error: err.Error()}
	}
	logger.C(logger.WithFile(ctx, name)).Info().Int("bytes", len(f.Data)).Msg("uploaded")
	return dom.UploadResult{
		Filename:  name,
		SizeBytes: int64(len(f.Data)),
		Status:    dom.StatusUploaded,
		Timestamp: s.stamp(),
	}
}

// Parse implements domain.ServicePort
// results keep request order even though files parse concurrently
func (s *Service) Parse(ctx context.Context, in dom.ParseInput) (dom.Batch[dom.ParseOutcome], error) {
	names := pstrings.Dedupe(in.Files)
	if len(names) == 0 {
		files, err := s.blobs.List(ctx, blob.Uploaded)
		if err != nil {
			return dom.Batch[dom.ParseOutcome]{}, err
		}
		for _, f := range files {
			names = append(names, f.Filename)
		}
	}

	out := make([]dom.ParseOutcome, len(names))
	err := s.fanOut(ctx, len(names), func(ctx context.Context, i int) {
		out[i] = s.parseOne(logger.WithFile(ctx, names[i]), names[i])
		s.metrics.File("parse", out[i].Status)
	})
	if err != nil {
		return dom.Batch[dom.ParseOutcome]{}, err
	}
	return dom.NewBatch(out, func(r dom.ParseOutcome) bool { return r.Status == dom.StatusSuccess }), nil
}

func (s *Service) parseOne(ctx context.Context, name string) dom.ParseOutcome {
	fail := func(msg string) dom.ParseOutcome {
		return dom.ParseOutcome{Filename: name, Status: dom.StatusError, Error: msg}
	}
	log := logger.C(ctx)

	data, err := s.blobs.Get(ctx, blob.Uploaded, name)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return fail("File not found")
	}
	if err != nil {
		log.Error().Err(err).Msg("read upload failed")
		return fail(err.Error())
	}

	p, err := s.pipe.Run(name, data)
	if err != nil {
		log.Error().Err(err).Msg("encode parsed document failed")
		return fail(err.Error())
	}

	outName := ParsedName(name)
	if err := s.blobs.Put(ctx, blob.Parsed, outName, p.Document); err != nil {
		log.Error().Err(err).Msg("store parsed document failed")
		return fail(err.Error())
	}

	if s.sink != nil {
		if err := s.sink.WriteUpdates(ctx, name, p.Result); err != nil {
			log.Warn().Err(err).Msg("update sink failed")
		}
	}

	log.Info().
		Str("archive", string(p.Method)).
		Int("records", p.Result.RecordCount).
		Int("markets", p.Result.MarketCount).
		Int("skipped", p.Report.Skipped).
		Msg("parsed")

	return dom.ParseOutcome{
		Filename:       name,
		Status:         dom.StatusSuccess,
		RecordsParsed:  p.Result.RecordCount,
		MarketsParsed:  p.Result.MarketCount,
		LinesSkipped:   p.Report.Skipped,
		Archive:        string(p.Method),
		OutputFile:     outName,
		ParseTimestamp: s.stamp(),
	}
}

// Export implements domain.ServicePort
func (s *Service) Export(ctx context.Context, in dom.ExportInput) (dom.Batch[dom.ExportOutcome], error) {
	format, err := export.ParseFormat(in.Format)
	if err != nil {
		return dom.Batch[dom.ExportOutcome]{}, perr.WithField(perr.Wrap(err, perr.ErrorCodeInvalidArgument, "unsupported format"), "format")
	}

	names := pstrings.Dedupe(in.Files)
	out := make([]dom.ExportOutcome, len(names))
	err = s.fanOut(ctx, len(names), func(ctx context.Context, i int) {
		out[i] = s.exportOne(logger.WithFile(ctx, names[i]), names[i], format, in.WithMetadata())
		s.metrics.File("export", out[i].Status)
	})
	if err != nil {
		return dom.Batch[dom.ExportOutcome]{}, err
	}
	return dom.NewBatch(out, func(r dom.ExportOutcome) bool { return r.Status == dom.StatusSuccess }), nil
}

// ExportName maps a parsed document name to its export name
func ExportName(parsed string, f export.Format) string {
	return strings.TrimSuffix(parsed, ParsedSuffix) + "_export." + f.Ext()
}

func (s *Service) exportOne(ctx context.Context, name string, f export.Format, withMeta bool) dom.ExportOutcome {
	if !strings.HasSuffix(name, ParsedSuffix) {
		name = ParsedName(name)
	}
	fail := func(msg string) dom.ExportOutcome {
		return dom.ExportOutcome{Filename: name, Status: dom.StatusError, Error: msg}
	}
	log := logger.C(ctx)

	doc, err := s.blobs.Get(ctx, blob.Parsed, name)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return fail("Parsed file not found")
	}
	if err != nil {
		log.Error().Err(err).Msg("read parsed document failed")
		return fail(err.Error())
	}

	data := doc
	if f != export.FormatJSON || withMeta {
		res := feed.NewParseResult()
		if err := json.Unmarshal(doc, res); err != nil {
			return fail("invalid parsed document: " + err.Error())
		}
		var meta *export.Metadata
		if withMeta {
			meta = &export.Metadata{ExportedAt: s.now().UTC(), Source: name, Format: f}
		}
		if data, err = export.Render(f, res, meta); err != nil {
			log.Error().Err(err).Str("format", string(f)).Msg("render failed")
			return fail(err.Error())
		}
	}

	outName := ExportName(name, f)
	if err := s.blobs.Put(ctx, blob.Exported, outName, data); err != nil {
		log.Error().Err(err).Msg("store export failed")
		return fail(err.Error())
	}
	log.Info().Str("format", string(f)).Str("output", outName).Msg("exported")

	return dom.ExportOutcome{
		Filename:        name,
		Status:          dom.StatusSuccess,
		OutputFile:      outName,
		Format:          string(f),
		ExportTimestamp: s.stamp(),
	}
}

// Download implements domain.ServicePort
func (s *Service) Download(ctx context.Context, filename string) (dom.Download, error) {
	name, err := SanitizeName(filename)
	if err != nil {
		return dom.Download{}, err
	}
	data, err := s.blobs.Get(ctx, blob.Exported, name)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return dom.Download{}, perr.NotFoundf("File not found")
	}
	if err != nil {
		return dom.Download{}, err
	}
	return dom.Download{Filename: name, ContentType: export.ContentTypeFor(name), Data: data}, nil
}

// List implements domain.ServicePort
func (s *Service) List(ctx context.Context, cat blob.Category) ([]dom.FileInfo, error) {
	files, err := s.blobs.List(ctx, cat)
	if err != nil {
		return nil, err
	}
	return pstrings.IfEmpty(files, []dom.FileInfo{}), nil
}

var clearedMessages = map[blob.Category]string{
	blob.Uploaded: "Uploaded cache cleared",
	blob.Parsed:   "Parsed cache cleared",
	blob.Exported: "Exported cache cleared",
}

// Clear implements domain.ServicePort
func (s *Service) Clear(ctx context.Context, cat blob.Category) dom.ClearResult {
	if err := s.blobs.Clear(ctx, cat); err != nil {
		logger.C(ctx).Error().Err(err).Str("category", string(cat)).Msg("clear failed")
		return dom.ClearResult{Status: dom.StatusError, Message: "Failed to clear cache"}
	}
	logger.C(ctx).Info().Str("category", string(cat)).Msg("cache cleared")
	return dom.ClearResult{Status: dom.StatusSuccess, Message: clearedMessages[cat]}
}

// Status implements domain.ServicePort
func (s *Service) Status(ctx context.Context) (dom.SystemStatus, error) {
	var stats [3]struct {
		n  int
		mb float64
	}
	for i, cat := range blob.Categories() {
		files, err := s.blobs.List(ctx, cat)
		if err != nil {
			return dom.SystemStatus{}, err
		}
		var total int64
		for _, f := range files {
			total += f.SizeBytes
		}
		stats[i].n, stats[i].mb = len(files), blob.SizeMB(total)
	}
	return dom.SystemStatus{
		APIStatus:      "online",
		AppHealth:      "normal",
		StorageBackend: s.blobs.Backend(),
		CacheStatus: dom.CacheStatus{
			UploadedFilesCount:  stats[0].n,
			UploadedFilesSizeMB: stats[0].mb,
			ParsedFilesCount:    stats[1].n,
			ParsedFilesSizeMB:   stats[1].mb,
			ExportedFilesCount:  stats[2].n,
			ExportedFilesSizeMB: stats[2].mb,
		},
	}, nil
}
