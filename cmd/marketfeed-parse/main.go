// Command marketfeed-parse runs the normalize and reconstruct pipeline over local files
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"marketfeed/internal/core/export"
	"marketfeed/internal/platform/logger"
	"marketfeed/internal/platform/metrics"
	"marketfeed/internal/services/files/service"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type options struct {
	inputs      []string
	out         string
	workers     int
	format      string
	maxExpanded int64
}

type summary struct {
	files  int
	read   int64
	failed int64
}

func main() {
	var (
		fIn      = flag.String("in", "", "comma separated feed files or directories (positional args are added)")
		fOut     = flag.String("out", "./parsed", "output directory")
		fWorkers = flag.Int("workers", 4, "files parsed concurrently")
		fFormat  = flag.String("format", "", "also export as json, csv, parquet or xlsx")
		fMaxMB   = flag.Int("max-expanded-mb", 2048, "cap on decompressed size per file, 0 disables")
	)
	flag.Parse()

	opts := options{
		inputs:      append(splitCSV(*fIn), flag.Args()...),
		out:         *fOut,
		workers:     *fWorkers,
		format:      *fFormat,
		maxExpanded: int64(*fMaxMB) << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRequest(ctx, uuid.NewString())

	sum, err := run(ctx, opts)
	log := logger.C(ctx)
	if err != nil {
		log.Error().Err(err).Msg("parse run failed")
		os.Exit(1)
	}
	log.Info().Int("files", sum.files).Int64("read", sum.read).Int64("failed", sum.failed).Msg("parse run done")
	if sum.read == 0 {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expand walks directories into their regular files, skipping dot files
func expand(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		st, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, in)
			continue
		}
		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func run(ctx context.Context, o options) (summary, error) {
	if len(o.inputs) == 0 {
		return summary{}, errors.New("no inputs; pass -in or file arguments")
	}
	var format export.Format
	if o.format != "" {
		f, err := export.ParseFormat(o.format)
		if err != nil {
			return summary{}, err
		}
		format = f
	}
	files, err := expand(o.inputs)
	if err != nil {
		return summary{}, err
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return summary{}, err
	}

	pipe := service.NewPipeline(o.maxExpanded, metrics.New())
	var read, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.workers))
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fctx := logger.WithFile(gctx, filepath.Base(path))
			ok, err := parseFile(fctx, pipe, path, o.out, format)
			if ok {
				read.Add(1)
			}
			if err != nil {
				failed.Add(1)
				logger.C(fctx).Error().Err(err).Msg("file failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary{}, err
	}
	return summary{files: len(files), read: read.Load(), failed: failed.Load()}, nil
}

// parseFile reports whether the input was readable, and any failure after that
func parseFile(ctx context.Context, pipe *service.Pipeline, path, outDir string, format export.Format) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	name := filepath.Base(path)

	start := time.Now()
	p, err := pipe.Run(name, data)
	if err != nil {
		return true, err
	}
	parsed := service.ParsedName(name)
	if err := os.WriteFile(filepath.Join(outDir, parsed), p.Document, 0o644); err != nil {
		return true, err
	}

	ev := logger.C(ctx).Info().
		Str("archive", string(p.Method)).
		Int("lines", p.Report.Lines).
		Int("records", p.Result.RecordCount).
		Int("markets", p.Result.MarketCount).
		Int("skipped", p.Report.Skipped).
		Int("unkeyed", p.Report.Unkeyed).
		Bool("invalid_utf8", p.Report.InvalidUTF8).
		Dur("elapsed", time.Since(start)).
		Str("output", parsed)

	if format != "" {
		out, err := export.Render(format, p.Result, nil)
		if err != nil {
			return true, fmt.Errorf("export %s: %w", format, err)
		}
		exported := service.ExportName(parsed, format)
		if err := os.WriteFile(filepath.Join(outDir, exported), out, 0o644); err != nil {
			return true, err
		}
		ev = ev.Str("export", exported)
	}
	ev.Msg("parsed")
	return true, nil
}
