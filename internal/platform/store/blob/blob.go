// Package blob stores feed files by category on local disk, badger or GCS
package blob

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	perr "marketfeed/internal/platform/errors"
)

// Category partitions stored files by pipeline stage
type Category string

// Categories
const (
	Uploaded Category = "uploaded"
	Parsed   Category = "parsed"
	Exported Category = "exported"
)

// Backend names
const (
	BackendLocal  = "local"
	BackendBadger = "badger"
	BackendGCS    = "gcs"
	BackendPG     = "pg"
)

// Categories lists every category in pipeline order
func Categories() []Category { return []Category{Uploaded, Parsed, Exported} }

// Valid reports whether c is a known category
func (c Category) Valid() bool { return slices.Contains(Categories(), c) }

// ParseCategory maps a string to a Category
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", perr.InvalidArgf("unknown category %q", s)
	}
	return c, nil
}

// FileInfo describes one stored file
type FileInfo struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	SizeMB     float64   `json:"size_mb"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewFileInfo fills SizeMB from size
func NewFileInfo(name string, size int64, at time.Time) FileInfo {
	return FileInfo{Filename: name, SizeBytes: size, SizeMB: SizeMB(size), UploadedAt: at.UTC()}
}

// SizeMB converts bytes to megabytes rounded to two decimals
func SizeMB(n int64) float64 {
	return math.Round(float64(n)/(1<<20)*100) / 100
}

// SortNewest orders files by UploadedAt descending, ties by name
func SortNewest(files []FileInfo) {
	slices.SortFunc(files, func(a, b FileInfo) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Filename, b.Filename)
	})
}

// Store is a category partitioned file store
type Store interface {
	// Put writes data under cat/name, replacing any previous file
	Put(ctx context.Context, cat Category, name string, data []byte) error
	// Get reads cat/name; a missing file is a NotFound error
	Get(ctx context.Context, cat Category, name string) ([]byte, error)
	Exists(ctx context.Context, cat Category, name string) (bool, error)
	// List returns the files of cat, newest first
	List(ctx context.Context, cat Category) ([]FileInfo, error)
	Clear(ctx context.Context, cat Category) error
	Backend() string
	Ping(ctx context.Context) error
	Close() error
}

// CheckName rejects names that are not a plain single path element
func CheckName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return perr.InvalidArgf("filename is empty")
	case name == "." || name == "..":
		return perr.InvalidArgf("invalid filename %q", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return perr.InvalidArgf("filename %q must not contain path separators", name)
	}
	return nil
}

// check validates both category and name before a backend touches them
func check(cat Category, name string) error {
	if !cat.Valid() {
		return perr.InvalidArgf("unknown category %q", cat)
	}
	return CheckName(name)
}

func notFound(cat Category, name string) error {
	return perr.NotFoundf("%s/%s not found", cat, name)
}
