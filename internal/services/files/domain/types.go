// Package domain holds the DTOs and ports of the files service
package domain

import (
	"time"

	"marketfeed/internal/platform/store/blob"
)

// Per file statuses
const (
	StatusUploaded = "uploaded"
	StatusSuccess  = "success"
	StatusError    = "error"
)

// FileInfo is one stored file as listed by the API
type FileInfo = blob.FileInfo

// Upload is one incoming file
type Upload struct {
	Filename string
	Data     []byte
}

// Batch is the summary every multi file operation returns
type Batch[T any] struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Results    []T `json:"results"`
}

// NewBatch counts results whose ok func returns true
func NewBatch[T any](results []T, ok func(T) bool) Batch[T] {
	b := Batch[T]{Total: len(results), Results: results}
	for _, r := range results {
		if ok(r) {
			b.Successful++
		}
	}
	return b
}

// UploadResult is the outcome of storing one upload
type UploadResult struct {
	Filename  string     `json:"filename"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ParseInput selects uploaded files to parse; empty means all of them
type ParseInput struct {
	Files []string `json:"files,omitempty" validate:"omitempty,dive,basename" example:"1.234567890.bz2"`
}

// ParseOutcome is the outcome of parsing one uploaded file
type ParseOutcome struct {
	Filename       string     `json:"filename"`
	Status         string     `json:"status"`
	RecordsParsed  int        `json:"records_parsed"`
	MarketsParsed  int        `json:"markets_parsed"`
	LinesSkipped   int        `json:"lines_skipped,omitempty"`
	Archive        string     `json:"archive,omitempty"`
	OutputFile     string     `json:"output_file,omitempty"`
	ParseTimestamp *time.Time `json:"parse_timestamp,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// ExportInput selects parsed files and the target format
type ExportInput struct {
	Files           []string `json:"files" validate:"required,min=1,dive,basename" example:"1.234567890_parsed.json"`
	Format          string   `json:"format,omitempty" validate:"omitempty,oneof=json csv parquet xlsx" example:"csv"`
	IncludeMetadata *bool    `json:"include_metadata,omitempty"`
}

// WithMetadata applies the default of true when the field is absent
func (in ExportInput) WithMetadata() bool { return in.IncludeMetadata == nil || *in.IncludeMetadata }

// ExportOutcome is the outcome of exporting one parsed file
type ExportOutcome struct {
	Filename        string     `json:"filename"`
	Status          string     `json:"status"`
	OutputFile      string     `json:"output_file,omitempty"`
	Format          string     `json:"format,omitempty"`
	ExportTimestamp *time.Time `json:"export_timestamp,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Download is an exported file ready to serve
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ClearResult reports a category wipe
type ClearResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CacheStatus counts files per category
type CacheStatus struct {
	UploadedFilesCount  int     `json:"uploaded_files_count"`
	UploadedFilesSizeMB float64 `json:"uploaded_files_size_mb"`
	ParsedFilesCount    int     `json:"parsed_files_count"`
	ParsedFilesSizeMB   float64 `json:"parsed_files_size_mb"`
	ExportedFilesCount  int     `json:"exported_files_count"`
	ExportedFilesSizeMB float64 `json:"exported_files_size_mb"`
}

// SystemStatus is the dashboard summary
type SystemStatus struct {
	APIStatus      string      `json:"api_status"`
	AppHealth      string      `json:"app_health"`
	StorageBackend string      `json:"storage_backend"`
	CacheStatus    CacheStatus `json:"cache_status"`
}
