package domain

import (
	"context"

	"marketfeed/internal/core/feed"
	"marketfeed/internal/platform/store/blob"
)

// ServicePort defines the service contract for files
type ServicePort interface {
	Upload(ctx context.Context, files []Upload) Batch[UploadResult]
	Parse(ctx context.Context, in ParseInput) (Batch[ParseOutcome], error)
	Export(ctx context.Context, in ExportInput) (Batch[ExportOutcome], error)
	Download(ctx context.Context, filename string) (Download, error)
	List(ctx context.Context, cat blob.Category) ([]FileInfo, error)
	Clear(ctx context.Context, cat blob.Category) ClearResult
	Status(ctx context.Context) (SystemStatus, error)
}

// UpdateSink receives every reconstructed file, e.g. a columnar store
type UpdateSink interface {
	WriteUpdates(ctx context.Context, source string, res *feed.ParseResult) error
}
