package bind

import (
	"errors"
	"io"
	"net/http"

	perr "marketfeed/internal/platform/errors"
)

// Upload is one file part read fully into memory
type Upload struct {
	Filename string
	Data     []byte
}

// MultipartOptions controls Files
type MultipartOptions struct {
	Field     string // form field, default "files"
	MaxBytes  int64  // whole request body limit, 0 means unlimited
	MaxMemory int64  // parts above this spill to temp files, default 32MB
}

// Files reads every file part under the configured field
// Oversized bodies map to TooLarge; a request without any file part is a validation error
func Files(r *http.Request, opts MultipartOptions) ([]Upload, error) {
	if opts.Field == "" {
		opts.Field = "files"
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = 32 << 20
	}
	if opts.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, opts.MaxBytes)
	}

	if err := r.ParseMultipartForm(opts.MaxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, perr.TooLargef("upload exceeds %d bytes", mbe.Limit)
		}
		return nil, perr.WithField(perr.Wrap(err, perr.ErrorCodeValidation, "invalid multipart form"), opts.Field)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[opts.Field]
	if len(headers) == 0 {
		return nil, perr.WithField(perr.New(perr.ErrorCodeValidation, "no files provided"), opts.Field)
	}

	out := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "open part %q", fh.Filename)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "read part %q", fh.Filename)
		}
		out = append(out, Upload{Filename: fh.Filename, Data: data})
	}
	return out, nil
}
