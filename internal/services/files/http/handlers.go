// Package http provides http transport for files
package http

import (
	stdhttp "net/http"

	"marketfeed/internal/modkit/httpkit"
	"marketfeed/internal/platform/net/http/bind"
	"marketfeed/internal/platform/store/blob"
	"marketfeed/internal/services/files/domain"
)

// Options for the files routes
type Options struct {
	// MaxUploadBytes caps a whole multipart upload request, zero is unlimited
	MaxUploadBytes int64
}

// Register mounts the files routes
func Register(r httpkit.Router, s domain.ServicePort, o Options) {
	h := &handlers{svc: s, opts: o}

	httpkit.Get(r, "/system-status", h.status)
	httpkit.Post(r, "/upload", h.upload)
	httpkit.Get(r, "/uploaded-files", h.list(blob.Uploaded))
	httpkit.PostOptionalJSON[domain.ParseInput](r, "/parse", h.parse)
	httpkit.Get(r, "/parsed-files", h.list(blob.Parsed))
	httpkit.PostJSON[domain.ExportInput](r, "/export", h.export)
	httpkit.Get(r, "/exported-files", h.list(blob.Exported))
	r.Get("/export-file/{filename}", httpkit.Handle(h.download))
	for _, cat := range blob.Categories() {
		httpkit.Post(r, "/cache/clear-"+string(cat), h.clear(cat))
	}
}

type handlers struct {
	svc  domain.ServicePort
	opts Options
}

// @Summary System status
// @Tags Status
// @Produce json
// @Success 200 {object} domain.SystemStatus "ok"
// @Router /api/system-status [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Status(r.Context())
}

// @Summary Upload feed files
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "one or more feed files"
// @Success 200 {object} domain.Batch[domain.UploadResult] "ok"
// @Failure 413 {object} httpkit.Envelope "too large"
// @Router /api/upload [post]
func (h *handlers) upload(r *stdhttp.Request) (any, error) {
	parts, err := bind.Files(r, bind.MultipartOptions{MaxBytes: h.opts.MaxUploadBytes})
	if err != nil {
		return nil, err
	}
	files := make([]domain.Upload, len(parts))
	for i, p := range parts {
		files[i] = domain.Upload{Filename: p.Filename, Data: p.Data}
	}
	return h.svc.Upload(r.Context(), files), nil
}

func (h *handlers) list(cat blob.Category) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) { return h.svc.List(r.Context(), cat) }
}

// @Summary Parse uploaded files
// @Tags Parse
// @Accept json
// @Produce json
// @Param payload body domain.ParseInput false "files to parse, all when empty"
// @Success 200 {object} domain.Batch[domain.ParseOutcome] "ok"
// @Router /api/parse [post]
func (h *handlers) parse(r *stdhttp.Request, in domain.ParseInput) (any, error) {
	return h.svc.Parse(r.Context(), in)
}

// @Summary Export parsed files
// @Tags Export
// @Accept json
// @Produce json
// @Param payload body domain.ExportInput true "Export"
// @Success 200 {object} domain.Batch[domain.ExportOutcome] "ok"
// @Router /api/export [post]
func (h *handlers) export(r *stdhttp.Request, in domain.ExportInput) (any, error) {
	return h.svc.Export(r.Context(), in)
}

// @Summary Download an exported file
// @Tags Export
// @Param filename path string true "exported file name"
// @Success 200 {file} file
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /api/export-file/{filename} [get]
func (h *handlers) download(r *stdhttp.Request) httpkit.Response {
	d, err := h.svc.Download(r.Context(), httpkit.Param(r, "filename"))
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.Attachment(d.Filename, d.ContentType, d.Data)
}

func (h *handlers) clear(cat blob.Category) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) { return h.svc.Clear(r.Context(), cat), nil }
}
