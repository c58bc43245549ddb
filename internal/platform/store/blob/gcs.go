package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	perr "marketfeed/internal/platform/errors"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSConfig configures the bucket backend
type GCSConfig struct {
	Bucket          string
	CredentialsJSON string // empty uses application default credentials
	Options         []option.ClientOption
}

// GCS keeps files as objects named "<category>/<name>" in one bucket
type GCS struct {
	svc    *storage.Service
	bucket string
}

var _ Store = (*GCS)(nil)

// OpenGCS builds the storage client
func OpenGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, perr.InvalidArgf("gcs bucket is required")
	}
	opts := append([]option.ClientOption{}, cfg.Options...)
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, perr.Storagef(err, "create gcs client")
	}
	return &GCS{svc: svc, bucket: cfg.Bucket}, nil
}

func objectName(cat Category, name string) string { return string(cat) + "/" + name }

func (g *GCS) Put(ctx context.Context, cat Category, name string, data []byte) error {
	if err := check(cat, name); err != nil {
		return err
	}
	obj := &storage.Object{Name: objectName(cat, name)}
	if _, err := g.svc.Objects.Insert(g.bucket, obj).Media(bytes.NewReader(data)).Context(ctx).Do(); err != nil {
		return perr.Storagef(err, "write %s/%s", cat, name)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, cat Category, name string) ([]byte, error) {
	if err := check(cat, name); err != nil {
		return nil, err
	}
	resp, err := g.svc.Objects.Get(g.bucket, objectName(cat, name)).Context(ctx).Download()
	if isNotFound(err) {
		return nil, notFound(cat, name)
	}
	if err != nil {
		return nil, perr.Storagef(err, "read %s/%s", cat, name)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.Storagef(err, "read %s/%s", cat, name)
	}
	return b, nil
}

func (g *GCS) Exists(ctx context.Context, cat Category, name string) (bool, error) {
	if err := check(cat, name); err != nil {
		return false, err
	}
	_, err := g.svc.Objects.Get(g.bucket, objectName(cat, name)).Fields("name").Context(ctx).Do()
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, perr.Storagef(err, "stat %s/%s", cat, name)
	}
	return true, nil
}

func (g *GCS) List(ctx context.Context, cat Category) ([]FileInfo, error) {
	if !cat.Valid() {
		return nil, perr.InvalidArgf("unknown category %q", cat)
	}
	out := []FileInfo{}
	err := g.svc.Objects.List(g.bucket).Prefix(string(cat)+"/").Context(ctx).Pages(ctx, func(objs *storage.Objects) error {
		for _, o := range objs.Items {
			if fi, ok := infoFromObject(cat, o); ok {
				out = append(out, fi)
			}
		}
		return nil
	})
	if err != nil {
		return nil, perr.Storagef(err, "list %s", cat)
	}
	SortNewest(out)
	return out, nil
}

func (g *GCS) Clear(ctx context.Context, cat Category) error {
	files, err := g.List(ctx, cat)
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		err := g.svc.Objects.Delete(g.bucket, objectName(cat, f.Filename)).Context(ctx).Do()
		if err != nil && !isNotFound(err) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return perr.Storagef(err, "clear %s", cat)
	}
	return nil
}

func (g *GCS) Backend() string { return BackendGCS }

// Ping reads the bucket metadata
func (g *GCS) Ping(ctx context.Context) error {
	if _, err := g.svc.Buckets.Get(g.bucket).Fields("name").Context(ctx).Do(); err != nil {
		return perr.Storagef(err, "bucket %s", g.bucket)
	}
	return nil
}

func (g *GCS) Close() error { return nil }

// infoFromObject skips the folder placeholder and anything nested below the category
func infoFromObject(cat Category, o *storage.Object) (FileInfo, bool) {
	if o == nil {
		return FileInfo{}, false
	}
	name, ok := strings.CutPrefix(o.Name, string(cat)+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return FileInfo{}, false
	}
	at, _ := time.Parse(time.RFC3339, o.Updated)
	return NewFileInfo(name, int64(o.Size), at), true
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
