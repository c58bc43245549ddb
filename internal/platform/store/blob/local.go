package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	perr "marketfeed/internal/platform/errors"
)

// Local keeps files under root/<category>/<name>
type Local struct {
	root string
}

var _ Store = (*Local)(nil)

// NewLocal creates the category directories under root
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "./storage"
	}
	for _, c := range Categories() {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o755); err != nil {
			return nil, perr.Storagef(err, "create %s dir", c)
		}
	}
	return &Local{root: root}, nil
}

func (l *Local) path(cat Category, name string) string {
	return filepath.Join(l.root, string(cat), name)
}

// Put writes through a temp file and rename so readers never see partial files
func (l *Local) Put(_ context.Context, cat Category, name string, data []byte) error {
	if err := check(cat, name); err != nil {
		return err
	}
	dir := filepath.Join(l.root, string(cat))
	f, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return perr.Storagef(err, "write %s/%s", cat, name)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp)
		return perr.Storagef(err, "write %s/%s", cat, name)
	}
	if err := os.Rename(tmp, l.path(cat, name)); err != nil {
		_ = os.Remove(tmp)
		return perr.Storagef(err, "write %s/%s", cat, name)
	}
	return nil
}

func (l *Local) Get(_ context.Context, cat Category, name string) ([]byte, error) {
	if err := check(cat, name); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(l.path(cat, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(cat, name)
	}
	if err != nil {
		return nil, perr.Storagef(err, "read %s/%s", cat, name)
	}
	return b, nil
}

func (l *Local) Exists(_ context.Context, cat Category, name string) (bool, error) {
	if err := check(cat, name); err != nil {
		return false, err
	}
	st, err := os.Stat(l.path(cat, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, perr.Storagef(err, "stat %s/%s", cat, name)
	}
	return st.Mode().IsRegular(), nil
}

func (l *Local) List(_ context.Context, cat Category) ([]FileInfo, error) {
	if !cat.Valid() {
		return nil, perr.InvalidArgf("unknown category %q", cat)
	}
	entries, err := os.ReadDir(filepath.Join(l.root, string(cat)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, perr.Storagef(err, "list %s", cat)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || isTemp(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		out = append(out, NewFileInfo(e.Name(), info.Size(), info.ModTime()))
	}
	SortNewest(out)
	return out, nil
}

func (l *Local) Clear(_ context.Context, cat Category) error {
	if !cat.Valid() {
		return perr.InvalidArgf("unknown category %q", cat)
	}
	dir := filepath.Join(l.root, string(cat))
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perr.Storagef(err, "clear %s", cat)
	}
	var errs []error
	for _, e := range entries {
		if e.Type().IsRegular() {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return perr.Storagef(err, "clear %s", cat)
	}
	return nil
}

func (l *Local) Backend() string { return BackendLocal }

// Ping checks the root is still a directory
func (l *Local) Ping(context.Context) error {
	st, err := os.Stat(l.root)
	if err != nil {
		return perr.Storagef(err, "stat root")
	}
	if !st.IsDir() {
		return perr.Newf(perr.ErrorCodeStorage, "%s is not a directory", l.root)
	}
	return nil
}

func (l *Local) Close() error { return nil }

func isTemp(name string) bool { return len(name) > 5 && name[:5] == ".put-" }
