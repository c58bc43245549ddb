package blob

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	perr "marketfeed/internal/platform/errors"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger keeps files in an embedded badger database
// each file is two keys: "d/<category>/<name>" holds the bytes and "m/<category>/<name>" holds
// a 16 byte header (big endian unix nano stamp, then size) so List never loads file bodies
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

var _ Store = (*Badger)(nil)

const metaLen = 16

// OpenBadger opens or creates the database at path; an empty path opens in memory
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if strings.TrimSpace(path) == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, perr.Storagef(err, "open badger")
	}
	return &Badger{db: db, now: time.Now}, nil
}

func dataPrefix(cat Category) []byte { return []byte("d/" + string(cat) + "/") }

func metaPrefix(cat Category) []byte { return []byte("m/" + string(cat) + "/") }

func dataKey(cat Category, name string) []byte { return append(dataPrefix(cat), name...) }

func metaKey(cat Category, name string) []byte { return append(metaPrefix(cat), name...) }

func encodeMeta(at time.Time, size int64) []byte {
	v := make([]byte, metaLen)
	binary.BigEndian.PutUint64(v[:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint64(v[8:], uint64(size))
	return v
}

func decodeMeta(v []byte) (time.Time, int64, error) {
	if len(v) != metaLen {
		return time.Time{}, 0, errors.New("corrupt file header")
	}
	at := time.Unix(0, int64(binary.BigEndian.Uint64(v[:8])))
	return at, int64(binary.BigEndian.Uint64(v[8:])), nil
}

func (b *Badger) Put(_ context.Context, cat Category, name string, data []byte) error {
	if err := check(cat, name); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(cat, name), data); err != nil {
			return err
		}
		return txn.Set(metaKey(cat, name), encodeMeta(b.now(), int64(len(data))))
	})
	if err != nil {
		return perr.Storagef(err, "write %s/%s", cat, name)
	}
	return nil
}

func (b *Badger) Get(_ context.Context, cat Category, name string) ([]byte, error) {
	if err := check(cat, name); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dataKey(cat, name))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(cat, name)
	}
	if err != nil {
		return nil, perr.Storagef(err, "read %s/%s", cat, name)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func (b *Badger) Exists(_ context.Context, cat Category, name string) (bool, error) {
	if err := check(cat, name); err != nil {
		return false, err
	}
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(cat, name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, perr.Storagef(err, "stat %s/%s", cat, name)
	}
	return true, nil
}

func (b *Badger) List(_ context.Context, cat Category) ([]FileInfo, error) {
	if !cat.Valid() {
		return nil, perr.InvalidArgf("unknown category %q", cat)
	}
	p := metaPrefix(cat)
	out := []FileInfo{}
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: p, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), string(p))
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			at, size, err := decodeMeta(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			out = append(out, NewFileInfo(name, size, at))
		}
		return nil
	})
	if err != nil {
		return nil, perr.Storagef(err, "list %s", cat)
	}
	SortNewest(out)
	return out, nil
}

func (b *Badger) Clear(_ context.Context, cat Category) error {
	if !cat.Valid() {
		return perr.InvalidArgf("unknown category %q", cat)
	}
	if err := b.db.DropPrefix(metaPrefix(cat), dataPrefix(cat)); err != nil {
		return perr.Storagef(err, "clear %s", cat)
	}
	return nil
}

func (b *Badger) Backend() string { return BackendBadger }

func (b *Badger) Ping(context.Context) error {
	if b == nil || b.db == nil || b.db.IsClosed() {
		return perr.Unavailablef("badger is closed")
	}
	return nil
}

func (b *Badger) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
