package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// zip compression methods beyond store and deflate
const (
	zipMethodBzip2 uint16 = 12
	zipMethodLZMA  uint16 = 14
)

// attempt is one fallible extraction step
type attempt struct {
	method Method
	match  func(lower string) bool
	run    func(n *Normalizer, data []byte) (out []byte, member string, err error)
}

// attempts is ordered by priority; a name like x.tar.bz2 matches bzip2 first
var attempts = []attempt{
	{
		method: MethodBzip2,
		match:  func(s string) bool { return strings.HasSuffix(s, ".bz2") },
		run:    (*Normalizer).bunzip,
	},
	{
		method: MethodGzip,
		match:  func(s string) bool { return strings.HasSuffix(s, ".gz") },
		run:    (*Normalizer).gunzip,
	},
	{
		method: MethodTar,
		match: func(s string) bool {
			return strings.HasSuffix(s, ".tar") || strings.HasSuffix(s, ".tar.bz2")
		},
		run: (*Normalizer).untar,
	},
	{
		method: MethodZip,
		match:  func(s string) bool { return strings.HasSuffix(s, ".zip") },
		run:    (*Normalizer).unzip,
	},
}

func (n *Normalizer) bunzip(data []byte) ([]byte, string, error) {
	out, err := n.readAll(bzip2.NewReader(bytes.NewReader(data)))
	return out, "", err
}

func (n *Normalizer) gunzip(data []byte) ([]byte, string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = gz.Close() }()
	out, err := n.readAll(gz)
	return out, "", err
}

// untar reads the first regular member
// a compressed tar stream (gzip, bzip2 or xz magic) is unwrapped before reading headers
func (n *Normalizer) untar(data []byte) ([]byte, string, error) {
	src, closeFn, err := sniffCompressed(data)
	if err != nil {
		return nil, "", err
	}
	defer closeFn()

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, "", errNoMembers
		}
		if err != nil {
			return nil, "", err
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		out, err := n.readAll(tr)
		if err != nil {
			return nil, "", err
		}
		return out, hdr.Name, nil
	}
}

// unzip reads the first non directory entry in central directory order
func (n *Normalizer) unzip(data []byte) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", err
	}
	zr.RegisterDecompressor(zipMethodBzip2, func(r io.Reader) io.ReadCloser {
		return io.NopCloser(bzip2.NewReader(r))
	})
	zr.RegisterDecompressor(zipMethodLZMA, zipLZMA)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", err
		}
		out, rerr := n.readAll(rc)
		cerr := rc.Close()
		if rerr != nil {
			return nil, "", rerr
		}
		if cerr != nil {
			return nil, "", cerr
		}
		return out, f.Name, nil
	}
	return nil, "", errNoMembers
}

// readAll drains r honoring the configured size cap
func (n *Normalizer) readAll(r io.Reader) ([]byte, error) {
	if n.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	out, err := io.ReadAll(io.LimitReader(r, n.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > n.maxBytes {
		return nil, errTooLarge
	}
	return out, nil
}

// zipLZMA reads a method 14 entry: version (2), props size (2), props, then a raw lzma stream
// the stream carries no size so it is handed to lzma as a classic header with unknown length
func zipLZMA(r io.Reader) io.ReadCloser {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errReader(err)
	}
	props := make([]byte, binary.LittleEndian.Uint16(hdr[2:]))
	if len(props) != 5 {
		return errReader(fmt.Errorf("zip lzma: props size %d", len(props)))
	}
	if _, err := io.ReadFull(r, props); err != nil {
		return errReader(err)
	}
	classic := append(props, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	lr, err := lzma.NewReader(io.MultiReader(bytes.NewReader(classic), r))
	if err != nil {
		return errReader(err)
	}
	return io.NopCloser(lr)
}

type failed struct{ err error }

func (f failed) Read([]byte) (int, error) { return 0, f.err }
func (f failed) Close() error             { return nil }

func errReader(err error) io.ReadCloser { return failed{err: err} }

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// sniffCompressed wraps data in a decompressor when its magic bytes say so
func sniffCompressed(data []byte) (io.Reader, func(), error) {
	br := bufio.NewReader(bytes.NewReader(data))
	head, _ := br.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, func() {}, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case bytes.HasPrefix(head, bzip2Magic):
		return bzip2.NewReader(br), func() {}, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, func() {}, err
		}
		return xr, func() {}, nil
	default:
		return br, func() {}, nil
	}
}
