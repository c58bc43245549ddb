package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	stdgzip "compress/gzip"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedLine = "{\"marketId\":\"1.1\",\"mc\":{}}\n"

// bz2Feed is feedLine compressed with the reference bzip2 tool
var bz2Feed = []byte{
	0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0xb9, 0x8c,
	0x59, 0x71, 0x00, 0x00, 0x0b, 0xdd, 0x80, 0x00, 0x10, 0x10, 0x05, 0x20,
	0x10, 0x00, 0x20, 0x2e, 0x0a, 0x14, 0x0a, 0x20, 0x00, 0x22, 0x20, 0x64,
	0xd3, 0x41, 0xbd, 0x50, 0xa1, 0xa6, 0x98, 0x00, 0x15, 0xa2, 0x07, 0x76,
	0xd5, 0xa8, 0x4a, 0x72, 0x45, 0x49, 0x09, 0x3d, 0xf1, 0x77, 0x24, 0x53,
	0x85, 0x09, 0x0b, 0x98, 0xc5, 0x97, 0x10,
}

// bz2Tar is a ustar archive holding one member feed.json (feedLine), bzip2 compressed
var bz2Tar = []byte{
	0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0x7a, 0xf1,
	0xb3, 0xb8, 0x00, 0x00, 0x78, 0xdf, 0x80, 0xca, 0x90, 0x50, 0x05, 0x6f,
	0x90, 0x00, 0x20, 0x00, 0x80, 0x6f, 0x1b, 0x9e, 0x0a, 0x08, 0x08, 0x20,
	0x00, 0x75, 0x0d, 0x22, 0x68, 0x34, 0x34, 0x01, 0xa3, 0x4d, 0x03, 0x34,
	0x81, 0x94, 0x81, 0xa1, 0xa0, 0xd0, 0xf5, 0x03, 0x40, 0xd0, 0xd1, 0xf7,
	0x0c, 0x11, 0x10, 0x40, 0x5c, 0x84, 0x10, 0x45, 0xdd, 0x36, 0x70, 0xd6,
	0x50, 0xb2, 0x01, 0x0a, 0x01, 0x50, 0x55, 0xc8, 0xe7, 0x41, 0x12, 0x69,
	0x52, 0x90, 0x4b, 0x40, 0x20, 0xe4, 0x90, 0x4b, 0x69, 0xb9, 0xbb, 0x65,
	0xbe, 0xab, 0xa1, 0x75, 0x03, 0x50, 0x44, 0x03, 0xfb, 0x1e, 0x41, 0xd8,
	0x3e, 0xb1, 0x13, 0x88, 0x39, 0x58, 0xa9, 0x7c, 0xfe, 0xde, 0x84, 0x90,
	0x3f, 0x17, 0x72, 0x45, 0x38, 0x50, 0x90, 0x7a, 0xf1, 0xb3, 0xb8,
}

// bz2Zip is a zip holding feed.json (feedLine) stored with method 12 (bzip2)
var bz2Zip = []byte{
	0x50, 0x4b, 0x03, 0x04, 0x2e, 0x00, 0x00, 0x00, 0x0c, 0x00, 0x00, 0x00,
	0x21, 0x58, 0x89, 0x52, 0xca, 0x6a, 0x43, 0x00, 0x00, 0x00, 0x1b, 0x00,
	0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x66, 0x65, 0x65, 0x64, 0x2e, 0x6a,
	0x73, 0x6f, 0x6e, 0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53,
	0x59, 0xb9, 0x8c, 0x59, 0x71, 0x00, 0x00, 0x0b, 0xdd, 0x80, 0x00, 0x10,
	0x10, 0x05, 0x20, 0x10, 0x00, 0x20, 0x2e, 0x0a, 0x14, 0x0a, 0x20, 0x00,
	0x22, 0x20, 0x64, 0xd3, 0x41, 0xbd, 0x50, 0xa1, 0xa6, 0x98, 0x00, 0x15,
	0xa2, 0x07, 0x76, 0xd5, 0xa8, 0x4a, 0x72, 0x45, 0x49, 0x09, 0x3d, 0xf1,
	0x77, 0x24, 0x53, 0x85, 0x09, 0x0b, 0x98, 0xc5, 0x97, 0x10, 0x50, 0x4b,
	0x01, 0x02, 0x2e, 0x03, 0x2e, 0x00, 0x00, 0x00, 0x0c, 0x00, 0x00, 0x00,
	0x21, 0x58, 0x89, 0x52, 0xca, 0x6a, 0x43, 0x00, 0x00, 0x00, 0x1b, 0x00,
	0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x80, 0x01, 0x00, 0x00, 0x00, 0x00, 0x66, 0x65, 0x65, 0x64,
	0x2e, 0x6a, 0x73, 0x6f, 0x6e, 0x50, 0x4b, 0x05, 0x06, 0x00, 0x00, 0x00,
	0x00, 0x01, 0x00, 0x01, 0x00, 0x37, 0x00, 0x00, 0x00, 0x6a, 0x00, 0x00,
	0x00, 0x00, 0x00,
}

// lzmaZip is a zip holding feed.json (feedLine) stored with method 14 (lzma)
var lzmaZip = []byte{
	0x50, 0x4b, 0x03, 0x04, 0x3f, 0x00, 0x02, 0x00, 0x0e, 0x00, 0x00, 0x00,
	0x21, 0x58, 0x89, 0x52, 0xca, 0x6a, 0x2f, 0x00, 0x00, 0x00, 0x1b, 0x00,
	0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x66, 0x65, 0x65, 0x64, 0x2e, 0x6a,
	0x73, 0x6f, 0x6e, 0x09, 0x04, 0x05, 0x00, 0x5d, 0x00, 0x00, 0x80, 0x00,
	0x00, 0x3d, 0x88, 0x89, 0xa6, 0x54, 0x63, 0x65, 0x12, 0x1d, 0x5f, 0xce,
	0x3a, 0xaa, 0x5e, 0xf7, 0x17, 0x3f, 0x76, 0xbf, 0x51, 0x9e, 0x4f, 0x31,
	0x56, 0x5a, 0xb6, 0x2e, 0x72, 0xf4, 0xf6, 0xe1, 0x7d, 0xff, 0xfe, 0x95,
	0x7c, 0xc0, 0x50, 0x4b, 0x01, 0x02, 0x3f, 0x03, 0x3f, 0x00, 0x02, 0x00,
	0x0e, 0x00, 0x00, 0x00, 0x21, 0x58, 0x89, 0x52, 0xca, 0x6a, 0x2f, 0x00,
	0x00, 0x00, 0x1b, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x66, 0x65, 0x65, 0x64, 0x2e, 0x6a, 0x73, 0x6f, 0x6e, 0x50, 0x4b, 0x05,
	0x06, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x37, 0x00, 0x00,
	0x00, 0x56, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// xzTar is a ustar archive holding one member feed.json (feedLine), xz compressed
var xzTar = []byte{
	0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x04, 0xe6, 0xd6, 0xb4, 0x46,
	0x02, 0x00, 0x21, 0x01, 0x16, 0x00, 0x00, 0x00, 0x74, 0x2f, 0xe5, 0xa3,
	0xe0, 0x27, 0xff, 0x00, 0x7f, 0x5d, 0x00, 0x33, 0x19, 0x6c, 0xc8, 0x2e,
	0x29, 0x90, 0x5a, 0x40, 0xac, 0x4a, 0xa9, 0x5d, 0xfb, 0x63, 0xa0, 0xf0,
	0x24, 0xa8, 0xf4, 0x7f, 0xf6, 0xd0, 0xe9, 0x6f, 0x01, 0xe4, 0x51, 0x0e,
	0x4a, 0x1d, 0x6a, 0xed, 0xb9, 0xfb, 0x06, 0x72, 0x34, 0x43, 0x1a, 0x53,
	0x32, 0xb7, 0x18, 0x47, 0xe6, 0x39, 0x89, 0x16, 0x6b, 0x68, 0x86, 0x64,
	0xb5, 0x59, 0x50, 0xd5, 0x42, 0x7e, 0xd3, 0xdd, 0x30, 0x97, 0xae, 0x27,
	0x64, 0x3c, 0x63, 0x7b, 0xaf, 0xde, 0xd6, 0x65, 0x60, 0xca, 0xa6, 0xb2,
	0x5b, 0x85, 0xfe, 0x3c, 0x17, 0xa1, 0x73, 0x36, 0x98, 0xf8, 0x90, 0x4c,
	0x8f, 0x22, 0x54, 0xbb, 0x73, 0xd0, 0xae, 0x6b, 0x05, 0xc5, 0x6a, 0x19,
	0xdb, 0xbc, 0x5b, 0xed, 0xca, 0xdd, 0x92, 0xe5, 0x32, 0xb7, 0x92, 0x9a,
	0xc8, 0xc7, 0xc0, 0xa3, 0xc9, 0x9e, 0x1b, 0x37, 0x60, 0xb2, 0x60, 0x94,
	0x10, 0x00, 0x00, 0x00, 0x82, 0xa6, 0xa6, 0x3d, 0x7a, 0x5b, 0x6a, 0x91,
	0x00, 0x01, 0x9b, 0x01, 0x80, 0x50, 0x00, 0x00, 0x66, 0x83, 0x71, 0x08,
	0xb1, 0xc4, 0x67, 0xfb, 0x02, 0x00, 0x00, 0x00, 0x00, 0x04, 0x59, 0x5a,
}

type member struct {
	name string
	body string
	dir  bool
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := stdgzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarBytes(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: tar.TypeReg}
		if m.dir {
			hdr = &tar.Header{Name: m.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !m.dir {
			_, err := tw.Write([]byte(m.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		if !m.dir {
			_, err = w.Write([]byte(m.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNormalize_SupportedFormats(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		data     []byte
		method   Method
		member   string
	}{
		{"bzip2", "1.23.bz2", bz2Feed, MethodBzip2, ""},
		{"bzip2 upper", "FEED.BZ2", bz2Feed, MethodBzip2, ""},
		{"gzip", "feed.json.gz", gzipBytes(t, feedLine), MethodGzip, ""},
		{"tar", "feed.tar", tarBytes(t, member{name: "feed.json", body: feedLine}), MethodTar, "feed.json"},
		{"tar compressed body", "feed.tar", bz2Tar, MethodTar, "feed.json"},
		{"tar gzip body", "feed.TAR", gzipBytes(t, string(tarBytes(t, member{name: "a", body: feedLine}))), MethodTar, "a"},
		{"zip", "feed.zip", zipBytes(t, member{name: "feed.json", body: feedLine}), MethodZip, "feed.json"},
		{"zip bzip2 entry", "feed.zip", bz2Zip, MethodZip, "feed.json"},
		{"zip lzma entry", "feed.zip", lzmaZip, MethodZip, "feed.json"},
		{"tar xz body", "feed.tar", xzTar, MethodTar, "feed.json"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := Normalize(c.data, c.filename)
			require.NoError(t, res.Err)
			assert.Equal(t, c.method, res.Method)
			assert.Equal(t, c.member, res.Member)
			assert.Equal(t, feedLine, string(res.Data))
		})
	}
}

func TestNormalize_TarBz2SuffixPrefersBzip2(t *testing.T) {
	// .tar.bz2 also ends in .bz2 so the stream is only bunzipped, the tar body comes back intact
	res := Normalize(bz2Tar, "feed.tar.bz2")
	require.NoError(t, res.Err)
	assert.Equal(t, MethodBzip2, res.Method)
	assert.Greater(t, len(res.Data), 512)
	assert.Contains(t, string(res.Data[:100]), "feed.json")
}

func TestNormalize_FirstMemberOnly(t *testing.T) {
	tb := tarBytes(t,
		member{name: "dir/", dir: true},
		member{name: "dir/first.json", body: "first\n"},
		member{name: "dir/second.json", body: "second\n"},
	)
	res := Normalize(tb, "multi.tar")
	assert.Equal(t, "first\n", string(res.Data))
	assert.Equal(t, "dir/first.json", res.Member)

	zb := zipBytes(t,
		member{name: "dir/", dir: true},
		member{name: "a.json", body: "a\n"},
		member{name: "b.json", body: "b\n"},
	)
	res = Normalize(zb, "multi.zip")
	assert.Equal(t, "a\n", string(res.Data))
	assert.Equal(t, "a.json", res.Member)
}

func TestNormalize_UnrecognizedIsIdentity(t *testing.T) {
	data := []byte(feedLine)
	for _, name := range []string{"feed.json", "feed", "", "feed.bz2.txt", "tar", "archive.tgz"} {
		res := Normalize(data, name)
		assert.Equal(t, MethodPassthrough, res.Method, name)
		assert.NoError(t, res.Err, name)
		assert.Equal(t, data, res.Data, name)
	}
}

func TestNormalize_MalformedFallsBackToInput(t *testing.T) {
	garbage := []byte("this is definitely not an archive of any kind")
	for _, name := range []string{"x.bz2", "x.gz", "x.tar", "x.tar.bz2", "x.zip"} {
		res := Normalize(garbage, name)
		assert.Equal(t, MethodPassthrough, res.Method, name)
		assert.Error(t, res.Err, name)
		assert.Equal(t, garbage, res.Data, name)
	}
}

func TestNormalize_EmptyContainers(t *testing.T) {
	res := Normalize(tarBytes(t), "empty.tar")
	assert.Equal(t, MethodPassthrough, res.Method)
	assert.ErrorIs(t, res.Err, errNoMembers)

	res = Normalize(zipBytes(t), "empty.zip")
	assert.Equal(t, MethodPassthrough, res.Method)
	assert.ErrorIs(t, res.Err, errNoMembers)
}

func TestNormalize_MaxSizeAndLogging(t *testing.T) {
	var buf bytes.Buffer
	n := New(WithLogger(zerolog.New(&buf)), WithMaxSize(4))

	data := gzipBytes(t, feedLine)
	res := n.Normalize(data, "feed.gz")
	assert.Equal(t, MethodPassthrough, res.Method)
	assert.ErrorIs(t, res.Err, errTooLarge)
	assert.Equal(t, data, res.Data)
	assert.Contains(t, buf.String(), "archive: extraction failed")
	assert.Contains(t, buf.String(), `"method":"gzip"`)
}

func TestDetect(t *testing.T) {
	assert.Equal(t, MethodBzip2, Detect("a.tar.bz2"))
	assert.Equal(t, MethodGzip, Detect("a.json.GZ"))
	assert.Equal(t, MethodTar, Detect("a.tar"))
	assert.Equal(t, MethodZip, Detect("a.zip"))
	assert.Equal(t, MethodPassthrough, Detect("a.json"))
}
