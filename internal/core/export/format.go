package export

import (
	"fmt"
	"strings"
	"time"

	"marketfeed/internal/core/feed"
)

// Format is an export target
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// Formats lists every supported format in a stable order
var Formats = []Format{FormatJSON, FormatCSV, FormatParquet, FormatXLSX}

// ParseFormat accepts a format name case insensitively, empty means json
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatJSON, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("export: unsupported format %q", s)
}

// Ext is the file extension without the dot
func (f Format) Ext() string { return string(f) }

// ContentType is the media type served for files of this format
func (f Format) ContentType() string { return ContentTypeFor("x." + string(f)) }

// ContentTypeFor picks a media type from a filename suffix
func ContentTypeFor(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	case strings.HasSuffix(lower, ".csv"):
		return "text/csv"
	case strings.HasSuffix(lower, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(lower, ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Metadata is prepended to json exports when requested
type Metadata struct {
	ExportedAt time.Time `json:"exported_at"`
	Source     string    `json:"source"`
	Format     Format    `json:"format"`
}

// Render encodes res in format f; meta is only used by json
func Render(f Format, res *feed.ParseResult, meta *Metadata) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(res, meta)
	case FormatCSV:
		t, err := Flatten(res)
		if err != nil {
			return nil, err
		}
		return CSV(t)
	case FormatXLSX:
		t, err := Flatten(res)
		if err != nil {
			return nil, err
		}
		return XLSX(t)
	case FormatParquet:
		return Parquet(res)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", f)
	}
}
