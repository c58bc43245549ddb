package module

import "marketfeed/internal/platform/config"

// Options holds configuration settings for the files module
type Options struct {
	Workers        int
	MaxUploadBytes int64
	MaxExpanded    int64
	CHSink         bool
}

// FromConfig reads CORE_FILES_* settings
func FromConfig(cfg config.Conf) Options {
	fc := cfg.Prefix("CORE_FILES_")
	return Options{
		Workers:        fc.MayInt("PARSE_WORKERS", 4),
		MaxUploadBytes: fc.MaySizeMB("MAX_UPLOAD_MB", 512),
		MaxExpanded:    fc.MaySizeMB("MAX_EXPANDED_MB", 2048),
		CHSink:         fc.MayBool("CH_SINK", false),
	}
}
