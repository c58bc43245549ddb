// Package config reads application configuration from environment variables
package config

import (
	"strconv"
	"strings"
	"time"

	"marketfeed/internal/platform/config/raw"
	"marketfeed/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g. "CORE_FILES_", "SERVICE_PGSQL_")
type Conf struct{ env raw.Conf }

// New creates a root Conf
func New() Conf { return Conf{env: raw.New()} }

// Prefix creates a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{env: c.env.Prefix(p)} }

func (c Conf) key(k string) string { return c.env.Key(k) }

// must fetches key or panics through the root logger
func (c Conf) must(key string) string {
	v, ok := c.env.Lookup(key)
	if !ok {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// may parses key with parse, falling back to def when blank or unparsable
func may[T any](c Conf, key string, def T, kind string, parse func(string) (T, error)) T {
	s, ok := c.env.Lookup(key)
	if !ok {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().
			Str("key", c.key(key)).
			Str("value", s).
			Interface("default", def).
			Msgf("invalid %s; using default", kind)
		return def
	}
	return v
}

// MustString panics when key is missing or blank
func (c Conf) MustString(key string) string { return c.must(key) }

// MustInt panics when key is missing or not an int
func (c Conf) MustInt(key string) int {
	s := c.must(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid int value")
	}
	return v
}

// MustBool panics when key is missing or not a bool
func (c Conf) MustBool(key string) bool {
	s := c.must(key)
	v, err := strconv.ParseBool(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid bool value")
	}
	return v
}

// Require panics unless every key is set
func (c Conf) Require(keys ...string) {
	for _, k := range keys {
		_ = c.must(k)
	}
}

// MayString returns the value or def
func (c Conf) MayString(key, def string) string { return c.env.Get(key, def) }

// MayInt returns the value or def; invalid values log and return def
func (c Conf) MayInt(key string, def int) int {
	return may(c, key, def, "int", strconv.Atoi)
}

// MayBool returns the value or def; invalid values log and return def
func (c Conf) MayBool(key string, def bool) bool {
	return may(c, key, def, "bool", strconv.ParseBool)
}

// MayDuration returns the value or def; invalid values log and return def
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, "duration", time.ParseDuration)
}

// MaySizeMB reads a size in megabytes and returns bytes; zero or negative means unlimited
func (c Conf) MaySizeMB(key string, defMB int) int64 {
	mb := c.MayInt(key, defMB)
	if mb <= 0 {
		return 0
	}
	return int64(mb) << 20
}

// MayAddr returns a listen address; a bare port like "8000" becomes ":8000"
func (c Conf) MayAddr(key, def string) string {
	addr := c.MayString(key, def)
	if p, err := strconv.Atoi(addr); err == nil {
		if p < 1 || p > 65535 {
			logger.Get().Panic().Str("key", c.key(key)).Str("value", addr).Msg("invalid TCP port; expected 1..65535")
		}
		return ":" + addr
	}
	return addr
}

// MayCSV splits a comma separated value, dropping blanks; def when nothing remains
func (c Conf) MayCSV(key string, def []string) []string {
	s, ok := c.env.Lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum returns the value lowercased when it is one of allowed, def when blank, and panics otherwise
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return strings.ToLower(a)
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}
