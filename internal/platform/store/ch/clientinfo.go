package ch

import (
	"strings"

	"marketfeed/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo tags queries in system.query_log with the binary, its role ("api", "parse") and a deploy tag
// an empty tag falls back to the build version
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	bi := version.Info("marketfeed")
	if tag = strings.TrimSpace(tag); tag == "" {
		tag = bi.Version
	}
	commit := bi.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}

	type product = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []product{
		{Name: bi.Service, Version: tag},
		{Name: "role", Version: strings.TrimSpace(role)},
		{Name: "commit", Version: commit},
		{Name: "go", Version: bi.GoVersion},
	}}
}
