package redis

import (
	"strconv"
	"strings"

	"github.com/casafind/listingcache/cache"
)

// parseInfo extracts the fields the metrics collector cares about from the
// raw INFO response. Lines look like "keyspace_hits:12345"; section headers
// ("# Stats") and blank lines are skipped. Missing fields stay zero-valued.
func parseInfo(raw string) *cache.ServerInfo {
	info := &cache.ServerInfo{}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch name {
		case "keyspace_hits":
			info.KeyspaceHits = parseInt(value)
		case "keyspace_misses":
			info.KeyspaceMisses = parseInt(value)
		case "redis_version":
			info.Version = value
		case "connected_clients":
			info.ConnectedClients = parseInt(value)
		case "used_memory_human":
			info.UsedMemoryHuman = value
		case "uptime_in_seconds":
			info.UptimeSeconds = parseInt(value)
		}
	}

	return info
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
