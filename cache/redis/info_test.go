package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleInfo = "# Server\r\n" +
	"redis_version:7.2.4\r\n" +
	"uptime_in_seconds:86400\r\n" +
	"\r\n" +
	"# Clients\r\n" +
	"connected_clients:12\r\n" +
	"\r\n" +
	"# Memory\r\n" +
	"used_memory_human:1.04M\r\n" +
	"\r\n" +
	"# Stats\r\n" +
	"keyspace_hits:900\r\n" +
	"keyspace_misses:100\r\n"

func TestParseInfo(t *testing.T) {
	info := parseInfo(sampleInfo)

	assert.Equal(t, int64(900), info.KeyspaceHits)
	assert.Equal(t, int64(100), info.KeyspaceMisses)
	assert.Equal(t, "7.2.4", info.Version)
	assert.Equal(t, int64(12), info.ConnectedClients)
	assert.Equal(t, "1.04M", info.UsedMemoryHuman)
	assert.Equal(t, int64(86400), info.UptimeSeconds)
}

func TestParseInfoMissingFieldsStayZero(t *testing.T) {
	info := parseInfo("# Server\r\nredis_version:7.2.4\r\n")

	assert.Zero(t, info.KeyspaceHits)
	assert.Zero(t, info.KeyspaceMisses)
	assert.Equal(t, "7.2.4", info.Version)
}

func TestParseInfoGarbageLines(t *testing.T) {
	info := parseInfo("not-a-pair\nkeyspace_hits:abc\nkeyspace_misses:5\n")

	assert.Zero(t, info.KeyspaceHits)
	assert.Equal(t, int64(5), info.KeyspaceMisses)
}
