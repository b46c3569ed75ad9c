package pkgconfig

import "time"

// Config is the read-only view of application configuration.
type Config interface {
	GetInt(key string) int64
	GetBool(key string) bool
	GetFloat(key string) float64
	GetString(key string) string
	GetDuration(key string) time.Duration
	GetBinary(key string) []byte
	GetArray(key string) []string
	GetMap(key string) map[string]string
	Close() error
}

// EnvPrefix is prepended to every environment override, e.g.
// GOSAMPLING_STORAGE_DATA_DIR overrides storage.data_dir.
const EnvPrefix = "GOSAMPLING"

// Defaults are applied before the config file is read.
//
//nolint:gochecknoglobals // read-only table
var Defaults = map[string]any{
	"tz":                         "UTC",
	"log.level":                  "info",
	"server.address.http":        ":8080",
	"modules.sampling.enabled":   true,
	"storage.data_dir":           "./data/files",
	"storage.progress_dir":       "./data/progress",
	"upload.chunk_size":          16 << 20,
	"upload.max_chunk_size":      64 << 20,
	"upload.session_ttl":         "30m",
	"index.batch_size":           65536,
	"index.read_buffer":          1 << 20,
	"index.progress_every_bytes": 10 << 20,
	"index.progress_grace":       "30s",
	"sampler.read_concurrency":   8,
	"sampler.max_n":              1_000_000,
	"prepare.auto":               true,
	"prepare.workers":            2,
	"prepare.max_retries":        2,
	"prepare.base_backoff":       "500ms",
	"goroutine.max":              100,
}
