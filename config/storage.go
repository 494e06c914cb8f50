package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StorageBackend selects where session entries are persisted.
type StorageBackend string

const (
	// StorageFile keeps entries in a JSON file under the user config dir.
	StorageFile StorageBackend = "file"
	// StorageRedis keeps entries in Redis, shared by every process on the host.
	StorageRedis StorageBackend = "redis"
	// StorageMemory keeps entries in memory; nothing survives a restart.
	StorageMemory StorageBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "redis", "memory":
		*b = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: file, redis, memory)", v)
	}
}

// StorageConfig controls durable client-side session storage.
type StorageConfig struct {
	Backend StorageBackend `env:"BACKEND" envDefault:"file"`
	// FilePath overrides the session file location; empty uses the user config dir.
	FilePath string `env:"FILE_PATH"`
	// KeyPrefix namespaces Redis keys so several users can share one server.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"prospection:"`
}

// Sanitize fills the default session file path.
func (c *StorageConfig) Sanitize() {
	c.FilePath = strings.TrimSpace(c.FilePath)
	if c.FilePath == "" && c.Backend == StorageFile {
		c.FilePath = DefaultSessionFilePath()
	}
}

// DefaultSessionFilePath returns <user config dir>/prospection/session.json,
// falling back to the working directory when no config dir is known.
func DefaultSessionFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".prospection", "session.json")
	}
	return filepath.Join(dir, "prospection", "session.json")
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
