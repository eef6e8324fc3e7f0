package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the portal server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Analysis AnalysisConfig
	Session  SessionConfig
	Logs     LogsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	// URL is optional; when empty the server falls back to the in-process
	// cache, which is enough for a single-instance deployment.
	URL string
}

type GatewayConfig struct {
	WrapperPath    string
	CommandTimeout time.Duration
	KillTimeout    time.Duration
	LogTimeout     time.Duration
}

// BasePath binds one analysis type to the directory its inputs must live
// under. Order matters: the first entry is the fallback for paths that match
// no configured base.
type BasePath struct {
	AnalysisType string
	Dir          string
}

type AnalysisConfig struct {
	BasePaths      []BasePath
	MaxLogSize     int
	ReapAfter      time.Duration
	StaleAfter     time.Duration
	ReapInterval   time.Duration
	FolderCacheTTL time.Duration
}

type SessionConfig struct {
	TTL time.Duration
}

type LogsConfig struct {
	Dir string
}

// Load reads configuration from environment variables and returns a
// validated Config. Returns a descriptive error if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SEQPORTAL_PORT", 8080),
			Env:  envString("SEQPORTAL_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Gateway: GatewayConfig{
			WrapperPath:    envString("SSH_WRAPPER_PATH", "/opt/seqportal/scripts/ssh_wrapper.sh"),
			CommandTimeout: envDuration("SSH_COMMAND_TIMEOUT", 30*time.Second),
			KillTimeout:    envDuration("SSH_KILL_TIMEOUT", 10*time.Second),
			LogTimeout:     envDuration("SSH_LOG_TIMEOUT", 15*time.Second),
		},
		Analysis: AnalysisConfig{
			BasePaths:      parseBasePaths(envString("ANALYSIS_BASE_PATHS", "wgs:/bacteria,species:/animalSpecies")),
			MaxLogSize:     envInt("ANALYSIS_MAX_LOG_SIZE", 1024*1024),
			ReapAfter:      envDuration("ANALYSIS_REAP_AFTER", 12*time.Hour),
			StaleAfter:     envDuration("ANALYSIS_STALE_AFTER", time.Hour),
			ReapInterval:   envDuration("ANALYSIS_REAP_INTERVAL", 30*time.Minute),
			FolderCacheTTL: envDuration("ANALYSIS_FOLDER_CACHE_TTL", 5*time.Minute),
		},
		Session: SessionConfig{
			TTL: envDuration("SESSION_TTL", 12*time.Hour),
		},
		Logs: LogsConfig{
			Dir: envString("PORTAL_LOG_DIR", "/var/log/seqportal"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Gateway.WrapperPath == "" {
		return fmt.Errorf("SSH_WRAPPER_PATH must not be empty")
	}

	if len(c.Analysis.BasePaths) == 0 {
		return fmt.Errorf("ANALYSIS_BASE_PATHS must define at least one type:dir pair")
	}
	seen := map[string]bool{}
	for _, bp := range c.Analysis.BasePaths {
		if bp.AnalysisType == "" || bp.Dir == "" {
			return fmt.Errorf("ANALYSIS_BASE_PATHS entries must be type:dir pairs, got %q", bp.AnalysisType+":"+bp.Dir)
		}
		if !strings.HasPrefix(bp.Dir, "/") {
			return fmt.Errorf("ANALYSIS_BASE_PATHS dir for %q must be absolute, got %q", bp.AnalysisType, bp.Dir)
		}
		if seen[bp.AnalysisType] {
			return fmt.Errorf("ANALYSIS_BASE_PATHS defines type %q twice", bp.AnalysisType)
		}
		seen[bp.AnalysisType] = true
	}

	if c.Analysis.MaxLogSize <= 0 {
		return fmt.Errorf("ANALYSIS_MAX_LOG_SIZE must be positive")
	}

	return nil
}

// parseBasePaths parses "wgs:/bacteria,species:/animalSpecies" into ordered
// pairs. Malformed entries are kept with empty fields so validate can report
// them.
func parseBasePaths(s string) []BasePath {
	var paths []BasePath
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		atype, dir, _ := strings.Cut(entry, ":")
		paths = append(paths, BasePath{AnalysisType: strings.TrimSpace(atype), Dir: strings.TrimSpace(dir)})
	}
	return paths
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
