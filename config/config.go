package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the server settings. Per-request chat settings travel with each
// request and are not part of it.
type Config struct {
	Addr  string `toml:"addr"`
	Debug bool   `toml:"debug"`

	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`

	// DisableLocalTools turns off the file and shell tools for the whole
	// deployment, regardless of what a request asks for.
	DisableLocalTools bool `toml:"disable_local_tools"`
	// WorkDir is the root used when a tool request leaves allowedRoot empty.
	WorkDir string `toml:"work_dir"`

	BodyLimit   string   `toml:"body_limit"`
	CORSOrigins []string `toml:"cors_origins"`

	UpstreamHeaderTimeout time.Duration `toml:"upstream_header_timeout"`
	OpenAIAPIKey          string        `toml:"openai_api_key"`
	ShutdownTimeout       time.Duration `toml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Addr:                  ":8080",
		LogMaxSizeMB:          5,
		LogMaxBackups:         5,
		LogMaxAgeDays:         14,
		BodyLimit:             "2M",
		CORSOrigins:           []string{"*"},
		UpstreamHeaderTimeout: 5 * time.Minute,
		OpenAIAPIKey:          "lm-studio",
		ShutdownTimeout:       10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the TOML file at path (if
// any), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}

	cfg.Addr = envDefault("ADDR", cfg.Addr)
	cfg.Debug = envBool("DEBUG", cfg.Debug)
	cfg.LogFile = envDefault("LOG_FILE", cfg.LogFile)
	cfg.LogMaxSizeMB = envInt("LOG_MAX_SIZE_MB", cfg.LogMaxSizeMB)
	cfg.LogMaxBackups = envInt("LOG_MAX_BACKUPS", cfg.LogMaxBackups)
	cfg.LogMaxAgeDays = envInt("LOG_MAX_AGE_DAYS", cfg.LogMaxAgeDays)
	cfg.DisableLocalTools = envBool("DISABLE_LOCAL_TOOLS", cfg.DisableLocalTools)
	cfg.WorkDir = envDefault("WORK_DIR", cfg.WorkDir)
	cfg.BodyLimit = envDefault("BODY_LIMIT", cfg.BodyLimit)
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.UpstreamHeaderTimeout = envDuration("UPSTREAM_HEADER_TIMEOUT", cfg.UpstreamHeaderTimeout)
	cfg.OpenAIAPIKey = envDefault("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	// Hosted deployments have no local filesystem or process access.
	if os.Getenv("VERCEL") == "1" {
		cfg.DisableLocalTools = true
	}

	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.WorkDir = wd
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if c.UpstreamHeaderTimeout <= 0 {
		return fmt.Errorf("upstream_header_timeout must be positive, got: %s", c.UpstreamHeaderTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got: %s", c.ShutdownTimeout)
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation values must not be negative")
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("cors_origins must not be empty")
	}
	return nil
}

func envDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func envBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
