// Package config provides settings loading and validation for the service and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full set of runtime settings. Values come from, in order of precedence,
// environment variables, an optional config file, and the defaults below.
type Config struct {
	Server     ServerConfig
	Paths      PathsConfig
	LLM        LLMConfig
	Fetch      FetchConfig
	Checkpoint CheckpointConfig
	RateLimit  RateLimitConfig

	ProjectName string `validate:"required"`
	TargetRoles string `validate:"required"`
}

// ServerConfig holds HTTP and logging settings.
type ServerConfig struct {
	Port        int    `validate:"min=1,max=65535"`
	Env         string `validate:"oneof=development staging production test"`
	APIPrefix   string `validate:"required,startswith=/"`
	PublicHost  string // overrides the request host when building artifact links
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=json console"`
	CORSOrigins []string
}

// PathsConfig holds the on-disk layout.
type PathsConfig struct {
	DataDir      string `validate:"required"`
	CandidateDir string `validate:"required"`
	GeneratedDir string `validate:"required"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider     string `validate:"oneof=gemini openai"`
	GeminiAPIKey string
	OpenAIAPIKey string
	OpenAIBase   string
	Model        string
	MaxRetries   int           `validate:"min=0,max=10"`
	Timeout      time.Duration `validate:"min=0"`
}

// APIKey returns the key for the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// FetchConfig controls job page retrieval.
type FetchConfig struct {
	Timeout    time.Duration `validate:"min=0"`
	UseBrowser bool
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	Backend       string `validate:"oneof=memory redis postgres sqlite"`
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	DatabaseURL   string
	SQLitePath    string
}

// RateLimitConfig configures request limiting for generate endpoints.
type RateLimitConfig struct {
	Enabled          bool
	GeneratePerDay   int `validate:"min=0"`
	DefaultPerMinute int `validate:"min=0"`
}

var envKeys = map[string]string{
	"project_name":               "PROJECT_NAME",
	"target_roles":               "TARGET_ROLES",
	"server.port":                "PORT",
	"server.env":                 "ENV",
	"server.api_prefix":          "API_V1_STR",
	"server.public_host":         "PUBLIC_HOST",
	"server.log_level":           "LOG_LEVEL",
	"server.log_format":          "LOG_FORMAT",
	"server.cors_origins":        "BACKEND_CORS_ORIGINS",
	"paths.data_dir":             "DATA_DIR",
	"paths.candidate_dir":        "CANDIDATE_DIR",
	"paths.generated_dir":        "GENERATED_DIR",
	"llm.provider":               "LLM_PROVIDER",
	"llm.gemini_api_key":         "GEMINI_API_KEY",
	"llm.openai_api_key":         "OPENAI_API_KEY",
	"llm.openai_base_url":        "OPENAI_BASE_URL",
	"llm.model":                  "LLM_MODEL",
	"llm.max_retries":            "LLM_MAX_RETRIES",
	"llm.timeout":                "LLM_TIMEOUT",
	"fetch.timeout":              "FETCH_TIMEOUT",
	"fetch.use_browser":          "FETCH_USE_BROWSER",
	"checkpoint.backend":         "CHECKPOINT_BACKEND",
	"checkpoint.redis_addr":      "REDIS_ADDR",
	"checkpoint.redis_password":  "REDIS_PASSWORD",
	"checkpoint.redis_db":        "REDIS_DB",
	"checkpoint.ttl":             "CHECKPOINT_TTL",
	"checkpoint.database_url":    "DATABASE_URL",
	"checkpoint.sqlite_path":     "SQLITE_PATH",
	"ratelimit.enabled":          "RATE_LIMIT_ENABLED",
	"ratelimit.generate_per_day": "RATE_LIMIT_GENERATE_PER_DAY",
	"ratelimit.default_per_min":  "RATE_LIMIT_DEFAULT_PER_MINUTE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project_name", "pytchdeck")
	v.SetDefault("target_roles", "Software Engineer, Backend Engineer, Platform Engineer")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.api_prefix", "/api/v1")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")
	v.SetDefault("server.cors_origins", "")
	v.SetDefault("paths.data_dir", ".data")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.use_browser", false)
	v.SetDefault("checkpoint.backend", "memory")
	v.SetDefault("checkpoint.redis_addr", "localhost:6379")
	v.SetDefault("checkpoint.redis_db", 0)
	v.SetDefault("checkpoint.ttl", "168h")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.generate_per_day", 100)
	v.SetDefault("ratelimit.default_per_min", 10)
}

// Load reads settings. configFile may be empty, in which case ./pytchdeck.yaml and
// ./config/pytchdeck.yaml are tried and silently skipped when absent.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("pytchdeck")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return FromViper(v), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	dataDir := v.GetString("paths.data_dir")
	candidateDir := v.GetString("paths.candidate_dir")
	if candidateDir == "" {
		candidateDir = filepath.Join(dataDir, "candidate")
	}
	generatedDir := v.GetString("paths.generated_dir")
	if generatedDir == "" {
		generatedDir = filepath.Join(dataDir, "generated")
	}
	sqlitePath := v.GetString("checkpoint.sqlite_path")
	if sqlitePath == "" {
		sqlitePath = filepath.Join(dataDir, "checkpoints.db")
	}

	return &Config{
		ProjectName: v.GetString("project_name"),
		TargetRoles: v.GetString("target_roles"),
		Server: ServerConfig{
			Port:        v.GetInt("server.port"),
			Env:         strings.ToLower(v.GetString("server.env")),
			APIPrefix:   strings.TrimRight(v.GetString("server.api_prefix"), "/"),
			PublicHost:  strings.TrimRight(v.GetString("server.public_host"), "/"),
			LogLevel:    strings.ToLower(v.GetString("server.log_level")),
			LogFormat:   strings.ToLower(v.GetString("server.log_format")),
			CORSOrigins: SplitList(v.GetString("server.cors_origins")),
		},
		Paths: PathsConfig{
			DataDir:      dataDir,
			CandidateDir: candidateDir,
			GeneratedDir: generatedDir,
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(v.GetString("llm.provider")),
			GeminiAPIKey: v.GetString("llm.gemini_api_key"),
			OpenAIAPIKey: v.GetString("llm.openai_api_key"),
			OpenAIBase:   v.GetString("llm.openai_base_url"),
			Model:        v.GetString("llm.model"),
			MaxRetries:   v.GetInt("llm.max_retries"),
			Timeout:      v.GetDuration("llm.timeout"),
		},
		Fetch: FetchConfig{
			Timeout:    v.GetDuration("fetch.timeout"),
			UseBrowser: v.GetBool("fetch.use_browser"),
		},
		Checkpoint: CheckpointConfig{
			Backend:       strings.ToLower(v.GetString("checkpoint.backend")),
			RedisAddr:     v.GetString("checkpoint.redis_addr"),
			RedisPassword: v.GetString("checkpoint.redis_password"),
			RedisDB:       v.GetInt("checkpoint.redis_db"),
			TTL:           v.GetDuration("checkpoint.ttl"),
			DatabaseURL:   v.GetString("checkpoint.database_url"),
			SQLitePath:    sqlitePath,
		},
		RateLimit: RateLimitConfig{
			Enabled:          v.GetBool("ratelimit.enabled"),
			GeneratePerDay:   v.GetInt("ratelimit.generate_per_day"),
			DefaultPerMinute: v.GetInt("ratelimit.default_per_min"),
		},
	}
}

// SplitList splits a comma separated setting, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks enum and range constraints, then backend specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}

	switch c.Checkpoint.Backend {
	case "redis":
		if c.Checkpoint.RedisAddr == "" {
			return fmt.Errorf("config error: REDIS_ADDR is required for the redis checkpoint backend")
		}
	case "postgres":
		if c.Checkpoint.DatabaseURL == "" {
			return fmt.Errorf("config error: DATABASE_URL is required for the postgres checkpoint backend")
		}
	}
	return nil
}

// RequireAPIKey returns an error when the selected provider has no key.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey() != "" {
		return nil
	}
	if c.LLM.Provider == "openai" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}
	return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
}

// EnsureDirs creates the data, candidate and generated directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CandidateDir, c.Paths.GeneratedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
