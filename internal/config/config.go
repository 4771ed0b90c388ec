package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const envPrefix = "SCHEMAQUERY_"

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Extract       ExtractConfig
	Engine        EngineConfig
	AI            AIConfig
	Execution     ExecutionConfig
	Artifacts     ArtifactConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type ExtractConfig struct {
	PreviewRows int
	MaxColumns  int
}

type EngineConfig struct {
	Threads     int
	MemoryLimit string
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type ExecutionConfig struct {
	Timeout time.Duration
}

type ArtifactConfig struct {
	MaxBytes int64
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

// Load builds the configuration from profile defaults, then the optional YAML
// file named by SCHEMAQUERY_CONFIG_FILE, then lookup. Later sources win.
func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	if path, ok := lookup(envPrefix + "CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		fileValues, err := loadFile(strings.TrimSpace(path))
		if err != nil {
			return Config{}, err
		}
		lookup = layered(lookup, fileValues)
	}

	profile := ProfileDev
	if raw, ok := lookup(envPrefix + "PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid %sPROFILE: %q", envPrefix, profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, envPrefix+"SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyInt(lookup, envPrefix+"EXTRACT_PREVIEW_ROWS", &cfg.Extract.PreviewRows) },
		func() error { return applyInt(lookup, envPrefix+"EXTRACT_MAX_COLUMNS", &cfg.Extract.MaxColumns) },
		func() error { return applyInt(lookup, envPrefix+"ENGINE_THREADS", &cfg.Engine.Threads) },
		func() error { return applyString(lookup, envPrefix+"ENGINE_MEMORY_LIMIT", &cfg.Engine.MemoryLimit) },
		func() error { return applyString(lookup, envPrefix+"AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, envPrefix+"AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, envPrefix+"AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, envPrefix+"AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, envPrefix+"AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyInt(lookup, envPrefix+"AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyDuration(lookup, envPrefix+"AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyDuration(lookup, envPrefix+"EXECUTION_TIMEOUT", &cfg.Execution.Timeout) },
		func() error { return applyInt64(lookup, envPrefix+"ARTIFACT_MAX_BYTES", &cfg.Artifacts.MaxBytes) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, envPrefix+"OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, envPrefix+"OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyBool(lookup, envPrefix+"LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, envPrefix+"LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Extract.PreviewRows <= 0 {
		return fmt.Errorf("extract preview rows must be positive")
	}
	if c.Extract.MaxColumns <= 0 {
		return fmt.Errorf("extract max columns must be positive")
	}
	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported ai provider %q", c.AI.Provider)
	}
	if c.Artifacts.MaxBytes <= 0 {
		return fmt.Errorf("artifact max bytes must be positive")
	}
	return nil
}

// ModelConfigured reports whether a model credential is present. Without one
// query generation runs on the heuristic alone.
func (c AIConfig) ModelConfigured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "schemaquery"},
		Extract: ExtractConfig{
			PreviewRows: 10,
			MaxColumns:  20,
		},
		AI: AIConfig{
			Provider:    "openai",
			Temperature: 0.1,
			MaxTokens:   512,
			Timeout:     15 * time.Second,
		},
		Execution: ExecutionConfig{
			Timeout: 30 * time.Second,
		},
		Artifacts: ArtifactConfig{
			MaxBytes: 64 << 20,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "schemaquery",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
			UseSSL:          false,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Execution.Timeout = 5 * time.Second
		cfg.AI.Timeout = 5 * time.Second
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
