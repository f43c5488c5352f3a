package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Paths    PathsConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Enqueuer EnqueuerConfig
	Device   DeviceConfig
	Planner  PlannerConfig
	AI       AIConfig
	APIKeys  APIKeysConfig
}

type AppConfig struct {
	Version        string
	Port           string
	Debug          bool
	Environment    string
	BasePath       string
	BasicAuth      []string
	TrustedProxies []string
	ServerID       string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// QueueConfig controls the in-process job queues. Concurrency defaults
// follow the external API limits of the automation backend.
type QueueConfig struct {
	PublishWorkers  int
	InteractWorkers int
	MaxAttempts     int
	BackoffBase     time.Duration
	RatePerMinute   int
	RetainCompleted int
	RetainFailedFor time.Duration
}

type EnqueuerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DeviceConfig tunes the readiness gate and the DuoPlus API client.
type DeviceConfig struct {
	APIKey          string
	BaseURL         string
	StartRetries    int
	StartRetryPause time.Duration
	PollInterval    time.Duration
	ReadyTimeout    time.Duration
	ExecuteTimeout  time.Duration
}

// PlannerConfig tunes orchestration plan generation.
type PlannerConfig struct {
	ConversationEnabled bool
	MaxConversationSize int
}

type AIConfig struct {
	Provider     string // "gemini" or "openai"
	Model        string
	SystemPrompt string
}

type APIKeysConfig struct {
	Gemini string
	OpenAI string
}

// Global provides access to the loaded configuration globally (Migration Helper)
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	var trustedProxies []string
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		trustedProxies = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:        "v1.2.0",
		Port:           getEnv("APP_PORT", "3000"),
		Debug:          getEnvBool("APP_DEBUG", false),
		Environment:    getEnv("APP_ENV", "development"),
		BasePath:       getEnv("APP_BASE_PATH", ""),
		BasicAuth:      basicAuth,
		TrustedProxies: trustedProxies,
		ServerID:       getEnv("SERVER_ID", ""),
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "app.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azamp:"),
	}

	queueCfg := QueueConfig{
		PublishWorkers:  getEnvInt("QUEUE_PUBLISH_WORKERS", 3),
		InteractWorkers: getEnvInt("QUEUE_INTERACT_WORKERS", 2),
		MaxAttempts:     getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
		BackoffBase:     time.Duration(getEnvInt("QUEUE_BACKOFF_BASE_MS", 5000)) * time.Millisecond,
		RatePerMinute:   getEnvInt("QUEUE_RATE_PER_MINUTE", 30),
		RetainCompleted: getEnvInt("QUEUE_RETAIN_COMPLETED", 1000),
		RetainFailedFor: time.Duration(getEnvInt("QUEUE_RETAIN_FAILED_SECONDS", 604800)) * time.Second,
	}

	enqueuerCfg := EnqueuerConfig{
		Interval:  time.Duration(getEnvInt("ENQUEUER_INTERVAL_SECONDS", 60)) * time.Second,
		BatchSize: getEnvInt("ENQUEUER_BATCH_SIZE", 20),
	}

	deviceCfg := DeviceConfig{
		APIKey:          getEnv("DUOPLUS_API_KEY", ""),
		BaseURL:         getEnv("DUOPLUS_BASE_URL", "https://openapi.duoplus.net"),
		StartRetries:    getEnvInt("DEVICE_START_RETRIES", 3),
		StartRetryPause: time.Duration(getEnvInt("DEVICE_START_RETRY_PAUSE_SECONDS", 10)) * time.Second,
		PollInterval:    time.Duration(getEnvInt("DEVICE_POLL_INTERVAL_SECONDS", 10)) * time.Second,
		ReadyTimeout:    time.Duration(getEnvInt("DEVICE_READY_TIMEOUT_SECONDS", 150)) * time.Second,
		ExecuteTimeout:  time.Duration(getEnvInt("DEVICE_EXECUTE_TIMEOUT_SECONDS", 120)) * time.Second,
	}

	plannerCfg := PlannerConfig{
		ConversationEnabled: getEnvBool("PLANNER_CONVERSATION_ENABLED", true),
		MaxConversationSize: getEnvInt("PLANNER_CONVERSATION_SIZE", 3),
	}

	aiCfg := AIConfig{
		Provider:     getEnv("AI_PROVIDER", "gemini"),
		Model:        getEnv("AI_MODEL", ""),
		SystemPrompt: getEnv("AI_GLOBAL_SYSTEM_PROMPT", ""),
	}

	cfg := &Config{
		App:      appCfg,
		Paths:    pathsCfg,
		Database: dbCfg,
		Queue:    queueCfg,
		Enqueuer: enqueuerCfg,
		Device:   deviceCfg,
		Planner:  plannerCfg,
		AI:       aiCfg,
		APIKeys: APIKeysConfig{
			Gemini: getEnv("GEMINI_API_KEY", ""),
			OpenAI: getEnv("OPENAI_API_KEY", ""),
		},
	}

	Global = cfg
	return cfg, nil
}
