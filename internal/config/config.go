package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// LogConfig controls logger level and encoding
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// AgentConfig is the configuration of the recorder agent
type AgentConfig struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Log       LogConfig       `yaml:"log"`
	Device    DeviceConfig    `yaml:"device"`
	Recording RecordingConfig `yaml:"recording"`
	Upload    UploadConfig    `yaml:"upload"`
	Server    IntakeConfig    `yaml:"server"`
}

type DeviceConfig struct {
	ID        string `yaml:"id" env:"AGENT_ID"`
	UserAgent string `yaml:"user_agent" env:"AGENT_USER_AGENT"`
}

type RecordingConfig struct {
	SessionID        string        `yaml:"session_id" env:"SESSION_ID"`
	AutoStart        bool          `yaml:"auto_start" env:"RECORDING_AUTO_START" env-default:"true"`
	RetentionWindow  time.Duration `yaml:"retention_window" env:"RECORDING_RETENTION_WINDOW" env-default:"60s"`
	EvictionInterval time.Duration `yaml:"eviction_interval" env:"RECORDING_EVICTION_INTERVAL" env-default:"1s"`
	UploadInterval   time.Duration `yaml:"upload_interval" env:"RECORDING_UPLOAD_INTERVAL" env-default:"30s"`
}

type UploadConfig struct {
	ServerURL     string        `yaml:"server_url" env:"UPLOAD_SERVER_URL" env-required:"true"`
	APIKey        string        `yaml:"api_key" env:"UPLOAD_API_KEY"`
	ProjectKey    string        `yaml:"project_key" env:"UPLOAD_PROJECT_KEY"`
	MaxRetryCount int           `yaml:"max_retry_count" env:"UPLOAD_MAX_RETRY_COUNT" env-default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"UPLOAD_RETRY_DELAY" env-default:"1s"`
	Timeout       time.Duration `yaml:"timeout" env:"UPLOAD_TIMEOUT" env-default:"10s"`
	Packer        string        `yaml:"packer" env:"UPLOAD_PACKER" env-default:"gzip"`
}

type IntakeConfig struct {
	Enabled bool `yaml:"enabled" env:"INTAKE_ENABLED" env-default:"true"`
	Port    int  `yaml:"port" env:"INTAKE_PORT" env-default:"9301"`
}

// ServerConfig is the configuration of the collection server
type ServerConfig struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Jira      JiraConfig      `yaml:"jira"`
	Slack     SlackConfig     `yaml:"slack"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type HTTPConfig struct {
	Port                int           `yaml:"port" env:"PORT" env-default:"5000"`
	ReadTimeout         time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout        time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	MaxBodySize         int64         `yaml:"max_body_size" env:"MAX_BODY_SIZE" env-default:"10485760"`
	NotificationTimeout time.Duration `yaml:"notification_timeout" env:"NOTIFICATION_TIMEOUT" env-default:"10s"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path   string `yaml:"path" env:"STORAGE_PATH" env-default:"session-replay.db"`
	DSN    string `yaml:"dsn" env:"DATABASE_URL"`
	// MaxConns applies to postgres only
	MaxConns int32 `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"10"`
}

type JiraConfig struct {
	APIURL   string `yaml:"api_url" env:"JIRA_API_URL"`
	Email    string `yaml:"email" env:"JIRA_EMAIL"`
	APIToken string `yaml:"api_token" env:"JIRA_API_TOKEN"`
}

type SlackConfig struct {
	ChatLink  string `yaml:"chat_link" env:"SLACK_CHAT_LINK"`
	BotToken  string `yaml:"bot_token" env:"SLACK_BOT_TOKEN"`
	ChannelID string `yaml:"channel_id" env:"SLACK_CHANNEL_ID"`
}

type ViewerConfig struct {
	BaseURL string `yaml:"base_url" env:"VIEWER_BASE_URL"`
}

type ArchiveConfig struct {
	Enabled bool          `yaml:"enabled" env:"ARCHIVE_ENABLED" env-default:"false"`
	Region  string        `yaml:"region" env:"ARCHIVE_REGION" env-default:"ap-northeast-2"`
	Bucket  string        `yaml:"bucket" env:"ARCHIVE_BUCKET"`
	Prefix  string        `yaml:"prefix" env:"ARCHIVE_PREFIX" env-default:"session-replay"`
	Retries int           `yaml:"retries" env:"ARCHIVE_RETRIES" env-default:"3"`
	Timeout time.Duration `yaml:"timeout" env:"ARCHIVE_TIMEOUT" env-default:"5s"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"TELEMETRY_ENABLED" env-default:"false"`
	ServiceName string `yaml:"service_name" env:"TELEMETRY_SERVICE_NAME" env-default:"replay-server"`
}

// LoadAgentConfig reads the agent config from path, or from the environment
// only when path is empty.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := read(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Upload.MaxRetryCount < 1 {
		cfg.Upload.MaxRetryCount = 1
	}
	if cfg.Recording.EvictionInterval <= 0 {
		return nil, fmt.Errorf("recording.eviction_interval must be positive")
	}
	return &cfg, nil
}

// LoadServerConfig reads the server config from path, or from the
// environment only when path is empty.
func LoadServerConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := read(path, &cfg); err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if cfg.Storage.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Archive.Enabled && cfg.Archive.Bucket == "" {
		return nil, fmt.Errorf("archive.bucket is required when archiving is enabled")
	}
	return &cfg, nil
}

func read(path string, cfg interface{}) error {
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("failed to read config from environment: %w", err)
		}
		return nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}
