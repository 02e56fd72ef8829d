package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DiscordConfig holds the application identity and the channels the bot manages.
type DiscordConfig struct {
	ApplicationID string `yaml:"application_id" envconfig:"DISCORD_APPLICATION_ID"`
	PublicKey     string `yaml:"public_key" envconfig:"DISCORD_PUBLIC_KEY"`
	BotToken      string `yaml:"bot_token" envconfig:"DISCORD_BOT_TOKEN"`
	// QuestionsWebhook is the incoming webhook URL used to post questions.
	// Its id doubles as the identity that triage trusts.
	QuestionsWebhook string `yaml:"questions_webhook" envconfig:"DISCORD_QUESTIONS_WEBHOOK"`
	QuestionChannel  string `yaml:"question_channel" envconfig:"DISCORD_QUESTION_CHANNEL"`
	// HTTPRetryAttempts bounds transport-level retries of failed dials. 0 disables them.
	HTTPRetryAttempts int `yaml:"http_retry_attempts" envconfig:"DISCORD_HTTP_RETRY_ATTEMPTS"`
}

// HTTPConfig specifies where the interactions endpoint listens.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port   int    `yaml:"port" envconfig:"HTTP_PORT"`
}

// Addr returns the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Listen, h.Port)
}

// StateConfig selects the storage backend for each state domain.
type StateConfig struct {
	FlagBackend   string `yaml:"flag_backend" envconfig:"STATE_FLAG_BACKEND"`
	PromptBackend string `yaml:"prompt_backend" envconfig:"STATE_PROMPT_BACKEND"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// S3Config points the flag store at an S3-compatible object.
type S3Config struct {
	Bucket   string `yaml:"bucket" envconfig:"STATE_S3_BUCKET"`
	Key      string `yaml:"key" envconfig:"STATE_S3_KEY"`
	Region   string `yaml:"region" envconfig:"STATE_S3_REGION"`
	Endpoint string `yaml:"endpoint" envconfig:"STATE_S3_ENDPOINT"`
}

// NATSConfig points the prompt store at a JetStream key/value bucket.
type NATSConfig struct {
	URL    string `yaml:"url" envconfig:"STATE_NATS_URL"`
	Bucket string `yaml:"bucket" envconfig:"STATE_NATS_BUCKET"`
	Key    string `yaml:"key" envconfig:"STATE_NATS_KEY"`
}

// DispatcherConfig tunes the worker pool that finishes deferred side effects.
type DispatcherConfig struct {
	QueueSize     int `yaml:"queue_size" envconfig:"DISPATCHER_QUEUE_SIZE"`
	Workers       int `yaml:"workers" envconfig:"DISPATCHER_WORKERS"`
	JobTimeoutSec int `yaml:"job_timeout_seconds" envconfig:"DISPATCHER_JOB_TIMEOUT_SECONDS"`
}

// JobTimeout converts JobTimeoutSec to a duration; zero lets the dispatcher pick its default.
func (d DispatcherConfig) JobTimeout() time.Duration {
	return time.Duration(d.JobTimeoutSec) * time.Second
}

// ReconcileConfig schedules the gate reconciler. An empty Spec disables it.
type ReconcileConfig struct {
	Spec string `yaml:"spec" envconfig:"RECONCILE_SPEC"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	File        string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// BackendPostgres keeps state in the bot's Postgres database.
	BackendPostgres = "postgres"
	// BackendS3 keeps the flag document in an S3 object.
	BackendS3 = "s3"
	// BackendNATS keeps the prompt reference in a JetStream key/value bucket.
	BackendNATS = "nats"
	// BackendMemory keeps state in process memory; it is lost on restart.
	BackendMemory = "memory"
)

const (
	defaultHTTPPort      = 8787
	defaultS3Key         = "questionbot/state.json"
	defaultS3Region      = "us-east-1"
	defaultNATSBucket    = "questionbot"
	defaultNATSKey       = "prompt"
	defaultReconcileSpec = "@every 10m"
)

// Config aggregates the bot configuration.
type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	HTTP       HTTPConfig       `yaml:"http"`
	State      StateConfig      `yaml:"state"`
	Database   DatabaseConfig   `yaml:"database"`
	S3         S3Config         `yaml:"s3"`
	NATS       NATSConfig       `yaml:"nats"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads configuration from an optional YAML file, a .env file and environment variables.
// Environment variables win over the file; an existing process environment wins over .env.
func Load(path string) (*Config, error) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: defaultHTTPPort},
		Reconcile: ReconcileConfig{Spec: defaultReconcileSpec},
	}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	d := &cfg.Discord
	d.ApplicationID = strings.TrimSpace(d.ApplicationID)
	d.PublicKey = strings.TrimSpace(d.PublicKey)
	d.BotToken = strings.TrimSpace(d.BotToken)
	d.QuestionsWebhook = strings.TrimSpace(d.QuestionsWebhook)
	d.QuestionChannel = strings.TrimSpace(d.QuestionChannel)
	switch {
	case d.ApplicationID == "":
		return fmt.Errorf("discord.application_id is required")
	case d.PublicKey == "":
		return fmt.Errorf("discord.public_key is required")
	case d.BotToken == "":
		return fmt.Errorf("discord.bot_token is required")
	case d.QuestionsWebhook == "":
		return fmt.Errorf("discord.questions_webhook is required")
	case d.QuestionChannel == "":
		return fmt.Errorf("discord.question_channel is required")
	}
	if d.HTTPRetryAttempts < 0 {
		return fmt.Errorf("discord.http_retry_attempts must be >= 0")
	}

	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = defaultHTTPPort
	}

	flag, err := normalizeBackend(cfg.State.FlagBackend, "state.flag_backend", BackendPostgres, BackendS3, BackendMemory)
	if err != nil {
		return err
	}
	cfg.State.FlagBackend = flag
	prompt, err := normalizeBackend(cfg.State.PromptBackend, "state.prompt_backend", BackendPostgres, BackendNATS, BackendMemory)
	if err != nil {
		return err
	}
	cfg.State.PromptBackend = prompt

	if cfg.UsesPostgres() && strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required when a state backend is %q", BackendPostgres)
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 5
	}

	if flag == BackendS3 {
		if strings.TrimSpace(cfg.S3.Bucket) == "" {
			return fmt.Errorf("s3.bucket is required when state.flag_backend is %q", BackendS3)
		}
		if cfg.S3.Key == "" {
			cfg.S3.Key = defaultS3Key
		}
		if cfg.S3.Region == "" {
			cfg.S3.Region = defaultS3Region
		}
	}

	if prompt == BackendNATS {
		if strings.TrimSpace(cfg.NATS.URL) == "" {
			return fmt.Errorf("nats.url is required when state.prompt_backend is %q", BackendNATS)
		}
		if cfg.NATS.Bucket == "" {
			cfg.NATS.Bucket = defaultNATSBucket
		}
		if cfg.NATS.Key == "" {
			cfg.NATS.Key = defaultNATSKey
		}
	}

	if cfg.Dispatcher.QueueSize < 0 || cfg.Dispatcher.Workers < 0 || cfg.Dispatcher.JobTimeoutSec < 0 {
		return fmt.Errorf("dispatcher settings must be >= 0")
	}

	cfg.Reconcile.Spec = strings.TrimSpace(cfg.Reconcile.Spec)
	return nil
}

// UsesPostgres reports whether any state domain is backed by Postgres.
func (c *Config) UsesPostgres() bool {
	return c.State.FlagBackend == BackendPostgres || c.State.PromptBackend == BackendPostgres
}

func normalizeBackend(raw, field, def string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return def, nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q; allowed: %s", field, raw, strings.Join(allowed, ", "))
}
