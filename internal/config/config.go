package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Mail     MailConfig     `mapstructure:"mail"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig selects the persistence backend. "memory" keeps everything
// in process and is meant for local runs and tests.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	// Lifetime of the access (session) token.
	Expiration time.Duration `mapstructure:"expiration"`
}

type AuthConfig struct {
	VerifyTokenTTL time.Duration `mapstructure:"verify_token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	AppBaseURL     string        `mapstructure:"app_base_url"`
}

// PlanLimitConfig mirrors domain.PlanLimits so it can be filled from YAML/env.
type PlanLimitConfig struct {
	Groups          int `mapstructure:"groups"`
	Exercises       int `mapstructure:"exercises"`
	Workouts        int `mapstructure:"workouts"`
	MembersPerGroup int `mapstructure:"members_per_group"`
}

type LimitsConfig struct {
	Free PlanLimitConfig `mapstructure:"free"`
	Pro  PlanLimitConfig `mapstructure:"pro"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Prefix       string        `mapstructure:"prefix"`
	EmailQueue   string        `mapstructure:"email_queue"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Concurrency  int           `mapstructure:"concurrency"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

type MailConfig struct {
	Sender        string `mapstructure:"sender"`
	Region        string `mapstructure:"region"`
	SignupSubject string `mapstructure:"signup_subject"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout or file
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Color      bool   `mapstructure:"color"`
	Stacktrace bool   `mapstructure:"stacktrace"`
}

type MetricsConfig struct {
	Enabled   bool      `mapstructure:"enabled"`
	Path      string    `mapstructure:"path"`
	Namespace string    `mapstructure:"namespace"`
	Buckets   []float64 `mapstructure:"buckets"`

	// WorkerAddress is where the worker process exposes Path; the API serves it on its own router.
	WorkerAddress string `mapstructure:"worker_address"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_upload_mb", 20)

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.name", "fitness_api")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.bucket_name", "exercises")

	// Registered so JWT_SECRET is picked up; Validate rejects it empty.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "24h")

	v.SetDefault("auth.verify_token_ttl", "30m")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.app_base_url", "http://localhost:8080")

	v.SetDefault("limits.free.groups", 1)
	v.SetDefault("limits.free.exercises", 10)
	v.SetDefault("limits.free.workouts", 5)
	v.SetDefault("limits.free.members_per_group", 5)
	v.SetDefault("limits.pro.groups", 20)
	v.SetDefault("limits.pro.exercises", 500)
	v.SetDefault("limits.pro.workouts", 100)
	v.SetDefault("limits.pro.members_per_group", 50)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.prefix", "fitness:tasks")
	v.SetDefault("queue.email_queue", "email")
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_backoff", "2s")
	v.SetDefault("queue.poll_timeout", "5s")

	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.region", "us-east-1")
	v.SetDefault("mail.signup_subject", "Confirm your email")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/fitness-api.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.color", false)
	v.SetDefault("logger.stacktrace", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "fitness")
	v.SetDefault("metrics.worker_address", ":9091")
}

// LoadConfig reads configuration from file or environment variables.
// path is the directory holding config.yaml; a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	var config Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, limits.free.exercises -> LIMITS_FREE_EXERCISES
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret must be set")
	}
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	for name, l := range map[string]PlanLimitConfig{"free": c.Limits.Free, "pro": c.Limits.Pro} {
		if l.Groups <= 0 || l.Exercises <= 0 || l.Workouts <= 0 || l.MembersPerGroup <= 0 {
			return fmt.Errorf("config: limits.%s must all be positive", name)
		}
	}
	if c.Auth.VerifyTokenTTL <= 0 || c.JWT.Expiration <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	return nil
}
