package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"sslmode"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// DSN builds a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig is optional; an empty Address keeps broadcast local to this instance.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type StorageConfig struct {
	Driver  string      `mapstructure:"driver"` // "local" | "s3"
	BaseURL string      `mapstructure:"base_url"`
	Local   LocalConfig `mapstructure:"local"`
	S3      S3Config    `mapstructure:"s3"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicURL       string `mapstructure:"public_url"`
}

type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads config/config.yaml when present and overlays environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret must be set")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "activities")
	v.SetDefault("database.password", "activities_dev_password")
	v.SetDefault("database.name", "activities")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.migrations_dir", "./migrations")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "activities.events")

	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.token_ttl", "168h")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.base_url", "/uploads")
	v.SetDefault("storage.local.base_path", "./data/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")

	v.SetDefault("reconciler.interval", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.migrations_dir", "DB_MIGRATIONS_DIR")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.token_ttl", "JWT_TTL")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("reconciler.interval", "RECONCILER_INTERVAL")
	v.BindEnv("log.level", "LOG_LEVEL")
}
