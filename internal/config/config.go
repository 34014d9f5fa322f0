// Package config loads and holds the client runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the global configuration, filled by Init.
var Conf Config

// Config mirrors the layout of configs/config.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Converter ConverterConfig `mapstructure:"converter"`
	Download  DownloadConfig  `mapstructure:"download"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ServerConfig holds the command surface listener settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ProxyConfig points at the search proxy.
type ProxyConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SearchPath string `mapstructure:"search_path"`
	Debug      bool   `mapstructure:"debug"`
}

// CatalogConfig points at the title listing endpoint.
type CatalogConfig struct {
	TitlesURL string `mapstructure:"titles_url"`
}

// ConverterConfig points at the conversion service.
type ConverterConfig struct {
	ProcessURL   string `mapstructure:"process_url"`
	ReportSuffix string `mapstructure:"report_suffix"`
}

// DownloadConfig controls where saved files go and which hosts may be
// streamed directly.
type DownloadConfig struct {
	Sink         string   `mapstructure:"sink"` // local | minio
	Dir          string   `mapstructure:"dir"`
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Store     string `mapstructure:"store"` // file | redis | memory
	FilePath  string `mapstructure:"file_path"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig holds object storage settings for the minio sink.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	LinkExpiryMin   int    `mapstructure:"link_expiry_min"`
}

// KafkaConfig holds the action journal settings. An empty Brokers disables it.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)

	v.SetDefault("proxy.base_url", "http://localhost:8000")
	v.SetDefault("proxy.search_path", "/api/proxy")
	v.SetDefault("proxy.debug", false)

	v.SetDefault("catalog.titles_url", "http://localhost:8000/titles")

	v.SetDefault("converter.process_url", "http://localhost:8000/titles/process")
	v.SetDefault("converter.report_suffix", "_report.xlsx")

	v.SetDefault("download.sink", "local")
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.allowed_hosts", []string{})

	v.SetDefault("session.store", "file")
	v.SetDefault("session.file_path", "./data/session.json")
	v.SetDefault("session.key_prefix", "agri:client")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "agri-reports")
	v.SetDefault("minio.link_expiry_min", 60)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "agri-actions")
}

// Load reads configPath (if it exists) on top of defaults and environment
// overrides (AGRI_PROXY_BASE_URL and so on).
func Load(configPath string) (Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AGRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Init loads the configuration into Conf and panics on failure.
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	Conf = cfg
}

// Validate rejects settings the runtime cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Proxy.BaseURL) == "" {
		return errors.New("proxy.base_url is required")
	}
	switch c.Session.Store {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("session.store %q: want file, redis or memory", c.Session.Store)
	}
	switch c.Download.Sink {
	case "local", "minio":
	default:
		return fmt.Errorf("download.sink %q: want local or minio", c.Download.Sink)
	}
	if c.Download.Sink == "minio" && c.MinIO.Endpoint == "" {
		return errors.New("minio.endpoint is required for the minio sink")
	}
	return nil
}

// SearchURL is the full proxy endpoint.
func (p ProxyConfig) SearchURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(p.SearchPath, "/")
}
