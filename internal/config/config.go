package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the main configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Uploader Uploader `mapstructure:"uploader"`
	Object   Object   `mapstructure:"object"`
	Retry    Retry    `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort  string `mapstructure:"http_port"`  // HTTP port to listen on
	MaxMemory int64  `mapstructure:"max_memory"` // multipart bytes kept in memory
}

// Uploader holds configuration of the upload pipeline.
type Uploader struct {
	ProfilesFile string `mapstructure:"profiles_file"` // file holding the "profiles" map
	TmpDir       string `mapstructure:"tmp_dir"`       // where received uploads are written
	Collect      bool   `mapstructure:"collect"`       // collect errors instead of failing on the first one
}

// Object holds configuration for the optional S3-compatible placement strategy.
type Object struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	PublicURL  string `mapstructure:"public_url"` // base of the URLs handed back to callers
	KeyPattern string `mapstructure:"key_pattern"` // object key template, same tags as profile paths
}

// Enabled reports whether an object store is configured.
func (o Object) Enabled() bool {
	return o.Endpoint != "" && o.BucketName != ""
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// envPrefix is prepended to every environment override, e.g. SAFEUPLOADER_SERVER_HTTP_PORT.
const envPrefix = "SAFEUPLOADER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.max_memory", 10<<20)
	v.SetDefault("uploader.profiles_file", "./config/profiles.yml")
	v.SetDefault("uploader.tmp_dir", "/tmp/safe-uploader/incoming")
	v.SetDefault("uploader.collect", false)
	v.SetDefault("object.endpoint", "")
	v.SetDefault("object.access_key", "")
	v.SetDefault("object.secret_key", "")
	v.SetDefault("object.bucket_name", "")
	v.SetDefault("object.use_ssl", false)
	v.SetDefault("object.public_url", "")
	v.SetDefault("object.key_pattern", "{_date}/{_uuid}-{_file}")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 200*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// Load reads the configuration file at path. Environment variables prefixed with
// SAFEUPLOADER_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
