// Package config loads runtime configuration for replacechain. Values come
// from an optional YAML file, REPLACECHAIN_* environment variables and
// command-line flags bound by the CLI, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REPLACECHAIN"

// DefaultFileName is searched for in the working and home directories when
// no explicit config file is given.
const DefaultFileName = ".replacechain"

// StorageConfig selects the state backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	FilePath    string `mapstructure:"file_path"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	BadgerPath  string `mapstructure:"badger_path"`
	BlobPrefix  string `mapstructure:"blob_prefix"`
	BlobRetain  int    `mapstructure:"blob_retain"`
}

// S3Config configures the S3 blob backend.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// BlobConfig configures the object store used for blob snapshots and
// uploaded exports.
type BlobConfig struct {
	Driver        string        `mapstructure:"driver"`
	FSRoot        string        `mapstructure:"fs_root"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	S3            S3Config      `mapstructure:"s3"`
}

// LogConfig controls the slog handler built by the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Config holds all runtime configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

var defaults = map[string]any{
	"storage.driver":       "file",
	"storage.file_path":    "replacechain-state.json",
	"storage.sqlite_path":  "replacechain.db",
	"storage.postgres_dsn": "",
	"storage.badger_path":  "replacechain-badger",
	"storage.blob_prefix":  "state/",
	"storage.blob_retain":  5,

	"blob.driver":         "fs",
	"blob.fs_root":        "replacechain-blobs",
	"blob.presign_expiry": 15 * time.Minute,

	"blob.s3.region":            "us-east-1",
	"blob.s3.bucket":            "",
	"blob.s3.endpoint":          "",
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",
	"blob.s3.session_token":     "",
	"blob.s3.path_style":        false,

	"log.level":             "info",
	"log.format":            "text",
	"http.addr":             ":8080",
	"http.shutdown_timeout": 10 * time.Second,
}

// legacyEnv are short variable names accepted alongside the derived ones.
var legacyEnv = map[string]string{
	"storage.sqlite_path":  "REPLACECHAIN_SQLITE_PATH",
	"storage.postgres_dsn": "REPLACECHAIN_POSTGRES_DSN",
	"storage.file_path":    "REPLACECHAIN_STATE_FILE",
	"blob.s3.bucket":       "REPLACECHAIN_S3_BUCKET",
}

// NewViper returns a viper instance with defaults and environment bindings
// applied. Callers may bind flags and read a file before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		derived := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, derived, env)
	}
	return v
}

// ReadFile loads path into v. An empty path searches for DefaultFileName
// and tolerates its absence; an explicit path must exist.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName(DefaultFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg, err := Load(NewViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

var (
	storageDrivers = []string{"memory", "file", "sqlite", "postgres", "badger", "blob"}
	blobDrivers    = []string{"fs", "s3", "memory"}
	logLevels      = []string{"debug", "info", "warn", "error"}
	logFormats     = []string{"text", "json"}
)

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !oneOf(c.Storage.Driver, storageDrivers) {
		return fmt.Errorf("storage.driver %q: want one of %s", c.Storage.Driver, strings.Join(storageDrivers, ", "))
	}
	if !oneOf(c.Blob.Driver, blobDrivers) {
		return fmt.Errorf("blob.driver %q: want one of %s", c.Blob.Driver, strings.Join(blobDrivers, ", "))
	}
	if c.Storage.BlobRetain < 1 {
		return fmt.Errorf("storage.blob_retain must be at least 1, got %d", c.Storage.BlobRetain)
	}
	if !oneOf(strings.ToLower(c.Log.Level), logLevels) {
		return fmt.Errorf("log.level %q: want one of %s", c.Log.Level, strings.Join(logLevels, ", "))
	}
	if !oneOf(strings.ToLower(c.Log.Format), logFormats) {
		return fmt.Errorf("log.format %q: want one of %s", c.Log.Format, strings.Join(logFormats, ", "))
	}
	if c.HTTP.ShutdownTimeout < 0 {
		return fmt.Errorf("http.shutdown_timeout must not be negative")
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
