// Package config loads the dashboard configuration. Values are resolved in
// increasing precedence from built-in defaults, a YAML file, a .env file and
// the process environment (prefix BIKESHARE).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"bikeshare-dashboard/pkg/database"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "BIKESHARE"

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

// Dataset source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Dataset  DatasetConfig  `yaml:"dataset" envconfig:"DATASET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true" validate:"required"`
	Port            int           `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
}

// DatabaseConfig contains PostgreSQL connection settings. It is only used
// when the dataset source is postgres and by the ingester and migrate tools.
type DatabaseConfig struct {
	Host            string        `yaml:"host" split_words:"true" validate:"required"`
	Port            int           `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	User            string        `yaml:"user" split_words:"true" validate:"required"`
	Password        string        `yaml:"password" split_words:"true"`
	Database        string        `yaml:"database" split_words:"true" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" split_words:"true" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true" validate:"min=0"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
}

// DatasetConfig selects where the rental dataset is read from and how its
// columns are interpreted.
type DatasetConfig struct {
	Source          string   `yaml:"source" split_words:"true" validate:"oneof=file postgres"`
	Paths           []string `yaml:"paths" split_words:"true" validate:"required_if=Source file,max=2,dive,required"`
	Schema          string   `yaml:"schema" split_words:"true" validate:"oneof=daily hourly merged"`
	SourceName      string   `yaml:"source_name" split_words:"true" validate:"required_if=Source postgres"`
	TableRows       int      `yaml:"table_rows" split_words:"true" validate:"min=0"`
	IngestBatchSize int      `yaml:"ingest_batch_size" split_words:"true" validate:"min=1"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "bikeshare",
			Database:        "bikeshare",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Dataset: DatasetConfig{
			Source:          SourceFile,
			Paths:           []string{"dashboard/all_data.csv"},
			Schema:          "merged",
			SourceName:      "all_data",
			TableRows:       500,
			IngestBatchSize: 1000,
		},
	}
}

// LoadConfig resolves the configuration. The YAML file is taken from
// BIKESHARE_CONFIG_FILE, or config.yaml when that file exists. The .env file
// is taken from BIKESHARE_ENV_FILE, or .env when that file exists; it never
// overrides variables already set in the environment.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	path, explicit := os.LookupEnv(EnvPrefix + "_CONFIG_FILE")
	if !explicit {
		path = defaultConfigFile
	}
	if err := loadFromFile(path, explicit, &cfg); err != nil {
		return nil, err
	}

	envFile, explicit := os.LookupEnv(EnvPrefix + "_ENV_FILE")
	if !explicit {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Dataset.Schema = strings.ToLower(strings.TrimSpace(cfg.Dataset.Schema))
	cfg.Dataset.Source = strings.ToLower(strings.TrimSpace(cfg.Dataset.Source))

	return &cfg, nil
}

func loadFromFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration with its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// UsesDatabase reports whether the dashboard reads its dataset from
// PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.Dataset.Source == SourcePostgres
}

// Postgres converts the database section for pkg/database.
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}
