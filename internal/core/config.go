package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/foodlog/internal/backend/imageprocessing"
	"github.com/jo-hoe/foodlog/internal/backend/storage"
	"github.com/jo-hoe/foodlog/internal/inference"
)

const DefaultUserID = "TEST_USER"

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite postgres"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type Inference struct {
	APIKey  string        `yaml:"apiKey" validate:"required"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type S3 struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLite struct {
	ConnectionString string `yaml:"connectionString"`
}

type Storage struct {
	Type          string `yaml:"type" validate:"required,oneof=s3 redis sqlite"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"publicBaseURL" validate:"required"`
	UniqueSuffix  bool   `yaml:"uniqueSuffix"`
	S3            S3     `yaml:"s3"`
	Redis         Redis  `yaml:"redis"`
	SQLite        SQLite `yaml:"sqlite"`
}

type ImageProcessing struct {
	JpegQuality int             `yaml:"jpegQuality" validate:"min=0,max=100"`
	MaxPixels   int             `yaml:"maxPixels" validate:"min=0,max=100000000"`
	Commands    []CommandConfig `yaml:"commands"`
}

type ServiceConfig struct {
	Port            int             `yaml:"port" validate:"min=1,max=65535"`
	LogLevel        string          `yaml:"logLevel" validate:"oneof=debug info warn error"`
	Timezone        string          `yaml:"timezone"`
	DefaultUserID   string          `yaml:"defaultUserID" validate:"required"`
	Inference       Inference       `yaml:"inference"`
	Storage         Storage         `yaml:"storage"`
	Database        Database        `yaml:"database"`
	ImageProcessing ImageProcessing `yaml:"imageProcessing"`

	location *time.Location
}

// LoadConfig loads configuration from the specified YAML file.
// ${VAR} references are replaced with environment values before parsing.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyDefaults()

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	// Validate commands
	if err := validateCommands(config.ImageProcessing.Commands); err != nil {
		return nil, fmt.Errorf("invalid command configuration: %w", err)
	}

	if err := config.validateStorageBackend(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	config.location, err = time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	return &config, nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.DefaultUserID == "" {
		c.DefaultUserID = DefaultUserID
	}
	if c.Inference.Model == "" {
		c.Inference.Model = inference.DefaultModel
	}
	if c.Inference.Timeout <= 0 {
		c.Inference.Timeout = inference.DefaultTimeout
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = storage.DefaultBucket
	}
	if c.ImageProcessing.JpegQuality == 0 {
		c.ImageProcessing.JpegQuality = imageprocessing.DefaultJpegQuality
	}
	if c.ImageProcessing.MaxPixels == 0 {
		c.ImageProcessing.MaxPixels = imageprocessing.DefaultMaxPixels
	}
}

func (c *ServiceConfig) validateStorageBackend() error {
	switch c.Storage.Type {
	case "s3":
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("s3 storage requires a region")
		}
	case "redis":
		if c.Storage.Redis.Address == "" {
			return fmt.Errorf("redis storage requires an address")
		}
	case "sqlite":
		if c.Storage.SQLite.ConnectionString == "" {
			return fmt.Errorf("sqlite storage requires a connectionString")
		}
	}
	return nil
}

// Location returns the time zone used for object paths and log dates
func (c *ServiceConfig) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// SlogLevel maps the configured log level to a slog level
func (c *ServiceConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *ServiceConfig) imageCommandConfigs() []imageprocessing.CommandConfig {
	configs := make([]imageprocessing.CommandConfig, 0, len(c.ImageProcessing.Commands))
	for _, cmd := range c.ImageProcessing.Commands {
		configs = append(configs, imageprocessing.CommandConfig{Name: cmd.Name, Params: cmd.Params})
	}
	return configs
}

func (c *ServiceConfig) storageOptions() storage.Options {
	return storage.Options{
		Type:          c.Storage.Type,
		PublicBaseURL: c.Storage.PublicBaseURL,
		S3: storage.S3Options{
			Endpoint:        c.Storage.S3.Endpoint,
			Region:          c.Storage.S3.Region,
			AccessKeyID:     c.Storage.S3.AccessKeyID,
			SecretAccessKey: c.Storage.S3.SecretAccessKey,
		},
		RedisAddress:           c.Storage.Redis.Address,
		RedisPassword:          c.Storage.Redis.Password,
		RedisDB:                c.Storage.Redis.DB,
		SQLiteConnectionString: c.Storage.SQLite.ConnectionString,
	}
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if !imageprocessing.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("command at index %d has unknown name: %s", i, cmd.Name)
		}
	}
	return nil
}
