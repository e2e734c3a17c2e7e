package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Definition formats. FormatAuto picks the loader by file extension.
const (
	FormatAuto = "auto"
	FormatHCL  = "hcl"
	FormatYAML = "yaml"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPaths are definition files or directories.
	ConfigPaths []string `validate:"min=1,dive,required"`
	Format      string   `validate:"oneof=auto hcl yaml"`

	StoreBackend string `validate:"oneof=memory file badger"`
	StateDir     string `validate:"required_unless=StoreBackend memory"`

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	// MetricsPort serves /health and /metrics. 0 disables the server.
	MetricsPort int `validate:"gte=0,lte=65535"`

	// SocketIOURL enables the remote preview bridge when set.
	SocketIOURL       string `validate:"omitempty,url"`
	SocketIONamespace string
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// NewConfig applies defaults to cfg and validates it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Format == "" {
		cfg.Format = FormatAuto
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Format = strings.ToLower(cfg.Format)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := configValidator.Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return &cfg, nil
}
