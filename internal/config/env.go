package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ADOEnv addresses the Azure DevOps project. None of the values are
// required here: a missing PAT shows up as an authentication failure on the
// first remote call.
type ADOEnv struct {
	Org        string `envconfig:"ORG"`
	Project    string `envconfig:"PROJECT"`
	PAT        string `envconfig:"PAT"`
	BaseURL    string `envconfig:"BASE_URL" default:"https://dev.azure.com"`
	APIVersion string `envconfig:"API_VERSION" default:"7.1"`
}

type SessionEnv struct {
	Storage string `envconfig:"SESSION_STORAGE" default:"local"`
	Dir     string `envconfig:"SESSION_DIR"`
	// S3 settings (used when Storage == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"adotask/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

// HTTPEnv configures the streamable HTTP transport. When APIKey is set,
// every request except the health checks must present it.
type HTTPEnv struct {
	Host   string `envconfig:"HTTP_HOST" default:""`
	Port   string `envconfig:"HTTP_PORT" default:"3200"`
	APIKey string `envconfig:"HTTP_API_KEY"`
}

type Env struct {
	BaseEnv
	ADOEnv
	SessionEnv
	HTTPEnv
}

const namespace = "ADO"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.SessionEnv.Dir == "" {
		dir, err := defaultSessionDir()
		if err != nil {
			return nil, err
		}
		env.SessionEnv.Dir = dir
	}
	return &env, nil
}

func defaultSessionDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "adotask"), nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
