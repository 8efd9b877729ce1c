// Package config resolves run settings from a .env file and JARCALLS_*
// environment variables. Command-line flags override the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"jarcalls/internal/artifact"
)

// ErrInvalid is returned for an environment value that does not parse.
var ErrInvalid = errors.New("config: invalid value")

// Environment variable names.
const (
	EnvWorkers       = "JARCALLS_WORKERS"
	EnvDispatch      = "JARCALLS_DISPATCH"
	EnvNaming        = "JARCALLS_NAMING"
	EnvFormat        = "JARCALLS_FORMAT"
	EnvLogLevel      = "JARCALLS_LOG_LEVEL"
	EnvLogFormat     = "JARCALLS_LOG_FORMAT"
	EnvLogFile       = "JARCALLS_LOG_FILE"
	EnvMaxClassBytes = "JARCALLS_MAX_CLASS_BYTES"
	EnvExclude       = "JARCALLS_EXCLUDE"
	EnvS3Endpoint    = "JARCALLS_S3_ENDPOINT"
	EnvS3Region      = "JARCALLS_S3_REGION"
	EnvS3AccessKey   = "JARCALLS_S3_ACCESS_KEY"
	EnvS3SecretKey   = "JARCALLS_S3_SECRET_KEY"
	EnvS3UseSSL      = "JARCALLS_S3_USE_SSL"
)

// Config holds settings that may come from the environment.
type Config struct {
	Workers       int
	Dispatch      string
	Naming        string
	Format        string
	LogLevel      string
	LogJSON       bool
	LogFile       string
	MaxClassBytes int64
	Exclude       []string
	S3            S3Config
}

// S3Config describes the object store behind s3:// references.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Bucket converts c to the artifact loader's bucket settings.
func (c S3Config) Bucket() artifact.BucketConfig {
	return artifact.BucketConfig{
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		UseSSL:    c.UseSSL,
	}
}

// Load reads envFile into the process environment, if it exists, without
// overriding variables that are already set, then resolves the Config.
// An empty envFile reads .env from the working directory.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv resolves the Config through getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	c := &Config{
		Dispatch: get(EnvDispatch),
		Naming:   get(EnvNaming),
		Format:   get(EnvFormat),
		LogLevel: get(EnvLogLevel),
		LogFile:  get(EnvLogFile),
		Exclude:  splitList(get(EnvExclude)),
		S3: S3Config{
			Endpoint:  get(EnvS3Endpoint),
			Region:    firstNonEmpty(get(EnvS3Region), get("AWS_REGION"), "us-east-1"),
			AccessKey: firstNonEmpty(get(EnvS3AccessKey), get("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(get(EnvS3SecretKey), get("MINIO_ROOT_PASSWORD")),
			UseSSL:    true,
		},
	}

	switch f := strings.ToLower(get(EnvLogFormat)); f {
	case "", "text":
	case "json":
		c.LogJSON = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalid, EnvLogFormat, f)
	}
	if v := get(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalid, EnvWorkers, v)
		}
		c.Workers = n
	}
	if v := get(EnvMaxClassBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalid, EnvMaxClassBytes, v)
		}
		c.MaxClassBytes = n
	}
	if v := get(EnvS3UseSSL); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalid, EnvS3UseSSL, v)
		}
		c.S3.UseSSL = b
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
