// Package config loads imgnet settings from a YAML or JSON file, fills in
// defaults and applies IMGNET_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full settings tree.
type Config struct {
	Log    LogConfig    `json:"log" yaml:"log"`
	Fetch  FetchConfig  `json:"fetch" yaml:"fetch"`
	Output OutputConfig `json:"output" yaml:"output"`
	Bucket BucketConfig `json:"bucket" yaml:"bucket"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// FetchConfig tunes the remote source.
type FetchConfig struct {
	Timeout          Duration `json:"timeout" yaml:"timeout"`
	RateLimit        float64  `json:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst            int      `json:"burst" yaml:"burst"`
	UserAgent        string   `json:"user_agent" yaml:"user_agent"`
	ThumbnailSize    int      `json:"thumbnail_size" yaml:"thumbnail_size"`
	DefaultExtension string   `json:"default_extension" yaml:"default_extension"`
	MaxBytes         int64    `json:"max_bytes" yaml:"max_bytes"` // largest accepted image body
}

// OutputConfig says where exports are saved and under which names.
type OutputConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	ArchiveName string `json:"archive_name" yaml:"archive_name"`
	CSVName     string `json:"csv_name" yaml:"csv_name"`
}

// BucketConfig locates the S3-compatible store of the bucket target.
type BucketConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
}

// Configured reports whether enough is set to build a bucket target.
func (b BucketConfig) Configured() bool {
	return b.Endpoint != "" && b.Bucket != ""
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Fetch: FetchConfig{
			Timeout:          Duration(30 * time.Second),
			Burst:            1,
			UserAgent:        "imgnet/1.0",
			ThumbnailSize:    50,
			DefaultExtension: ".jpg",
			MaxBytes:         32 << 20,
		},
		Output: OutputConfig{
			Dir:         ".",
			ArchiveName: "imgnetmaker.zip",
			CSVName:     "imgnetmaker.csv",
		},
	}
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, errors.New("fetch.timeout must not be negative"))
	}
	if c.Fetch.RateLimit < 0 {
		errs = append(errs, errors.New("fetch.rate_limit must not be negative"))
	}
	if c.Fetch.MaxBytes < 0 {
		errs = append(errs, errors.New("fetch.max_bytes must not be negative"))
	}
	if c.Fetch.ThumbnailSize <= 0 {
		errs = append(errs, errors.New("fetch.thumbnail_size must be positive"))
	}
	for _, n := range []string{c.Output.ArchiveName, c.Output.CSVName} {
		if n == "" || strings.ContainsAny(n, `/\`) {
			errs = append(errs, fmt.Errorf("output names must be plain file names, got %q", n))
		}
	}
	return errors.Join(errs...)
}

// Duration is a time.Duration written as "30s" or "1m" in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "30s" strings or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %s", b)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML accepts "30s" strings or a number of seconds.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var secs float64
	if n.Tag == "!!int" || n.Tag == "!!float" {
		if err := n.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(n.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
