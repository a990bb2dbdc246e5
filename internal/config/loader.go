package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a config file (YAML or JSON) on top of the defaults.
// Format is detected by extension (.yaml/.yml, .json) or by content.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes over Default. ext is a format hint; empty means
// detect from content (JSON when it starts with "{", else YAML).
func Load(data []byte, ext string) (*Config, error) {
	c := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}

	if ext == ".json" {
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Env variables that override file settings.
const (
	EnvOutputDir       = "IMGNET_OUTPUT_DIR"
	EnvLogLevel        = "IMGNET_LOG_LEVEL"
	EnvBucketEndpoint  = "IMGNET_BUCKET_ENDPOINT"
	EnvBucketName      = "IMGNET_BUCKET"
	EnvBucketAccessKey = "IMGNET_BUCKET_ACCESS_KEY_ID"
	EnvBucketSecretKey = "IMGNET_BUCKET_SECRET_ACCESS_KEY"
)

// ApplyEnv overrides settings from the environment. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Output.Dir, EnvOutputDir)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Bucket.Endpoint, EnvBucketEndpoint)
	set(&c.Bucket.Bucket, EnvBucketName)
	set(&c.Bucket.AccessKeyID, EnvBucketAccessKey)
	set(&c.Bucket.SecretAccessKey, EnvBucketSecretKey)
}
