// Package config loads the service options the scheduler is configured
// with and watches the backing file for changes, publishing validated
// reloads to subscribers.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy mirrors scheduler.Policy's wire shape for config-file purposes
// without importing the scheduler package, keeping config a leaf.
type Policy struct {
	MaxLatenessMs  int64 `yaml:"maxLatenessMs"`
	RetryMax       int   `yaml:"retryMax"`
	RetryBackoffMs int64 `yaml:"retryBackoffMs"`
	DeleteAfterRun bool  `yaml:"deleteAfterRun"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
	Pretty bool  `yaml:"pretty"`
}

// ExecutorConfig selects and configures the conversational-agent adapter.
type ExecutorConfig struct {
	Backend string `yaml:"backend"` // anthropic|openai
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// NotifyConfig controls the run-lifecycle pub/sub fan-out.
type NotifyConfig struct {
	Backend string `yaml:"backend"` // none|redis
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// Config is the full set of service options (spec's "Configuration knobs"),
// plus the ambient sections this expansion adds.
type Config struct {
	StorePath       string          `yaml:"storePath"`
	BotName         string          `yaml:"botName"`
	Enabled         *bool           `yaml:"enabled"`
	DefaultTimezone string          `yaml:"defaultTimezone"`
	MaxJobsPerChat  int             `yaml:"maxJobsPerChat"`
	MaxRunMs        int64           `yaml:"maxRunMs"`
	DefaultPolicy   Policy          `yaml:"defaultPolicy"`
	Logging         LoggingConfig   `yaml:"logging"`
	Executor        ExecutorConfig  `yaml:"executor"`
	Notify          NotifyConfig    `yaml:"notify"`
}

// Default returns the built-in defaults so a config file can omit any
// section entirely. MaxRunMs, MaxJobsPerChat and DefaultTimezone match
// scheduler.New's own fallbacks; the DefaultPolicy values exist only here.
func Default() Config {
	return Config{
		StorePath:       "data/schedulerd/jobs.json",
		BotName:         "default",
		DefaultTimezone: "Local",
		MaxJobsPerChat:  20,
		MaxRunMs:        10 * 60 * 1000,
		DefaultPolicy: Policy{
			MaxLatenessMs:  5 * 60 * 1000,
			RetryMax:       3,
			RetryBackoffMs: 30 * 1000,
		},
		Logging: LoggingConfig{Level: "info"},
		Executor: ExecutorConfig{
			Backend: "anthropic",
			Model:   "claude-3-5-haiku-latest",
		},
		Notify: NotifyConfig{Backend: "none"},
	}
}

// WithDefaults fills in zero-valued fields from Default(), mirroring the
// tri-state *bool-for-enabled defaulting pattern used elsewhere in the
// stack's own config layer.
func (c Config) WithDefaults() Config {
	out := c
	def := Default()

	if out.Enabled == nil {
		v := true
		out.Enabled = &v
	}
	if strings.TrimSpace(out.StorePath) == "" {
		out.StorePath = def.StorePath
	}
	if strings.TrimSpace(out.BotName) == "" {
		out.BotName = def.BotName
	}
	if strings.TrimSpace(out.DefaultTimezone) == "" {
		out.DefaultTimezone = def.DefaultTimezone
	}
	if out.MaxJobsPerChat <= 0 {
		out.MaxJobsPerChat = def.MaxJobsPerChat
	}
	if out.MaxRunMs <= 0 {
		out.MaxRunMs = def.MaxRunMs
	}
	if out.DefaultPolicy.RetryBackoffMs < 1000 {
		out.DefaultPolicy.RetryBackoffMs = def.DefaultPolicy.RetryBackoffMs
	}
	if out.DefaultPolicy.MaxLatenessMs <= 0 {
		out.DefaultPolicy.MaxLatenessMs = def.DefaultPolicy.MaxLatenessMs
	}
	if out.DefaultPolicy.RetryMax <= 0 {
		out.DefaultPolicy.RetryMax = def.DefaultPolicy.RetryMax
	}
	if strings.TrimSpace(out.Logging.Level) == "" {
		out.Logging.Level = def.Logging.Level
	}
	if strings.TrimSpace(out.Executor.Backend) == "" {
		out.Executor.Backend = def.Executor.Backend
	}
	if strings.TrimSpace(out.Notify.Backend) == "" {
		out.Notify.Backend = def.Notify.Backend
	}
	return out
}

// Parse decodes YAML bytes into a Config, rejecting unknown fields so a
// typo in the file surfaces as a load error instead of being silently
// ignored.
func Parse(data []byte) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.WithDefaults(), nil
}

func marshalYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Load reads and parses the config file at path. A missing file yields the
// defaulted Config rather than an error.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default().WithDefaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default().WithDefaults(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}
