package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"consolefwd/pkg/codec"
	"consolefwd/pkg/model"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for a consolefwd instance.
type Config struct {
	Console    ConsoleConfig   `yaml:"console"`
	Ingest     IngestConfig    `yaml:"ingest"`
	Outputs    OutputsConfig   `yaml:"outputs"`
	Redis      RedisConfig     `yaml:"redis"`
	Processors []ProcessorRule `yaml:"processors"`
}

type ConsoleConfig struct {
	Address       string `yaml:"address"`  // host:port, dialed as ws://address/ws
	Encoding      string `yaml:"encoding"` // json or cbor
	QueueCapacity int    `yaml:"queue_capacity"`
	Marker        string `yaml:"marker"` // origins containing this are forwarded
	LogLevel      string `yaml:"log_level"`
}

type IngestConfig struct {
	Stdin       bool   `yaml:"stdin"`
	TCPAddr     string `yaml:"tcp_addr"`
	UDPAddr     string `yaml:"udp_addr"`
	Target      string `yaml:"target"` // origin tag given to ingested lines
	MaxLineSize int    `yaml:"max_line_size"`
}

type OutputsConfig struct {
	Echo   bool         `yaml:"echo"` // copy frames to stdout
	Mirror MirrorConfig `yaml:"mirror"`
}

// MirrorConfig posts every frame to an HTTP collector when URL is set.
type MirrorConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// RedisConfig enables the control watcher when Address is set.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	ConfigKey string `yaml:"config_key"` // key holding the processor manifest
	Channel   string `yaml:"channel"`    // PubSub channel name
}

// ProcessorRule describes one processor in a chain. The same shape is
// used in the config file and the Redis manifest.
type ProcessorRule struct {
	ID     string            `yaml:"id" json:"id"`
	Type   string            `yaml:"type" json:"type"`
	Params map[string]string `yaml:"params" json:"params"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() *Config {
	return &Config{
		Console: ConsoleConfig{
			Address:       "127.0.0.1:11233",
			Encoding:      "json",
			QueueCapacity: 10000,
			Marker:        "mirrord",
			LogLevel:      "trace",
		},
		Ingest: IngestConfig{
			Target:      "mirrord::ingest",
			MaxLineSize: 1 << 20,
		},
		Redis: RedisConfig{
			ConfigKey: "consolefwd_config",
			Channel:   "consolefwd_updates",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := DefaultConfig()
	if err := Decode(bytes.NewReader(data), cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals YAML from r into cfg.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnvOverrides applies CONSOLEFWD_* variables on top of cfg.
func ApplyEnvOverrides(cfg *Config, logger *slog.Logger) error {
	override := func(name string, dst *string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
			logger.Debug("env override", "name", name)
		}
	}
	overrideInt := func(name string, dst *int) error {
		val := os.Getenv(name)
		if val == "" {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", name, val, err)
		}
		*dst = n
		logger.Debug("env override", "name", name)
		return nil
	}

	override("CONSOLEFWD_ADDRESS", &cfg.Console.Address)
	override("CONSOLEFWD_ENCODING", &cfg.Console.Encoding)
	override("CONSOLEFWD_MARKER", &cfg.Console.Marker)
	override("CONSOLEFWD_LOG_LEVEL", &cfg.Console.LogLevel)
	override("CONSOLEFWD_TARGET", &cfg.Ingest.Target)
	override("CONSOLEFWD_TCP_ADDR", &cfg.Ingest.TCPAddr)
	override("CONSOLEFWD_UDP_ADDR", &cfg.Ingest.UDPAddr)
	override("CONSOLEFWD_MIRROR_URL", &cfg.Outputs.Mirror.URL)
	override("CONSOLEFWD_REDIS_ADDR", &cfg.Redis.Address)
	override("CONSOLEFWD_REDIS_PASSWORD", &cfg.Redis.Password)

	if err := overrideInt("CONSOLEFWD_QUEUE_CAPACITY", &cfg.Console.QueueCapacity); err != nil {
		return err
	}
	if err := overrideInt("CONSOLEFWD_REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings New and the ingestors rely on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Console.Address) == "" {
		errs = append(errs, errors.New("console.address is required"))
	}
	if _, err := codec.ByName(c.Console.Encoding); err != nil {
		errs = append(errs, err)
	}
	if _, err := model.ParseLevel(c.Console.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("console.log_level: %w", err))
	}
	if c.Console.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("console.queue_capacity must be positive, got %d", c.Console.QueueCapacity))
	}
	if c.Console.Marker == "" {
		errs = append(errs, errors.New("console.marker is required"))
	} else if !strings.Contains(c.Ingest.Target, c.Console.Marker) {
		errs = append(errs, fmt.Errorf("ingest.target %q does not contain marker %q; ingested lines would be discarded",
			c.Ingest.Target, c.Console.Marker))
	}
	if c.Ingest.MaxLineSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.max_line_size must be positive, got %d", c.Ingest.MaxLineSize))
	}
	for i, rule := range c.Processors {
		if rule.Type == "" {
			errs = append(errs, fmt.Errorf("processors[%d]: type is required", i))
		}
	}
	return errors.Join(errs...)
}
