package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TokenEnv is the environment variable holding the bot credential. It is
// required at daemon startup and checked before any state is touched.
const TokenEnv = "TELEGRAM_BOT_TOKEN"

// Durable file names inside data.dir. The layout is part of the external
// interface (the enqueue entry point and the daemon share the mailbox marker).
const (
	SubscribersFile = "subscribers.txt"
	LastMessageFile = "last_message.txt"
	MailboxFile     = "pending_message.txt"
)

// Config is the daemon configuration. The file is optional; every field has
// a working default so `herald` runs with no config at all.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Poll      PollConfig      `json:"poll,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Data      DataConfig      `json:"data,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	// PollTimeout is the gateway long-poll timeout.
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`

	// Console is a pointer so "omitted" (default true) is distinguishable
	// from an explicit false.
	Console *bool             `json:"console,omitempty"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type PollConfig struct {
	// Interval between mailbox checks. Default "1s".
	Interval string `json:"interval,omitempty"`
}

type BroadcastConfig struct {
	// RatePerSec paces outgoing sends client-side. Default 10.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type DataConfig struct {
	// Dir holds the durable files (subscriber store, last message, mailbox
	// marker). Default ".".
	Dir string `json:"dir,omitempty"`
}

// StorageConfig controls the optional audit store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./herald_audit.jsonl" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite

	// Retention drops audit entries older than this ("720h" = 30 days).
	// Empty disables pruning.
	Retention string `json:"retention,omitempty"`

	// PruneSchedule is a cron expression for the retention job.
	// Default "0 3 * * *" (daily at 03:00).
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// Load reads and strictly decodes the config file. A missing file (or empty
// path) yields the defaults; a present-but-invalid file is an error rather
// than a silent fallback.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) DataDir() string {
	if c.Data.Dir != "" {
		return c.Data.Dir
	}
	return "."
}

func (c *Config) SubscribersPath() string { return filepath.Join(c.DataDir(), SubscribersFile) }
func (c *Config) LastMessagePath() string { return filepath.Join(c.DataDir(), LastMessageFile) }
func (c *Config) MailboxPath() string     { return filepath.Join(c.DataDir(), MailboxFile) }

func (c *Config) ConsoleLogging() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}

func (c *Config) PruneSchedule() string {
	if c.Storage == nil || c.Storage.PruneSchedule == "" {
		return "0 3 * * *"
	}
	return c.Storage.PruneSchedule
}
