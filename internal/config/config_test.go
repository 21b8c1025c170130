package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if !cfg.Execution.DryRun {
		t.Error("dry run must be the default")
	}
	if cfg.RateLimit.Requests != 15 || cfg.RateLimit.Window != time.Second {
		t.Errorf("rate limit %+v", cfg.RateLimit)
	}
	if cfg.Monitor.ProgramID != defaultProgramID {
		t.Errorf("program id %s", cfg.Monitor.ProgramID)
	}
	if cfg.Strategy.SlippageBps != 50 || cfg.Strategy.ComputeUnitLimit != 200_000 {
		t.Errorf("strategy %+v", cfg.Strategy)
	}
	if cfg.Redis.KeyPrefix != "sandwich" {
		t.Errorf("redis prefix %q", cfg.Redis.KeyPrefix)
	}
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sandwich.yaml")
	yaml := `
rpc:
  url: https://file.example
strategy:
  max_trade_size: 50000
  min_margin: 5
execution:
  poll_interval: 250ms
notify:
  events: [front_only_landed]
journal:
  s3:
    bucket: archive
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SANDWICH_STRATEGY_MIN_MARGIN", "7")
	t.Setenv("SANDWICH_REDIS_ADDR", "localhost:6379")
	t.Setenv("SANDWICH_JOURNAL_S3_REGION", "auto")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse([]string{"--rpc-url=https://flag.example", "--journal-dir", dir}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(LoadOptions{File: file, Flags: flags})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RPC.URL != "https://flag.example" {
		t.Errorf("flag must win over file, got %s", cfg.RPC.URL)
	}
	if cfg.Strategy.MaxTradeSize != 50_000 {
		t.Errorf("max trade size %d", cfg.Strategy.MaxTradeSize)
	}
	if cfg.Strategy.MinMargin != 7 {
		t.Errorf("env must win over file, min margin %d", cfg.Strategy.MinMargin)
	}
	if cfg.Execution.PollInterval != 250*time.Millisecond {
		t.Errorf("poll interval %s", cfg.Execution.PollInterval)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr %q", cfg.Redis.Addr)
	}
	if len(cfg.Notify.Events) != 1 || cfg.Notify.Events[0] != "front_only_landed" {
		t.Errorf("events %v", cfg.Notify.Events)
	}
	if cfg.Journal.Dir != dir || cfg.Journal.S3.Bucket != "archive" || cfg.Journal.S3.Region != "auto" {
		t.Errorf("journal %+v", cfg.Journal)
	}
	if !cfg.Execution.DryRun {
		t.Error("unchanged dry-run flag must keep the default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("SANDWICH_MONITOR_SOURCE=stream\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SANDWICH_MONITOR_SOURCE", "")
	os.Unsetenv("SANDWICH_MONITOR_SOURCE")

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.Source != "stream" {
		t.Errorf("source %q, want stream from env file", cfg.Monitor.Source)
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	if _, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env")}); err != nil {
		t.Errorf("missing env file must be ignored: %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_CommaSeparatedEvents(t *testing.T) {
	t.Setenv("SANDWICH_NOTIFY_EVENTS", "front_only_landed, neither_landed,")
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Notify.Events) != 2 || cfg.Notify.Events[1] != "neither_landed" {
		t.Errorf("events %q", cfg.Notify.Events)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero rate", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit.requests"},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, "rate_limit.burst"},
		{"trade size above int64", func(c *Config) { c.Strategy.MaxTradeSize = 1 << 63 }, "max_trade_size"},
		{"zero trade size", func(c *Config) { c.Strategy.MaxTradeSize = 0 }, "max_trade_size"},
		{"negative margin", func(c *Config) { c.Strategy.MinMargin = -1 }, "min_margin"},
		{"full slippage", func(c *Config) { c.Strategy.SlippageBps = 10_000 }, "slippage_bps"},
		{"no workers", func(c *Config) { c.Execution.MaxInFlight = 0 }, "max_in_flight"},
		{"live without wallet", func(c *Config) { c.Execution.DryRun = false }, "wallet"},
		{"stream without ws", func(c *Config) { c.Monitor.Source = "stream" }, "ws_url"},
		{"unknown source", func(c *Config) { c.Monitor.Source = "mempool" }, "monitor.source"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "postgres_dsn"},
		{"telegram without chat", func(c *Config) { c.Notify.TelegramToken = "t" }, "telegram_chat_id"},
		{"s3 without dir", func(c *Config) { c.Journal.S3.Bucket = "b"; c.Journal.S3.Region = "r" }, "journal.dir"},
		{"unknown journal kind", func(c *Config) { c.Journal.Kinds = []string{"mempool"} }, "journal.kinds"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(LoadOptions{})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.RPC.URL = ""
	cfg.RateLimit.Window = 0
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "rpc.url") || !strings.Contains(msg, "rate_limit.window") {
		t.Errorf("expected both problems, got %q", msg)
	}
}
