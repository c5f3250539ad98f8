package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"postventa/internal/notify"
	"postventa/internal/outreach"
)

// fileConfig is the optional YAML configuration. Environment variables
// take precedence; the file fills whatever env leaves unset.
type fileConfig struct {
	Scheduler struct {
		Enabled      *bool  `yaml:"enabled"`
		Cron         string `yaml:"cron"`
		Timezone     string `yaml:"timezone"`
		DailyLimit   *int   `yaml:"daily_limit"`
		CooldownDays *int   `yaml:"cooldown_days"`
		TopN         *int   `yaml:"top_n"`
		Notify       *bool  `yaml:"notify"`
	} `yaml:"scheduler"`
	SMTP struct {
		Host       string   `yaml:"host"`
		Port       string   `yaml:"port"`
		Username   string   `yaml:"username"`
		Password   string   `yaml:"password"`
		From       string   `yaml:"from"`
		Recipients []string `yaml:"recipients"`
	} `yaml:"smtp"`
}

// loadConfigFile parses the YAML file at path. An empty path yields an
// empty config.
func loadConfigFile(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// applyScheduler fills scheduler settings from the file where the
// corresponding environment variable is unset.
func (f *fileConfig) applyScheduler(cfg *outreach.SchedulerConfig) {
	s := f.Scheduler
	if s.Enabled != nil && !envSet("POSTVENTA_RECS_ENABLED") {
		cfg.Enabled = *s.Enabled
	}
	if s.Cron != "" && !envSet("POSTVENTA_RECS_CRON") {
		cfg.Cron = s.Cron
	}
	if s.Timezone != "" && !envSet("POSTVENTA_RECS_TZ") {
		cfg.Timezone = s.Timezone
	}
	if s.DailyLimit != nil && !envSet("POSTVENTA_RECS_DAILY_LIMIT") {
		cfg.DailyLimit = *s.DailyLimit
	}
	if s.CooldownDays != nil && !envSet("POSTVENTA_RECS_COOLDOWN_DAYS") {
		cfg.CooldownDays = *s.CooldownDays
	}
	if s.TopN != nil && !envSet("POSTVENTA_RECS_TOP_N") {
		cfg.TopN = outreach.ClampTopN(*s.TopN)
	}
	if s.Notify != nil && !envSet("POSTVENTA_RECS_NOTIFY") {
		cfg.Notify = *s.Notify
	}
}

// applySMTP fills mail settings from the file where the corresponding
// environment variable is unset.
func (f *fileConfig) applySMTP(cfg *notify.SMTPConfig) {
	s := f.SMTP
	if s.Host != "" && !envSet("POSTVENTA_SMTP_HOST") {
		cfg.Host = s.Host
	}
	if s.Port != "" && !envSet("POSTVENTA_SMTP_PORT") {
		cfg.Port = s.Port
	}
	if s.Username != "" && !envSet("POSTVENTA_SMTP_USER") {
		cfg.Username = s.Username
	}
	if s.Password != "" && !envSet("POSTVENTA_SMTP_PASSWORD") {
		cfg.Password = s.Password
	}
	if s.From != "" && !envSet("POSTVENTA_SMTP_FROM") {
		cfg.From = s.From
	}
	if len(s.Recipients) > 0 && !envSet("POSTVENTA_SMTP_RECIPIENTS") {
		cfg.Recipients = s.Recipients
	}
}
