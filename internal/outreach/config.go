package outreach

import (
	"os"
	"strconv"
	"time"

	"postventa/internal/domain"
)

// SchedulerConfig holds the scheduled-run settings.
type SchedulerConfig struct {
	Enabled      bool
	Cron         string
	Timezone     string
	DailyLimit   int
	CooldownDays int
	Reasons      []domain.Reason
	TopN         int
	Notify       bool
	JitterMin    time.Duration
	JitterMax    time.Duration
}

// SchedulerConfigFromEnv reads scheduler settings from the environment.
// The scheduler is off unless POSTVENTA_RECS_ENABLED is truthy. An
// invalid reason list falls back to all reasons.
func SchedulerConfigFromEnv() SchedulerConfig {
	reasons, err := domain.ParseReasons(os.Getenv("POSTVENTA_RECS_REASONS"))
	if err != nil {
		reasons, _ = domain.ParseReasons("")
	}
	cfg := SchedulerConfig{
		Enabled:      envBool("POSTVENTA_RECS_ENABLED", false),
		Cron:         envOr("POSTVENTA_RECS_CRON", "30 8 * * *"),
		Timezone:     envOr("POSTVENTA_RECS_TZ", "America/Guatemala"),
		DailyLimit:   envInt("POSTVENTA_RECS_DAILY_LIMIT", 20),
		CooldownDays: envInt("POSTVENTA_RECS_COOLDOWN_DAYS", 14),
		Reasons:      reasons,
		TopN:         ClampTopN(envInt("POSTVENTA_RECS_TOP_N", DefaultTopN)),
		Notify:       envBool("POSTVENTA_RECS_NOTIFY", false),
		JitterMin:    250 * time.Millisecond,
		JitterMax:    500 * time.Millisecond,
	}
	if cfg.DailyLimit < 0 {
		cfg.DailyLimit = 0
	}
	if cfg.CooldownDays < 0 {
		cfg.CooldownDays = 0
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
