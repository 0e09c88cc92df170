package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	APIToken   string
	DBPath     string
	ServerPort string
	LogLevel   string
	WebhookURL string

	QueueTargetSize  int
	QueueThresholds  []int
	KFactor          int
	SeriesWins       int
	DefaultRating    int
	DefaultDivision  string
	VoteTimeout      time.Duration
	TierDistribution []domain.TierSpec
	Ranks            []domain.Rank
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		APIToken:        getEnv("API_TOKEN", ""),
		DBPath:          getEnv("DB_PATH", "matchmaker.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		WebhookURL:      getEnv("RESULT_WEBHOOK_URL", ""),
		DefaultDivision: getEnv("DEFAULT_DIVISION", constants.DefaultDivision),
		Ranks:           constants.Ranks,
	}

	var err error
	cfg.QueueTargetSize, err = getEnvInt("QUEUE_TARGET_SIZE", constants.DefaultQueueTargetSize)
	collect(err)
	cfg.KFactor, err = getEnvInt("K_FACTOR", constants.DefaultKFactor)
	collect(err)
	cfg.SeriesWins, err = getEnvInt("SERIES_WIN_THRESHOLD", constants.DefaultSeriesWins)
	collect(err)
	cfg.DefaultRating, err = getEnvInt("DEFAULT_RATING", constants.DefaultRating)
	collect(err)
	cfg.VoteTimeout, err = getEnvDuration("VOTE_TIMEOUT", constants.DefaultVoteTimeout)
	collect(err)
	cfg.QueueThresholds, err = parseThresholds(getEnv("QUEUE_BAND_THRESHOLDS", ""))
	collect(err)
	cfg.TierDistribution, err = parseTierDistribution(getEnv("TIER_DISTRIBUTION", ""))
	collect(err)

	collect(cfg.validate())
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.QueueTargetSize%2 != 0 {
		logger.Warn().Int("queue_target_size", cfg.QueueTargetSize).Msg("odd queue size, teams will be uneven")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("queue_target_size", cfg.QueueTargetSize).
		Ints("queue_thresholds", cfg.QueueThresholds).
		Int("k_factor", cfg.KFactor).
		Int("series_wins", cfg.SeriesWins).
		Dur("vote_timeout", cfg.VoteTimeout).
		Int("tiers", len(cfg.TierDistribution)).
		Bool("webhook", cfg.WebhookURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.APIToken == "" {
		errs = append(errs, fmt.Errorf("API_TOKEN is required"))
	}
	if c.QueueTargetSize < 2 {
		errs = append(errs, fmt.Errorf("QUEUE_TARGET_SIZE must be at least 2, got %d", c.QueueTargetSize))
	}
	if c.KFactor <= 0 {
		errs = append(errs, fmt.Errorf("K_FACTOR must be positive, got %d", c.KFactor))
	}
	if c.SeriesWins < 1 {
		errs = append(errs, fmt.Errorf("SERIES_WIN_THRESHOLD must be at least 1, got %d", c.SeriesWins))
	}
	if c.DefaultRating < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_RATING must not be negative, got %d", c.DefaultRating))
	}
	if c.VoteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("VOTE_TIMEOUT must be positive, got %s", c.VoteTimeout))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// parseThresholds reads "1100" or "900,1300".
func parseThresholds(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]int(nil), constants.DefaultQueueThresholds...), nil
	}

	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid QUEUE_BAND_THRESHOLDS entry %q: %w", part, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("QUEUE_BAND_THRESHOLDS entries must be positive, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseTierDistribution reads "S:0.005:1,A:0.02:1,...", highest tier first.
func parseTierDistribution(raw string) ([]domain.TierSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]domain.TierSpec(nil), constants.DefaultTierDistribution...), nil
	}

	var out []domain.TierSpec
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid TIER_DISTRIBUTION entry %q: want tier:ratio:minCount", part)
		}
		ratio, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("invalid TIER_DISTRIBUTION ratio in %q", part)
		}
		minCount, err := strconv.Atoi(fields[2])
		if err != nil || minCount < 0 {
			return nil, fmt.Errorf("invalid TIER_DISTRIBUTION minCount in %q", part)
		}
		out = append(out, domain.TierSpec{Tier: fields[0], Ratio: ratio, MinCount: minCount})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("TIER_DISTRIBUTION has no tiers")
	}
	return out, nil
}

var Module = fx.Provide(Load)
