package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "RELTONE_"

// Loader resolves configuration with layered precedence:
// defaults, then the YAML file, then .env, then RELTONE_* variables.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

func (l *Loader) Load(dataDir, configPath string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Default(dataDir)

	if configPath == "" {
		configPath = filepath.Join(dataDir, FileName)
	}
	loaded, found, err := LoadFile(configPath, cfg)
	if err != nil {
		return Config{}, err
	}
	if found {
		l.logger.Debug("loaded config file", slog.String("path", configPath))
		cfg = loaded
	}

	envFile := filepath.Join(dataDir, ".env")
	if err := godotenv.Load(envFile); err == nil {
		l.logger.Debug("loaded env file", slog.String("path", envFile))
	} else if !os.IsNotExist(err) {
		l.logger.Warn("failed to load env file", slog.String("path", envFile), slog.String("error", err.Error()))
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strVars := map[string]*string{
		"DB_PATH":          &cfg.DBPath,
		"VOICE_RANGE":      &cfg.Training.VoiceRange,
		"JOURNAL_DIR":      &cfg.Training.JournalDir,
		"FFMPEG_BIN":       &cfg.Capture.FFmpegBin,
		"INPUT_FORMAT":     &cfg.Capture.InputFormat,
		"ESTIMATOR_PLUGIN": &cfg.Capture.EstimatorPlugin,
		"ESTIMATOR_SHA256": &cfg.Capture.EstimatorSHA256,
		"LOG_LEVEL":        &cfg.Log.Level,
		"LOG_FORMAT":       &cfg.Log.Format,
		"METRICS_ADDR":     &cfg.Metrics.Addr,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	floatVars := map[string]*float64{
		"CLARITY_THRESHOLD": &cfg.Pipeline.ClarityThreshold,
		"NOISE_THRESHOLD":   &cfg.Pipeline.NoiseThreshold,
		"VOLUME_DIVISOR":    &cfg.Pipeline.VolumeDivisor,
	}
	for name, dst := range floatVars {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		}
		*dst = parsed
	}

	if v, ok := os.LookupEnv(envPrefix + "QUOTA_BYTES"); ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %sQUOTA_BYTES: %w", envPrefix, err)
		}
		cfg.Storage.QuotaBytes = parsed
	}
	if v, ok := os.LookupEnv(envPrefix + "NOTE_WINDOW"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sNOTE_WINDOW: %w", envPrefix, err)
		}
		cfg.Training.NoteWindow = parsed
	}
	return nil
}
