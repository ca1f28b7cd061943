package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "reltone.yaml"

type Config struct {
	DataDir  string         `yaml:"-"`
	DBPath   string         `yaml:"db_path"`
	Storage  StorageConfig  `yaml:"storage"`
	Training TrainingConfig `yaml:"training"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Capture  CaptureConfig  `yaml:"capture"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type StorageConfig struct {
	// QuotaBytes caps the total size of stored values; 0 disables the cap.
	QuotaBytes int64 `yaml:"quota_bytes"`
}

type TrainingConfig struct {
	VoiceRange  string        `yaml:"voice_range"`
	NoteWindow  time.Duration `yaml:"note_window"`
	JournalDir  string        `yaml:"journal_dir"`
	RandomSeed  uint64        `yaml:"random_seed"`
	ArchiveKeep int           `yaml:"archive_keep"`
}

type PipelineConfig struct {
	ClarityThreshold   float64       `yaml:"clarity_threshold"`
	NoiseThreshold     float64       `yaml:"noise_threshold"`
	VolumeDivisor      float64       `yaml:"volume_divisor"`
	VocalMinHz         float64       `yaml:"vocal_min_hz"`
	VocalMaxHz         float64       `yaml:"vocal_max_hz"`
	StabilizerWindow   int           `yaml:"stabilizer_window"`
	StabilizerMaxShift float64       `yaml:"stabilizer_max_shift"`
	FrameSize          int           `yaml:"frame_size"`
	SampleRate         int           `yaml:"sample_rate"`
	TickInterval       time.Duration `yaml:"tick_interval"`
}

type CaptureConfig struct {
	FFmpegBin       string `yaml:"ffmpeg_bin"`
	InputFormat     string `yaml:"input_format"`
	EstimatorPlugin string `yaml:"estimator_plugin"`
	// EstimatorSHA256 pins the plugin binary; empty skips the check.
	EstimatorSHA256 string `yaml:"estimator_sha256"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		DBPath:  filepath.Join(dataDir, ".reltone", "reltone.db"),
		Storage: StorageConfig{QuotaBytes: 5 << 20},
		Training: TrainingConfig{
			VoiceRange:  "medium",
			NoteWindow:  3 * time.Second,
			JournalDir:  filepath.Join(dataDir, "journal"),
			ArchiveKeep: 20,
		},
		Pipeline: PipelineConfig{
			ClarityThreshold:   0.8,
			NoiseThreshold:     10,
			VolumeDivisor:      1,
			VocalMinHz:         130.81,
			VocalMaxHz:         1046.50,
			StabilizerWindow:   5,
			StabilizerMaxShift: 0.1,
			FrameSize:          2048,
			SampleRate:         44100,
			TickInterval:       time.Second / 60,
		},
		Capture: CaptureConfig{FFmpegBin: "ffmpeg"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage.quota_bytes must be non-negative")
	}
	p := c.Pipeline
	if p.ClarityThreshold < 0 || p.ClarityThreshold > 1 {
		return fmt.Errorf("pipeline.clarity_threshold must be between 0 and 1")
	}
	if p.VolumeDivisor <= 0 {
		return fmt.Errorf("pipeline.volume_divisor must be positive")
	}
	if p.VocalMinHz <= 0 || p.VocalMaxHz <= p.VocalMinHz {
		return fmt.Errorf("pipeline vocal range is invalid: %.2f-%.2f", p.VocalMinHz, p.VocalMaxHz)
	}
	if p.StabilizerWindow < 1 {
		return fmt.Errorf("pipeline.stabilizer_window must be at least 1")
	}
	if p.StabilizerMaxShift <= 0 {
		return fmt.Errorf("pipeline.stabilizer_max_shift must be positive")
	}
	if p.FrameSize < 64 || p.SampleRate <= 0 {
		return fmt.Errorf("pipeline frame size or sample rate is invalid")
	}
	if c.Training.NoteWindow <= 0 {
		return fmt.Errorf("training.note_window must be positive")
	}
	return nil
}

// LoadFile overlays a YAML file onto base. A missing file leaves base untouched.
func LoadFile(path string, base Config) (Config, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, false, nil
		}
		return base, false, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, false, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, true, nil
}

func (c Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
