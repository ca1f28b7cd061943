package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	pitchdomain "reltone/internal/modules/pitch/domain"
	pitchinadapter "reltone/internal/modules/pitch/adapter/in"
	pitchoutadapter "reltone/internal/modules/pitch/adapter/out"
	pitchout "reltone/internal/modules/pitch/port/out"
	pitchservice "reltone/internal/modules/pitch/service"
	pitchusecase "reltone/internal/modules/pitch/usecase"
	progressinadapter "reltone/internal/modules/progress/adapter/in"
	progressoutadapter "reltone/internal/modules/progress/adapter/out"
	progressdomain "reltone/internal/modules/progress/domain"
	progressservice "reltone/internal/modules/progress/service"
	progressusecase "reltone/internal/modules/progress/usecase"
	traininginadapter "reltone/internal/modules/training/adapter/in"
	trainingusecase "reltone/internal/modules/training/usecase"
	"reltone/internal/platform/clock"
	"reltone/internal/platform/config"
	"reltone/internal/platform/id"
	"reltone/internal/platform/metrics"
	"reltone/internal/platform/random"
	uiapp "reltone/internal/ui/app"
)

type App struct {
	Config      config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
	PitchCLI    pitchinadapter.CLIHandler
	ProgressCLI progressinadapter.CLIHandler
	TrainingCLI traininginadapter.CLIHandler

	// Plugin is set when an external estimator is configured.
	Plugin *pitchoutadapter.PluginEstimator

	closers []func() error
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	recorder := metrics.NewRecorder()
	app := &App{Config: cfg, Logger: logger, Metrics: recorder}

	db, err := progressoutadapter.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, db.Close)

	kv, err := progressoutadapter.NewSQLiteKVStore(db, cfg.Storage.QuotaBytes)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("new progress store: %w", err)
	}
	index, err := progressoutadapter.NewSQLiteSessionIndex(db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("new session index: %w", err)
	}
	voice, err := progressdomain.ParseVoiceRange(cfg.Training.VoiceRange)
	if err != nil {
		app.Close()
		return nil, err
	}
	var picker random.Source
	if cfg.Training.RandomSeed != 0 {
		picker = random.NewLocked(cfg.Training.RandomSeed)
	}
	store := progressservice.NewProgressStore(kv, progressservice.Options{
		VoiceRange:  voice,
		ArchiveKeep: cfg.Training.ArchiveKeep,
		Clock:       clock.SystemClock{},
		IDs:         id.UUID{},
		Random:      picker,
		Logger:      logger.With(slog.String("module", "progress")),
		Metrics:     recorder,
	})
	progressUC := progressusecase.NewInteractor(progressusecase.Dependencies{
		Store:    store,
		Index:    index,
		Journal:  progressoutadapter.NewJournalWriter(cfg.Training.JournalDir),
		Exporter: progressoutadapter.NewXLSXExporter(),
		Tx:       progressoutadapter.NewSQLiteTxManager(db),
		Logger:   logger.With(slog.String("module", "progress")),
	})

	var estimator pitchout.Estimator = pitchoutadapter.NewNSDFEstimator()
	if cfg.Capture.EstimatorPlugin != "" {
		plugin := pitchoutadapter.NewPluginEstimator(cfg.Capture.EstimatorPlugin, cfg.Capture.EstimatorSHA256, logger)
		app.Plugin = plugin
		app.closers = append(app.closers, plugin.Close)
		estimator = plugin
	}
	pitchUC := pitchusecase.NewInteractor(
		pitchoutadapter.NewFFmpegSourceOpener(cfg.Capture.FFmpegBin, cfg.Capture.InputFormat, cfg.Pipeline.SampleRate, cfg.Pipeline.FrameSize),
		estimator,
		pitchusecase.Options{
			Tracker:      TrackerConfig(cfg.Pipeline),
			TickInterval: cfg.Pipeline.TickInterval,
			Metrics:      recorder,
			Logger:       logger.With(slog.String("module", "pitch")),
		},
	)

	coach := trainingusecase.NewCoach(pitchUC, progressUC, trainingusecase.Options{
		NoteWindow: cfg.Training.NoteWindow,
		Logger:     logger.With(slog.String("module", "training")),
	})

	app.PitchCLI = pitchinadapter.NewCLIHandler(pitchUC)
	app.ProgressCLI = progressinadapter.NewCLIHandler(progressUC)
	app.TrainingCLI = traininginadapter.NewCLIHandler(coach)
	return app, nil
}

// TrackerConfig maps pipeline tuning onto the per-session tracker.
func TrackerConfig(p config.PipelineConfig) pitchservice.TrackerConfig {
	cfg := pitchservice.DefaultTrackerConfig()
	cfg.Corrector = pitchdomain.CorrectorConfig{
		ClarityThreshold: p.ClarityThreshold,
		MinHz:            cfg.Corrector.MinHz,
		MaxHz:            cfg.Corrector.MaxHz,
		VocalMinHz:       p.VocalMinHz,
		VocalMaxHz:       p.VocalMaxHz,
	}
	cfg.NoiseThreshold = p.NoiseThreshold
	cfg.VolumeDivisor = p.VolumeDivisor
	cfg.StabilizerWindow = p.StabilizerWindow
	cfg.StabilizerMaxShift = p.StabilizerMaxShift
	return cfg
}

// Close releases the database and any plugin process, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ServeMetrics exposes the recorder until ctx is done. An empty address disables it.
func (a *App) ServeMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	go func() {
		if err := a.Metrics.Serve(ctx, addr); err != nil {
			a.Logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.Config.DataDir, app.ProgressCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
