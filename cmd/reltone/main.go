package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reltone/internal/bootstrap"
	pitchdto "reltone/internal/modules/pitch/dto"
	progressdto "reltone/internal/modules/progress/dto"
	trainingdto "reltone/internal/modules/training/dto"
	"reltone/internal/platform/config"
	"reltone/internal/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir     string
	configPath  string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "reltone",
		Short:         "Relative pitch trainer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data", defaultDataDir(), "data directory")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <data>/reltone.yaml)")
	root.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newProgressCmd(flags))
	root.AddCommand(newSessionCmd(flags))
	root.AddCommand(newListenCmd(flags))
	root.AddCommand(newTrainCmd(flags))
	root.AddCommand(newExportCmd(flags))
	root.AddCommand(newEstimatorCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	return root
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "reltone")
	}
	return ".reltone"
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	bootLogger := logging.New(os.Stderr, "warn", "text")
	return config.NewLoader(bootLogger).Load(flags.dataDir, flags.configPath)
}

// loadApp builds the application and starts the metrics server when one is
// configured. Callers must Close the app.
func loadApp(ctx context.Context, flags *globalFlags) (*bootstrap.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	addr := flags.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	app.ServeMetrics(ctx, addr)
	return app, nil
}

func withApp(flags *globalFlags, run func(cmd *cobra.Command, args []string, app *bootstrap.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context(), flags)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		return run(cmd, args, app)
	}
}

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the progress dashboard",
		RunE: withApp(flags, func(_ *cobra.Command, _ []string, app *bootstrap.App) error {
			return bootstrap.RunTUI(app)
		}),
	}
}

func newProgressCmd(flags *globalFlags) *cobra.Command {
	progress := &cobra.Command{Use: "progress", Short: "Training cycle commands"}

	progress.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current training cycle",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			out, err := app.ProgressCLI.Show(cmd.Context())
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), out)
			return nil
		}),
	})

	progress.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Pick the base note for the next session",
		Long: "Pick the base note for the next session. The pick is stored and reused\n" +
			"by \"session record\" without --base until that session is recorded.",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			out, err := app.ProgressCLI.Next(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %d: base %s (%.2f Hz)\n", out.SessionID, out.BaseNote, out.BaseFrequencyHz)
			return nil
		}),
	})

	progress.AddCommand(&cobra.Command{
		Use:   "new-cycle",
		Short: "Archive a completed cycle and start a new one",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			out, err := app.ProgressCLI.NewCycle(cmd.Context())
			if err != nil {
				return err
			}
			if !out.Started {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cycle %s is not completed (%d/8)\n", out.Progress.CycleID, out.Progress.SessionsCompleted)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started cycle %s\n", out.Progress.CycleID)
			return nil
		}),
	})

	var force bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the current cycle and start over",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			if !force {
				return fmt.Errorf("reset discards the current cycle; pass --force to confirm")
			}
			out, err := app.ProgressCLI.Reset(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reset: new cycle %s\n", out.CycleID)
			return nil
		}),
	}
	resetCmd.Flags().BoolVar(&force, "force", false, "confirm the reset")

	progress.AddCommand(resetCmd)

	progress.AddCommand(&cobra.Command{
		Use:   "archives",
		Short: "List archived cycles",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			archives, err := app.ProgressCLI.Archives(cmd.Context())
			if err != nil {
				return err
			}
			if len(archives) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no archives")
				return nil
			}
			for _, a := range archives {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tsessions=%d\tgrade=%s\taccuracy=%s\n",
					a.ArchivedAt.Format(time.RFC3339), a.CycleID, a.VoiceRange, a.Sessions, orDash(a.OverallGrade), percent(a.OverallAccuracy))
			}
			return nil
		}),
	})

	progress.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "List recorded sessions across cycles",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			records, err := app.ProgressCLI.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, r := range records {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t#%d\t%s\t%s\t%.0f%%\t%.1f¢\n",
					r.CompletedAt.Format(time.RFC3339), shortID(r.CycleID), r.SessionID, r.BaseNote, r.Grade, r.AccuracyPercent, r.AverageErrorCents)
			}
			return nil
		}),
	})
	return progress
}

func newSessionCmd(flags *globalFlags) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Session commands"}

	var base string
	var cents []string
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a session from measured cents deviations",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			parsed, err := parseCents(cents)
			if err != nil {
				return err
			}
			out, err := app.ProgressCLI.Record(cmd.Context(), base, parsed)
			if out.Session.SessionID != 0 {
				printRecord(cmd.OutOrStdout(), out)
			}
			return err
		}),
	}
	record.Flags().StringVar(&base, "base", "", "base note (default: the pending pick)")
	record.Flags().StringSliceVar(&cents, "cents", nil, "eight cents deviations in scale order, - for not measured")
	_ = record.MarkFlagRequired("cents")

	session.AddCommand(record)
	return session
}

func newListenCmd(flags *globalFlags) *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "listen <input>",
		Short: "Print pitch readings for an audio input",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			w := cmd.OutOrStdout()
			out, err := app.PitchCLI.Listen(cmd.Context(), args[0], window, func(r pitchdto.Reading) {
				printReading(w, r)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "frames=%d failed=%d audio=%s end=%t\n", out.Frames, out.Failed, out.AudioTime, out.EndOfInput)
			return nil
		}),
	}
	cmd.Flags().DurationVar(&window, "window", 0, "stop after this much audio (0 = until the input ends)")
	return cmd
}

func newTrainCmd(flags *globalFlags) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "train <input>",
		Short: "Run a training session against an audio input",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			w := cmd.OutOrStdout()
			var onReading func(pitchdto.Reading)
			if verbose {
				onReading = func(r pitchdto.Reading) { printReading(w, r) }
			}
			out, err := app.TrainingCLI.Train(cmd.Context(), args[0],
				func(plan trainingdto.SessionPlan) {
					names := make([]string, 0, len(plan.Targets))
					for _, t := range plan.Targets {
						names = append(names, t.Name)
					}
					_, _ = fmt.Fprintf(w, "session %d: base %s (%.2f Hz), sing %s\n", plan.SessionID, plan.BaseNote, plan.BaseFrequencyHz, strings.Join(names, " "))
				},
				func(note trainingdto.NoteEvent) {
					_, _ = fmt.Fprintf(w, "  %d %-3s %s %s (%d/%d voiced)\n", note.Index+1, note.TargetNote, centsText(note.Cents), note.Grade, note.VoicedFrames, note.Frames)
				},
				onReading,
			)
			if out.Record.Session.SessionID != 0 {
				printRecord(w, out.Record)
			}
			return err
		}),
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every reading")
	return cmd
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	export := &cobra.Command{Use: "export", Short: "Export training data"}
	export.AddCommand(&cobra.Command{
		Use:   "xlsx <path>",
		Short: "Export session history to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			out, err := app.ProgressCLI.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d sessions to %s\n", out.Sessions, out.Path)
			return nil
		}),
	})
	return export
}

func newEstimatorCmd(flags *globalFlags) *cobra.Command {
	estimator := &cobra.Command{Use: "estimator", Short: "Pitch estimator commands"}
	estimator.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show which pitch estimator is in use",
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *bootstrap.App) error {
			if app.Plugin == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "builtin nsdf")
				return nil
			}
			info, err := app.Plugin.Info(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "plugin %s %s (%s)\n", info.Name, info.Version, info.Algorithm)
			return nil
		}),
	})
	return estimator
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			path := flags.configPath
			if path == "" {
				path = filepath.Join(flags.dataDir, config.FileName)
			}
			if err := cfg.SaveFile(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cfgCmd
}

// parseCents accepts one value per scale degree. "-" marks a note that was not measured.
func parseCents(values []string) ([]*float64, error) {
	out := make([]*float64, 0, len(values))
	for i, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "-" || raw == "" {
			out = append(out, nil)
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse cents #%d %q: %w", i+1, raw, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

func printProgress(w io.Writer, p progressdto.ProgressOutput) {
	_, _ = fmt.Fprintf(w, "cycle %s (%s) started %s\n", p.CycleID, p.VoiceRange, p.CreatedAt.Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "sessions %d/8 completed=%t\n", p.SessionsCompleted, p.IsCompleted)
	if p.IsCompleted {
		_, _ = fmt.Fprintf(w, "overall %s %s\n", p.OverallGrade, percent(p.OverallAccuracy))
	}
	for _, s := range p.Sessions {
		_, _ = fmt.Fprintf(w, "  #%d %-3s %s %.0f%% %.1f¢\n", s.SessionID, s.BaseNote, s.Grade, s.AccuracyPercent, s.AverageErrorCents)
	}
	if len(p.RemainingBaseNotes) > 0 {
		_, _ = fmt.Fprintf(w, "remaining %s\n", strings.Join(p.RemainingBaseNotes, " "))
	}
	h := p.Health
	if h.Discarded {
		_, _ = fmt.Fprintf(w, "warning: stored progress was discarded (%s), snapshot %s\n", h.Reason, h.CorruptKey)
	}
	if len(h.Repaired) > 0 {
		_, _ = fmt.Fprintf(w, "repaired: %s\n", strings.Join(h.Repaired, ", "))
	}
}

func printRecord(w io.Writer, out progressdto.RecordSessionOutput) {
	s := out.Session
	_, _ = fmt.Fprintf(w, "session %d on %s: %s %.0f%% avg %.1f¢\n", s.SessionID, s.BaseNote, s.Grade, s.AccuracyPercent, s.AverageErrorCents)
	if out.CycleCompleted {
		_, _ = fmt.Fprintf(w, "cycle completed: %s %s\n", out.Progress.OverallGrade, percent(out.Progress.OverallAccuracy))
	}
	if !out.Durable {
		_, _ = fmt.Fprintln(w, "warning: result was not saved")
	}
	if out.JournalPath != "" {
		_, _ = fmt.Fprintf(w, "journal %s\n", out.JournalPath)
	}
}

func printReading(w io.Writer, r pitchdto.Reading) {
	if !r.Voiced() {
		_, _ = fmt.Fprintf(w, "%s %-8s vol=%5.1f\n", r.Timestamp.Format("15:04:05.000"), r.State, r.Loudness)
		return
	}
	_, _ = fmt.Fprintf(w, "%s %-8s vol=%5.1f %7.2f Hz %-4s clarity=%.2f fix=%s\n",
		r.Timestamp.Format("15:04:05.000"), r.State, r.Loudness, r.FrequencyHz, r.Note, r.Clarity, r.Correction)
}

func centsText(c *float64) string {
	if c == nil {
		return "   --"
	}
	return fmt.Sprintf("%+5.0f¢", *c)
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
