package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"zenfocus/internal/app"
	"zenfocus/internal/export"
	framescript "zenfocus/internal/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	userID     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "zenfocus",
		Short:         "Attention tracking sessions and focus statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&flags.userID, "user", "", "user id (defaults to the configured user)")

	root.AddCommand(newReplayCmd(flags))
	root.AddCommand(newStatsCmd(flags))
	root.AddCommand(newDailyCmd(flags))
	root.AddCommand(newWeeklyCmd(flags))
	root.AddCommand(newRecentCmd(flags))
	root.AddCommand(newExportCmd(flags))
	root.AddCommand(newMigrateCmd(flags))
	root.AddCommand(newCleanupCmd(flags))
	root.AddCommand(newHealthCmd(flags))
	return root
}

// withApp loads config, starts the app, runs fn and always shuts down
func withApp(ctx context.Context, flags *globalFlags, fn func(*app.App, string) error) (err error) {
	cfg, err := app.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	application, err := app.NewApp(cfg, nil)
	if err != nil {
		return err
	}
	if err := application.Startup(ctx); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := application.Shutdown(context.Background()); err == nil {
			err = shutdownErr
		}
	}()

	userID := flags.userID
	if userID == "" {
		userID = cfg.UserID
	}
	return fn(application, userID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newReplayCmd(flags *globalFlags) *cobra.Command {
	var format, start string

	cmd := &cobra.Command{
		Use:   "replay <script>",
		Short: "Replay a recorded frame script as one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = filepath.Ext(args[0])
			}
			scriptFormat, err := framescript.ParseFormat(format)
			if err != nil {
				return err
			}
			anchor := time.Now()
			if start != "" {
				if anchor, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			script, err := framescript.Decode(file, scriptFormat, anchor)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			if flags.userID != "" {
				script.UserID = flags.userID
			}

			return withApp(cmd.Context(), flags, func(a *app.App, _ string) error {
				session, summary, err := a.Replay(cmd.Context(), script)
				if session == nil {
					return err
				}
				if writeErr := writeJSON(cmd.OutOrStdout(), map[string]any{
					"session": session,
					"frames":  summary.Frames,
					"states":  summary.Smoothed,
				}); writeErr != nil {
					return writeErr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "script format: jsonl|yaml (default from file extension)")
	cmd.Flags().StringVar(&start, "start", "", "RFC3339 time anchoring relative event times (default now)")
	return cmd
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals, today's focus time and streaks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app.App, userID string) error {
				stats, err := a.Stats().UserStats(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newDailyCmd(flags *globalFlags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show one bucket per day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app.App, userID string) error {
				buckets, err := a.Stats().DailyBreakdown(cmd.Context(), userID, days)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), buckets)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days, today included")
	return cmd
}

func newWeeklyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "weekly",
		Short: "Summarize the last seven days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app.App, userID string) error {
				summary, err := a.Stats().WeeklySummary(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}

func newRecentCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app.App, userID string) error {
				recent, err := a.Stats().RecentSessions(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), recent)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum sessions to list")
	return cmd
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var format, out string
	var days int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions as JSON or YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exportFormat, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app.App, userID string) error {
				w := cmd.OutOrStdout()
				if out != "" {
					file, err := os.Create(out)
					if err != nil {
						return err
					}
					defer file.Close()
					w = file
				}
				return a.Export(cmd.Context(), w, userID, days, exportFormat)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json|yaml")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	cmd.Flags().IntVar(&days, "days", 30, "number of days to export, today included")
	return cmd
}

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			cfg.Database.AutoMigrate = true
			application, err := app.NewApp(cfg, nil)
			if err != nil {
				return err
			}
			if err := application.Startup(cmd.Context()); err != nil {
				return err
			}
			defer application.Shutdown(context.Background())

			if cfg.Database.IsPostgres() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}
			version, err := application.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}

func newCleanupCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app.App, _ string) error {
				deleted, err := a.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d sessions\n", deleted)
				return nil
			})
		},
	}
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the session store and print its pool state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(a *app.App, _ string) error {
				report, err := a.Health(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}
