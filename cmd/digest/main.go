package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/app"
	"github.com/samvad-hq/samvad-news-digest/internal/config"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	rt := &session{}
	err := newRootCmd(rt).Execute()
	if cerr := rt.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		os.Exit(1)
	}
}

// session is built lazily by each subcommand.
type session struct {
	cfg      *config.Config
	digester *app.Digester
}

func newRootCmd(rt *session) *cobra.Command {
	root := &cobra.Command{
		Use:           "digest",
		Short:         "Fetch, summarize and store Spanish news headlines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(rt),
		newScheduleCmd(rt),
		newSweepCmd(rt),
		newStatsCmd(rt),
		newMonitorCmd(rt),
	)
	return root
}

func (rt *session) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.InfoObj("digest starting", "config_meta", map[string]any{
		"app":           cfg.AppName,
		"env":           cfg.Env,
		"feed_provider": cfg.FeedProvider,
		"storage_type":  cfg.StorageType,
		"llm_provider":  cfg.LLM.Provider,
	})

	d, err := app.NewDigester(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize digester", "error", err.Error())
		return err
	}
	rt.cfg, rt.digester = cfg, d
	return nil
}

func (rt *session) close() error {
	var err error
	if rt.digester != nil {
		err = rt.digester.Close()
	}
	_ = logger.Close()
	return err
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := rt.open(ctx); err != nil {
				return err
			}
			report, err := rt.digester.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("pipeline run: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newScheduleCmd(rt *session) *cobra.Command {
	var (
		spec        string
		metricsAddr string
		runAtStart  bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := rt.open(ctx); err != nil {
				return err
			}
			if spec == "" {
				spec = rt.cfg.ScheduleCron
			}
			if metricsAddr == "" {
				metricsAddr = rt.cfg.MetricsAddr
			}
			return rt.digester.Schedule(ctx, app.ScheduleOptions{
				Spec:        spec,
				RunAtStart:  runAtStart,
				MetricsAddr: metricsAddr,
			})
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "cron spec (defaults to SCHEDULE_CRON)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (defaults to METRICS_ADDR)")
	cmd.Flags().BoolVar(&runAtStart, "run-at-start", true, "run once immediately before the first tick")
	return cmd
}

func newSweepCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete records older than the retention horizon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := rt.open(ctx); err != nil {
				return err
			}
			deleted, err := rt.digester.Sweep(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"deleted":        deleted,
				"retention_days": rt.cfg.RetentionDays,
			})
		},
	}
}

func newStatsCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store totals, categories and sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := rt.open(ctx); err != nil {
				return err
			}
			r := rt.digester.Reader()
			stats, err := r.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			cats, err := r.Categories(ctx)
			if err != nil {
				return fmt.Errorf("categories: %w", err)
			}
			sources, err := r.Sources(ctx)
			if err != nil {
				return fmt.Errorf("sources: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"stats":      stats,
				"categorias": cats,
				"fuentes":    sources,
			})
		},
	}
}

func newMonitorCmd(rt *session) *cobra.Command {
	var windowDays int
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print the age distribution and the records expiring soon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := rt.open(ctx); err != nil {
				return err
			}
			r := rt.digester.Reader()
			dist, err := r.AgeDistribution(ctx)
			if err != nil {
				return fmt.Errorf("age distribution: %w", err)
			}
			expiring, err := r.ExpiringSoon(ctx, rt.cfg.Retention, time.Duration(windowDays)*24*time.Hour)
			if err != nil {
				return fmt.Errorf("expiring soon: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"distribucion":   dist,
				"por_expirar":    len(expiring),
				"ventana_dias":   windowDays,
				"retention_days": rt.cfg.RetentionDays,
			})
		},
	}
	cmd.Flags().IntVar(&windowDays, "window-days", 15, "report records that expire within this many days")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
