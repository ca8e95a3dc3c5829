package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
)

// ScheduleOptions controls the cron loop.
type ScheduleOptions struct {
	Spec         string
	RunAtStart   bool
	MetricsAddr  string
	ShutdownWait time.Duration
}

// Schedule runs the pipeline on spec until ctx is cancelled. A tick that fires while the
// previous run is still going is skipped. When MetricsAddr is set, /metrics is served there.
func (d *Digester) Schedule(ctx context.Context, opts ScheduleOptions) error {
	if d == nil || d.pipeline == nil {
		return fmt.Errorf("digester is not initialized")
	}
	if opts.ShutdownWait <= 0 {
		opts.ShutdownWait = 30 * time.Second
	}

	cl := cronLogger{log: d.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	id, err := c.AddFunc(opts.Spec, func() { d.runLogged(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", opts.Spec, err)
	}

	var srv *http.Server
	if opts.MetricsAddr != "" {
		srv = d.serveMetrics(opts.MetricsAddr)
	}

	d.log.InfoObj("scheduler starting", "scheduler_state", map[string]any{
		"spec":         opts.Spec,
		"run_at_start": opts.RunAtStart,
		"metrics_addr": opts.MetricsAddr,
	})

	c.Start()
	var initial sync.WaitGroup
	if opts.RunAtStart {
		// Through the cron chain so ticks skip while this run is in progress.
		initial.Add(1)
		go func() {
			defer initial.Done()
			c.Entry(id).WrappedJob.Run()
		}()
	}

	<-ctx.Done()
	d.log.InfoObj("scheduler stopping", "reason", ctx.Err().Error())

	stopped := c.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		initial.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(opts.ShutdownWait):
		d.log.WarnObj("scheduler shutdown timed out", "shutdown_wait", opts.ShutdownWait.String())
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	return nil
}

func (d *Digester) serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.ErrorObj("metrics server failed", "metrics_error", map[string]any{
				"addr":  addr,
				"error": err.Error(),
			})
		}
	}()
	return srv
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugObj("cron: "+msg, "cron", kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvMap(keysAndValues)
	fields["error"] = fmt.Sprint(err)
	l.log.ErrorObj("cron: "+msg, "cron", fields)
}

func kvMap(kv []interface{}) map[string]any {
	out := make(map[string]any, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
