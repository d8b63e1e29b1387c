package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/emotrack/internal/bot"
	"github.com/xaenox/emotrack/internal/scheduler"
	"github.com/xaenox/emotrack/internal/sink"
	"github.com/xaenox/emotrack/pkg/config"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Long: `Run the Telegram bot. Every message is analysed and folded into the sender's
profile; profiles are checkpointed on a schedule and on shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := buildStorage(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer store.Close()

	sinks := sink.Multi{sink.NewLogSink(logger), sink.NewStorageSink(store)}
	if cfg.Redis.Enabled {
		rs, err := sink.NewRedisSink(sink.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
			MaxLen:   cfg.Redis.MaxLen,
		})
		if err != nil {
			logger.Warn("Redis sink disabled", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		} else {
			defer rs.Close()
			sinks = append(sinks, rs)
		}
	}

	o := buildOrchestrator(cfg, store, sinks, logger)

	sched := scheduler.NewScheduler(logger, cfg.Scheduler.Timeout)
	if err := sched.Schedule(cfg.Scheduler.CheckpointSchedule, o.Checkpoint); err != nil {
		return err
	}
	sched.Start()

	b, err := bot.New(cfg.Telegram.Token, o, logger)
	if err != nil {
		sched.Stop()
		logger.Error("Failed to create bot", zap.Error(err))
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Start(gctx) })
	g.Go(func() error {
		logger.Info("Serving metrics", zap.String("addr", cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	logger.Info("Shutting down")

	sched.Stop()
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := o.Close(closeCtx); err != nil {
		logger.Error("Failed to persist profiles", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	return runErr
}
