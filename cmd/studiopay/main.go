// Package main запускает HTTP-сервер сервиса расчётов студии.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/studiopay/internal/config"
	"github.com/mmeshcher/studiopay/internal/handler"
	"github.com/mmeshcher/studiopay/internal/payroll"
	"github.com/mmeshcher/studiopay/internal/repository"
	"github.com/mmeshcher/studiopay/internal/schedule"
	"github.com/mmeshcher/studiopay/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	cal, err := cfg.Calendar()
	if err != nil {
		sugar.Fatalw("calendar configuration error", "error", err.Error())
	}
	anchor, err := cfg.Anchor()
	if err != nil {
		sugar.Fatalw("settlement anchor error", "error", err.Error())
	}
	if anchor.IsZero() {
		sugar.Warnw("SETTLEMENT_ANCHOR is not set, unpaid weeks are looked up from January 1 of the current year",
			"timezone", cal.Location.String())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var scheduleClient service.ScheduleClient
	if cfg.ScheduleSystemAddress != "" {
		scheduleClient = schedule.NewClient(cfg.ScheduleSystemAddress)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := service.NewService(repo, scheduleClient, payroll.NewCalculator(cal, anchor), logger, service.NewMetrics(reg))
	defer svc.Close()

	h := handler.NewHandler(svc, logger, cal.Location)
	r := h.SetupRouter(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Опрос системы расписания
	g.Go(func() error {
		svc.StartScheduleSync(ctx, cfg.SyncInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting studiopay server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
