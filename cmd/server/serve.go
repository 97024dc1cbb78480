package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/portfolio-lease/internal/config"
	"github.com/iliyamo/portfolio-lease/internal/handler"
	"github.com/iliyamo/portfolio-lease/internal/queue"
	"github.com/iliyamo/portfolio-lease/internal/router"
)

func newServeCommand() *cobra.Command {
	var noReclaimer bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background reclaimer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd.Context(), a, !noReclaimer)
		},
	}
	cmd.Flags().BoolVar(&noReclaimer, "no-reclaimer", false, "do not run the background reclaimer in this process")
	return cmd
}

func serve(ctx context.Context, a *app, withReclaimer bool) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			a.log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	reclaimer := a.reclaimer()
	deps := router.Deps{
		Leases:    handler.NewLeaseHandler(a.leases, a.log),
		Issues:    handler.NewIssueHandler(a.issues, a.log),
		Admin:     handler.NewAdminHandler(reclaimer, a.log),
		DB:        a.db,
		Gatherer:  a.registry,
		Redis:     a.rdb,
		RateLimit: config.LoadRateLimitConfig(),
		JWTSecret: a.cfg.JWTSecret,
		Logger:    a.log,
	}
	router.RegisterRoutes(e, deps)
	router.RegisterLeases(e, deps)

	// The admin sweep endpoint works even when the loop runs elsewhere.
	if withReclaimer {
		if err := reclaimer.Start(ctx); err != nil {
			return err
		}
		defer reclaimer.Stop()
	}

	if a.queueCfg.AuditConsumer {
		go func() {
			if err := queue.StartLeaseAuditConsumer(ctx, a.queueCfg, a.log); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info("listening", "addr", addr, "env", a.cfg.Env)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
