package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"shopmunim-backend/internal/config"
)

// Job is background work that lives as long as the HTTP server, such as the
// reminder scheduler. It must return once ctx is cancelled.
type Job func(ctx context.Context)

// Start serves router until ctx is cancelled, then shuts down gracefully and
// waits for every job to return.
func Start(ctx context.Context, cfg config.Config, router http.Handler, log *slog.Logger, jobs ...Job) error {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(run Job) {
			defer wg.Done()
			run(jobCtx)
		}(job)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", srv.Addr, "env", cfg.Env, "jobs", len(jobs))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("http server shutting down")
		err = srv.Shutdown(shutdownCtx)
	case err = <-errCh:
	}
	stopJobs()
	wg.Wait()
	return err
}
