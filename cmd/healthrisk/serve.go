package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"healthrisk/internal/cfg"
	"healthrisk/internal/condition"
	"healthrisk/internal/logging"
	"healthrisk/internal/metrics"
	"healthrisk/internal/ml"
	"healthrisk/internal/predict"
	"healthrisk/internal/server"
	"healthrisk/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the models and serve the prediction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	c, err := loadSettings(cmd)
	if err != nil {
		log.Error().Err(err).Msg("config load failed")
		return err
	}
	if err := logging.Init(c.ServiceName, c.Environment, c.LogLevel); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	m := metrics.New()
	catalog := initializeCatalog(c)
	if catalog != nil {
		defer catalog.Close()
	}

	loader := ml.NewLoader(ml.LoaderConfig{
		PythonPath:       c.PythonPath,
		InferenceTimeout: c.InferenceTimeout,
	}, m)
	defer func() {
		if err := loader.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to remove inference script")
		}
	}()
	reg, results, err := ml.LoadRegistry(c.ModelDir, condition.All(), loader, m)
	if catalog != nil {
		if rerr := catalog.RecordLoads(results); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to record model loads")
		}
	}
	if err != nil {
		log.Error().Err(err).Str("model_dir", c.ModelDir).Msg("no models available, refusing to start")
		return err
	}

	svc, err := predict.NewService(reg, m)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithMetrics(m, m.Handler())}
	if catalog != nil {
		opts = append(opts, server.WithHistory(catalog))
	}
	srv := server.New(svc, server.Config{
		Addr:           c.Addr(),
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		AllowedOrigins: c.AllowedOrigins,
	}, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// initializeCatalog opens the model catalog if DATA_PATH is configured
func initializeCatalog(c cfg.Settings) *storage.Catalog {
	if c.DataPath == "" {
		return nil
	}
	catalog, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("catalog initialization failed, continuing without load history")
		return nil
	}
	return catalog
}
