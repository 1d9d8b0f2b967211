package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inference HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg.Server.Port = resolvePort(servePort, cfg.Server.Port)
		cfg.Server.Host = resolveHost(serveHost, cfg.Server.Host)
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		det := initDetector(cfg)
		handler := buildRouter(det, routerOptions{
			ModelName:    cfg.OpenRouter.Model,
			MaxBodyBytes: cfg.Server.MaxBodyBytes(),
		})

		zap.L().Info("starting vidauth inference server",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("model", cfg.OpenRouter.Model),
			zap.String("api_key", cfg.OpenRouter.MaskedKey()),
			zap.Bool("demo_mode", det.DemoMode()),
			zap.Int("max_batch_size", det.MaxBatchSize()),
			zap.Bool("debug", cfg.Server.Debug),
		)

		return startServer(ctx, handler, cfg.Server.Addr())
	},
}

// resolvePort returns the flag port when set, otherwise the config port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// resolveHost returns the flag host when set, otherwise the config host.
func resolveHost(flagHost, cfgHost string) string {
	if flagHost != "" {
		return flagHost
	}
	return cfgHost
}

// startServer serves handler on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func startServer(ctx context.Context, handler http.Handler, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
