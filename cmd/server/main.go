package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/Chat/internal/adapters/http"
	wssignal "github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)
	cmd := &cobra.Command{
		Use:           "chat-server",
		Short:         "Presence, event delivery and call signaling for the chat app",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			err := run(ctx, configPath, port)
			if err != nil {
				log.Error().Err(err).Msg("server failed")
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides the config file")
	return cmd
}

func run(ctx context.Context, configPath string, port int) error {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cfg)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	reg := app.NewRegistry()
	rt := app.NewRouter(reg, app.SimplePolicy{}, m)
	calls := app.NewCoordinator(reg, rt,
		app.WithRingTimeout(cfg.Call.RingTimeout),
		app.WithCallMetrics(m),
	)
	o := &orch.Orchestrator{
		Registry: reg,
		Router:   rt,
		Calls:    calls,
		Metrics:  m,
	}

	ctl := wssignal.NewSignalWSController(o, buildAuth(cfg),
		wssignal.NewCallRateLimiter(cfg.Call.RateLimit, cfg.Call.RateInterval),
		wssignal.Options{
			ReadLimit:      cfg.WS.ReadLimit,
			PingPeriod:     cfg.WS.PingPeriod,
			PongWait:       cfg.WS.PongWait,
			WriteWait:      cfg.WS.WriteWait,
			SendBuffer:     cfg.WS.SendBuffer,
			AllowedOrigins: cfg.WS.AllowedOrigins,
		})

	r := router.SetupRouter(ctx, cfg, ctl, promReg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Chat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Hijacked websockets are not tracked by Shutdown; ctx cancellation
	// stops their pumps.
	ctl.Wait()
	log.Info().Msg("Server exited gracefully")
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func buildAuth(cfg *config.Config) auth.Authenticator {
	var chain auth.Chain
	if cfg.Auth.JWTSecret != "" {
		var opts []auth.JWTOption
		if cfg.Auth.Issuer != "" {
			opts = append(opts, auth.WithIssuer(cfg.Auth.Issuer))
		}
		chain = append(chain, auth.JWTAuthenticator{
			Verifier:   auth.NewJWTVerifier(cfg.Auth.JWTSecret, opts...),
			CookieName: cfg.Auth.CookieName,
		})
	}
	if cfg.Auth.Session {
		chain = append(chain, auth.SessionAuthenticator{})
	}
	return chain
}
