package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/flowauth/adapters/flow"
	"github.com/layer-3/flowauth/adapters/tokenizer"
	"github.com/layer-3/flowauth/internal/metrics"
	"github.com/layer-3/flowauth/internal/ratelimit"
	"github.com/layer-3/flowauth/service"
	transport "github.com/layer-3/flowauth/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func signingKey(path string) (*ecdsa.PrivateKey, error) {
	if path != "" {
		return tokenizer.LoadSigningKey(path)
	}
	log.Warn().Msg("no session signing key configured, using an ephemeral key")
	return tokenizer.GenerateSigningKey()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			signKey, err := signingKey(cfg.Session.SigningKeyFile)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			clock := time2.DefaultClock
			access, err := flow.NewAccessClient(cfg.Flow.AccessNode)
			if err != nil {
				return err
			}
			authService := service.NewAuthService(
				service.AuthConfig{
					AppID:          cfg.Auth.AppID,
					NonceTTL:       cfg.Auth.NonceTTL,
					NonceRetention: cfg.Auth.NonceRetention,
					SessionTTL:     cfg.Session.TTL,
				},
				b.nonces,
				b.tokens,
				flow.NewAccountProofVerifier(flow.NewLedger(access, cfg.Flow.Timeout)),
				tokenizer.NewJWTTokenizer(signKey, cfg.Session.Issuer, cfg.Session.Audience, clock),
				b.eventPub,
				service.WithClock(clock),
				service.WithMetrics(metrics.New(registry)),
			)
			daoService := service.NewDAOService(b.daos, clock)

			gin.SetMode(cfg.Server.Mode)
			router := transport.SetupRouter(authService, daoService, transport.RouterConfig{
				Limiter:        ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0),
				Gatherer:       registry,
				TrustedProxies: cfg.Server.TrustedProxies,
			})

			go authService.RunNonceJanitor(log.Logger.WithContext(ctx), cfg.Auth.JanitorInterval)

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.Addr).Str("app_id", cfg.Auth.AppID).Msg("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		},
	}
}
