package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eo-datahub/stac-gateway/internal/config"
	"github.com/eo-datahub/stac-gateway/internal/handlers"
	"github.com/eo-datahub/stac-gateway/internal/logger"
	"github.com/eo-datahub/stac-gateway/internal/middleware"
	"github.com/eo-datahub/stac-gateway/internal/sas"
	"github.com/eo-datahub/stac-gateway/internal/stac"
	"github.com/eo-datahub/stac-gateway/internal/tokencache"
	"github.com/eo-datahub/stac-gateway/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flag.Parse()

	appLogger := logger.New(cfg.DebugMode)
	defer func() {
		_ = appLogger.Sync() // Ignore sync errors on close, as per zap documentation
	}()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("Invalid configuration", "error", err)
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	}

	ctx, cancel := context.WithCancel(context.Background())

	strategy, err := newStrategy(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create signed URL issuer", "error", err)
	}

	cache := tokencache.New(appLogger.Named("tokencache"), cfg.RefreshMargin, cfg.NegativeTTL)
	go cache.Run(ctx, cfg.SweepInterval)

	rewriter := stac.NewRewriter(appLogger.Named("rewriter"), strategy, cache)

	router := gin.Default()
	registerHandlers(router, cfg, strategy.Name(), rewriter, cache, appLogger)

	srv, err := newServer(cfg, router)
	if err != nil {
		appLogger.Fatal("Failed to configure server", "error", err)
	}

	go func() {
		appLogger.Info("Server starting",
			"address", cfg.Address,
			"upstream", cfg.UpstreamURL,
			"issuer_mode", cfg.IssuerMode.String(),
			"strategy", strategy.Name(),
			"tls", srv.TLSConfig != nil,
			"debug_mode", cfg.DebugMode,
		)
		if err := listenAndServe(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Server failed to start",
				"error", err,
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutdown signal received, shutting down server...")

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown",
			"error", err,
		)
	}

	appLogger.Info("Server exited gracefully")
}

// newStrategy builds the issuer for the configured mode and wraps it in the matching rewrite strategy.
//
// Issuer modes:
//   - local: SAS tokens signed with the storage account key, one per blob
//   - remote: tokens fetched from a signing service, one per collection or container
//
//nolint:ireturn // Returns Strategy interface by design for pluggable issuers.
func newStrategy(cfg *config.Config, appLogger *logger.Logger) (stac.Strategy, error) {
	switch cfg.IssuerMode {
	case config.LocalSigning:
		issuer, err := sas.NewLocalIssuer(cfg.ConnectionString, cfg.Container, cfg.LocalValidity)
		if err != nil {
			return nil, err
		}
		appLogger.Info("Using local SAS signing",
			"account", issuer.AccountName(),
			"container", issuer.Container(),
			"validity", cfg.LocalValidity,
		)
		return stac.NewLocalStrategy(issuer), nil

	case config.RemoteDelegation:
		opts := []sas.RemoteOption{
			sas.WithHTTPClient(&http.Client{Timeout: cfg.SigningTimeout}),
			sas.WithExpiryField(cfg.ExpiryField),
			sas.WithRateLimit(cfg.SigningRateLimit),
		}
		if cfg.CatalogURL != "" {
			opts = append(opts, sas.WithCollectionCheck(cfg.CatalogURL))
		}
		issuer := sas.NewRemoteIssuer(cfg.SigningEndpoint, opts...)
		appLogger.Info("Using remote token delegation",
			"endpoint", cfg.SigningEndpoint,
			"scope", cfg.RemoteScope.String(),
		)
		if cfg.RemoteScope == config.ContainerScope {
			return stac.NewContainerStrategy(issuer, cfg.StorageHostSuffix), nil
		}
		return stac.NewCollectionStrategy(issuer, cfg.StorageHostSuffix), nil

	default:
		return nil, fmt.Errorf("unknown issuer mode: %q (valid modes: local, remote)", cfg.IssuerMode)
	}
}

func registerHandlers(router *gin.Engine, cfg *config.Config, strategyName string, rewriter *stac.Rewriter, cache *tokencache.Cache, appLogger *logger.Logger) {
	router.Use(
		middleware.CORS(),
		middleware.ProxyHeaders(),
		middleware.Encoding(),
		middleware.BlobAccess(rewriter),
	)

	router.GET("/health", handlers.NewHealthHandler(strategyName).HealthCheck)

	if cfg.DebugMode {
		tokensHandler := handlers.NewTokensHandler(appLogger, cache)
		debugRoutes := router.Group("/debug")
		debugRoutes.GET("/tokens", tokensHandler.ListTokens)
		debugRoutes.DELETE("/tokens/*scope", tokensHandler.InvalidateToken)
	}

	// Validate already checked the URL.
	target, _ := url.Parse(cfg.UpstreamURL)
	proxy := upstream.NewProxy(appLogger.Named("upstream"), target)
	router.NoRoute(proxy.Handle)
}
