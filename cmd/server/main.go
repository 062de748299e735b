package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/better-wallet/webconnect/internal/api"
	"github.com/better-wallet/webconnect/internal/config"
	"github.com/better-wallet/webconnect/internal/delegate"
	"github.com/better-wallet/webconnect/internal/gateway"
	"github.com/better-wallet/webconnect/internal/keyexec"
	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/metrics"
	"github.com/better-wallet/webconnect/internal/middleware"
	"github.com/better-wallet/webconnect/internal/notify"
	"github.com/better-wallet/webconnect/internal/push"
	"github.com/better-wallet/webconnect/internal/signer"
	"github.com/better-wallet/webconnect/internal/storage"
	"github.com/better-wallet/webconnect/internal/webconnect"
	"github.com/better-wallet/webconnect/pkg/types"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	store, err := storage.New(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("connected to database")

	ownerKeys := storage.NewOwnerKeyRepository(store)
	connections := storage.NewConnectionRepository(store)
	requests := storage.NewRequestRepository(store)

	// Delegate keys are encrypted before they reach the database
	kms, err := keyexec.NewKMSProvider(ctx, &keyexec.KMSConfig{
		Provider:          cfg.KMSProvider,
		LocalMasterKeyHex: cfg.KMSLocalMasterKey,
		AWSKMSKeyID:       cfg.KMSAWSKeyID,
		AWSKMSRegion:      cfg.KMSAWSRegion,
		VaultAddress:      cfg.KMSVaultAddress,
		VaultToken:        cfg.KMSVaultToken,
		VaultTransitKey:   cfg.KMSVaultTransitKey,
	})
	if err != nil {
		slog.Error("failed to initialize KMS provider", "error", err)
		os.Exit(1)
	}
	secure := keyexec.NewSecureStorage(kms, storage.NewDelegateKeyRepository(store))

	slog.Info("initialized KMS provider", "provider", cfg.KMSProvider)

	gw, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.GatewayURL,
		Timeout: cfg.GatewayTimeout,
		RPS:     cfg.GatewayRPS,
		Burst:   cfg.GatewayBurst,
	})
	if err != nil {
		slog.Error("failed to initialize gateway client", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	center := notify.NewCenter()
	registrar := push.NewRegistrar(ownerKeys, secure, gw, push.Config{
		DeviceID:   cfg.PushDeviceID,
		PushToken:  cfg.PushToken,
		DeviceType: cfg.PushDeviceType,
		Chains:     cfg.ChainIDs,
	})
	registrar.Subscribe(center)

	broker := signer.NewBroker(cfg.KeyTypes()...)
	dispatcher := delegate.NewSerialDispatcher(0)
	delegates := delegate.NewService(delegate.Deps{
		Signer:   broker,
		Backend:  gw,
		Keys:     ownerKeys,
		Secure:   secure,
		Notifier: center,
		Metrics:  m,
	}, delegate.Config{
		Chains:         cfg.ChainIDs,
		Label:          cfg.DelegateLabel,
		BackendTimeout: cfg.DelegateTimeout,
	}, dispatcher)

	controller := webconnect.NewController(connections, requests, ownerKeys,
		webconnect.NewTransformer(cfg.DefaultChainID), types.Peer{
			Name:        cfg.WalletName,
			Description: cfg.WalletDescription,
			URL:         cfg.WalletURL,
			Icons:       cfg.WalletIcons,
		})

	limiter := middleware.NewRateLimiter(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
	if limiter != nil {
		go limiter.Run(ctx)
	}

	// Initialize API server
	server := api.NewServer(api.Options{
		Port:        cfg.Port,
		Metrics:     m,
		RateLimiter: limiter,
		Ping:        store.Ping,
	}, controller, delegates, ownerKeys, broker)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for either server error or shutdown signal
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}

	case <-ctx.Done():
		slog.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		// pending completions and push registrations finish before the
		// database goes away
		dispatcher.Close()
		registrar.Wait()

		slog.Info("server stopped")
	}
}
