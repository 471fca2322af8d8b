package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/rpc/middleware"
	"nftmarket/storage"
)

const envPrefix = "NFTMARKET"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis allocation file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envPrefix + "_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("marketd", env, cfg.LogFile)

	if secret := strings.TrimSpace(os.Getenv(envPrefix + "_AUTH_SECRET")); secret != "" {
		cfg.AuthSecret = secret
	}
	if _, err := cfg.FeeReceiverAddress(); err != nil {
		logger.Error("Fee receiver misconfigured", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	genesisPath := cfg.GenesisFile
	if trimmed := strings.TrimSpace(*genesisFlag); trimmed != "" {
		genesisPath = trimmed
	}
	gen, err := config.LoadGenesis(genesisPath)
	if err != nil {
		logger.Error("Failed to load genesis allocation", slog.Any("error", err))
		os.Exit(1)
	}
	if err := node.ApplyGenesis(gen); err != nil {
		logger.Error("Failed to apply genesis allocation", slog.Any("error", err))
		os.Exit(1)
	}

	var auth *middleware.Authenticator
	if strings.TrimSpace(cfg.AuthSecret) != "" {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: cfg.AuthSecret,
			Issuer:     cfg.AuthIssuer,
		}, logger)
	}
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})

	server := rpc.NewServer(node, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(auth, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting JSON-RPC server",
			slog.String("addr", cfg.ListenAddress),
			slog.Any("venues", node.Venues()),
			slog.Bool("auth_enabled", auth != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
}
