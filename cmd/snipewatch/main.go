package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"snipewatch/internal/control"
	"snipewatch/internal/handlers"
	"snipewatch/internal/journal"
	"snipewatch/internal/middleware"
	"snipewatch/internal/purchase"
	"snipewatch/internal/routes"
	"snipewatch/internal/tracker"
	"snipewatch/pkg/config"
	"snipewatch/pkg/solana"
	"snipewatch/pkg/solana/stream"
	"snipewatch/schedule"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	log.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	for _, h := range solana.CheckEndpoints(ctx, []string{cfg.RPCURL}, 0) {
		fields := log.Fields{"url": h.URL, "latency": h.Latency.String()}
		if !h.OK {
			log.WithFields(fields).WithField("error", h.Error).Warn("RPC endpoint is not healthy")
			continue
		}
		log.WithFields(fields).Info("RPC endpoint healthy")
	}

	limiter := solana.NewRateLimiter(cfg.RPCMinInterval)
	queries := solana.NewRateLimitedClient(solana.NewRPCQueryClient(cfg.RPCURL), limiter)
	validator := solana.NewMintValidator(queries, cfg.MintCacheSize)
	analyzer := solana.NewTransferAnalyzer(queries, solana.AnalyzerConfig{
		MatchRatio:     cfg.RecipientMatchRatio,
		SignatureLimit: cfg.RecipientSignatureLimit,
	})
	extractor := solana.NewMintExtractor(queries, validator)

	order := purchase.Order{QuoteAmount: cfg.QuoteAmount, Slippage: cfg.BuySlippage}
	buyer, err := solana.LoadBuyer(solana.BuyerSource{
		PrivateKey:       cfg.PrivateKey,
		KeystoreDir:      cfg.KeystoreDir,
		KeystoreAddress:  cfg.KeystoreAddress,
		KeystorePassword: cfg.KeystorePassword,
	})
	if err != nil {
		return err
	}
	if buyer != nil {
		order.Buyer = buyer.PublicKey.ToBase58()
		log.WithField("buyer", order.Buyer).Info("Buyer wallet loaded")
	}

	var purchaser tracker.Purchaser = purchase.NewLogPurchaser(order)
	var consumer *config.Consumer
	if cfg.RabbitMQ.Enabled() {
		conn, err := config.ConnectRabbitMQ(ctx, cfg.RabbitMQ)
		if err != nil {
			return err
		}
		defer conn.Close()

		publisher, err := config.NewPublisher(conn)
		if err != nil {
			return err
		}
		defer publisher.Close()
		purchaser = purchase.NewSignalPublisher(publisher, cfg.RabbitMQ.PurchaseQueue, order)

		consumer, err = config.NewConsumer(conn, cfg.RabbitMQ.ControlQueue)
		if err != nil {
			return err
		}
		defer consumer.Close()
	}

	controller := tracker.NewController(tracker.Config{
		MinTransferLamports:      cfg.MinTransferLamports,
		ProcessedSignaturesLimit: cfg.ProcessedSignaturesLimit,
		PendingTokenTTL:          cfg.PendingTokenTTL,
	}, cfg.TargetWallet, queries, analyzer, extractor, purchaser)

	var events handlers.EventSource
	if cfg.Database.Enabled() {
		db, err := config.OpenDatabase(cfg.Database)
		if err != nil {
			return err
		}
		defer config.CloseDatabase(db)

		j := journal.New(db)
		controller.SetJournal(j)
		events = j
	}

	manager := stream.NewManager(stream.Config{
		Endpoint:          cfg.WSURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatGrace:    cfg.HeartbeatGrace,
		PongTimeout:       cfg.PongTimeout,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, cfg.TargetWallet)
	controller.SetRetargeter(manager)

	if err := controller.Prime(ctx); err != nil {
		log.WithError(err).Warn("Failed to prime target balance, first notification will set it")
	}

	if err := manager.Start(ctx, controller); err != nil {
		return err
	}
	defer manager.Stop()

	scheduler, err := schedule.New(pruneSpec(cfg), controller, manager)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if consumer != nil {
		handler := control.NewHandler(controller)
		go func() {
			if err := consumer.Consume(ctx, handler.Handle); err != nil {
				log.WithError(err).Error("Control consumer stopped")
			}
		}()
	}

	var server *http.Server
	if cfg.HTTPAddr != "" {
		api := handlers.NewAPI(controller, manager, events)
		server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           routes.SetupRouter(ctx, api, middleware.RateLimiterConfig{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("addr", cfg.HTTPAddr).Info("Status API listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Status API stopped")
			}
		}()
	}

	log.WithFields(log.Fields{
		"target":       cfg.TargetWallet,
		"min_transfer": cfg.MinTransferLamports,
		"rpc_interval": cfg.RPCMinInterval.String(),
		"journal":      cfg.Database.Enabled(),
		"rabbitmq":     cfg.RabbitMQ.Enabled(),
		"pending_ttl":  cfg.PendingTokenTTL.String(),
		"mint_cache":   cfg.MintCacheSize,
		"dedupe_limit": cfg.ProcessedSignaturesLimit,
	}).Info("Watcher started")

	<-ctx.Done()
	log.Info("Shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Status API shutdown failed")
		}
	}
	return nil
}

// pruneSpec disables the prune job when no TTL is set.
func pruneSpec(cfg *config.Config) string {
	if cfg.PendingTokenTTL <= 0 {
		return ""
	}
	return cfg.PruneSchedule
}
