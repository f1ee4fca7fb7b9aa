package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement-core/internal/adapter/api"
	"procurement-core/internal/adapter/client"
	"procurement-core/internal/adapter/events"
	"procurement-core/internal/adapter/mailbox"
	"procurement-core/internal/adapter/store"
	"procurement-core/internal/config"
	"procurement-core/internal/domain/repository"
	"procurement-core/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx := context.Background()

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	vendors := store.NewVendorStore(db)
	requests := store.NewRequestStore(db)
	proposals := store.NewProposalStore(db)

	genaiClient, err := client.NewGenAIClient(ctx, client.GeminiConfig{
		APIKey:   cfg.GeminiAPIKey,
		Project:  cfg.GoogleCloudProject,
		Location: cfg.GoogleCloudLocation,
	})
	if err != nil {
		log.Fatalf("failed to init genai client: %v", err)
	}

	primaryModel := client.NewGeminiClientFromClient(genaiClient, cfg.OracleModel)
	fallbackModel := newFallback(cfg, genaiClient)
	resilientProvider := usecase.NewResilientProvider(primaryModel, fallbackModel)
	oracle := client.NewProposalOracle(resilientProvider)
	embedder := client.NewEmbedderFromClient(genaiClient, cfg.EmbeddingModel, int32(cfg.EmbeddingDim))

	ingestOpts := []usecase.IngestorOption{usecase.WithDefaultCurrency(cfg.DefaultCurrency)}
	var pollOpts []usecase.PollerOption
	handlerOpts := []api.HandlerOption{}

	// Redis for proposal claims and the scan lease
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		guard := store.NewRedisGuard(rdb, cfg.RedisPrefix, cfg.ClaimTTL)
		if err := guard.Ping(ctx); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		ingestOpts = append(ingestOpts, usecase.WithProposalGuard(guard))
		pollOpts = append(pollOpts, usecase.WithScanLease(guard))
	} else {
		ingestOpts = append(ingestOpts, usecase.WithProposalGuard(store.NewLocalGuard()))
	}

	// Qdrant for the reply archive
	if cfg.QdrantHost != "" {
		qClient, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.QdrantHost,
			Port: cfg.QdrantPort,
		})
		if err != nil {
			log.Fatalf("failed to connect to qdrant: %v", err)
		}
		archive := store.NewQdrantArchive(qClient, cfg.QdrantCollection)
		if err := archive.InitCollection(ctx, cfg.EmbeddingDim); err != nil {
			log.Fatalf("failed to init qdrant collection: %v", err)
		}
		ingestOpts = append(ingestOpts, usecase.WithReplyArchive(archive, embedder))
		handlerOpts = append(handlerOpts, api.WithReplySearch(archive, embedder))
	}

	var publisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		ingestOpts = append(ingestOpts, usecase.WithEventPublisher(publisher))
	}

	ingestor := usecase.NewIngestor(requests, vendors, proposals, oracle, ingestOpts...)
	scoring := usecase.NewScoringOrchestrator(requests, proposals, oracle)

	var poller *usecase.Poller
	if cfg.IMAP.Host != "" {
		box := mailbox.NewIMAPMailbox(mailbox.Config{
			Host:               cfg.IMAP.Host,
			Port:               cfg.IMAP.Port,
			User:               cfg.IMAP.User,
			Password:           cfg.IMAP.Password,
			AuthTimeout:        cfg.IMAP.AuthTimeout,
			CommandTimeout:     cfg.IMAP.CommandTimeout,
			InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
		})
		poller = usecase.NewPoller(box, ingestor, usecase.PollerConfig{
			Interval:       cfg.Poll.Interval,
			ConnectTimeout: cfg.IMAP.ConnectTimeout,
			LookBack:       cfg.Poll.LookBack,
			MarkSeen:       usecase.MarkSeenPolicy(cfg.Poll.MarkSeen),
			LeaseTTL:       cfg.Poll.LeaseTTL,
		}, pollOpts...)
		handlerOpts = append(handlerOpts, api.WithScanner(poller))
	}

	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := embedder.CreateEmbedding(warmCtx, "warmup"); err != nil {
			log.Printf("[WARMER] Embedder warm-up failed: %v", err)
		}
		if _, err := resilientProvider.Generate(warmCtx, "Reply with {}"); err != nil {
			log.Printf("[WARMER] Oracle warm-up failed: %v", err)
		}
		log.Println("[WARMER] Pre-warm complete.")
	}()

	// Initialize API Layer (Delivery Layer)
	app := fiber.New(fiber.Config{
		AppName: "Procurement Core",
	})
	handler := api.NewProcurementHandler(vendors, requests, ingestor, scoring, handlerOpts...)
	api.SetupRouter(app, handler, api.HealthInfo{Version: cfg.AppVersion, Env: cfg.Env})

	pollCtx, stopPolling := context.WithCancel(context.Background())
	if poller != nil && cfg.Poll.Enabled {
		go func() {
			select {
			case <-time.After(cfg.Poll.StartDelay):
				poller.Start(pollCtx)
			case <-pollCtx.Done():
			}
		}()
	}

	go func() {
		log.Printf("Procurement Core running on port %d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopPolling()
	if poller != nil {
		if err := poller.Stop(shutdownCtx); err != nil {
			log.Printf("[POLLER] stop: %v", err)
		}
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Printf("[EVENTS] close: %v", err)
		}
	}
}

// newFallback picks the secondary generator. Gemini reuses the shared genai client.
func newFallback(cfg *config.Config, genaiClient *genai.Client) repository.AIProvider {
	switch cfg.OracleFallbackProvider {
	case config.ProviderOpenAI:
		return client.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OracleFallbackModel)
	case config.ProviderAnthropic:
		return client.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.OracleFallbackModel)
	default:
		return client.NewGeminiClientFromClient(genaiClient, cfg.OracleFallbackModel)
	}
}
