package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/pandochealth/triage/internal/config"
	"github.com/pandochealth/triage/internal/triage"
	"github.com/pandochealth/triage/pkg/logging"
)

// Reads a JSON array of knowledge cards, embeds each one, and indexes it in
// the vector store. Usage: ingest -file cards.json
func main() {
	_ = godotenv.Load()

	file := flag.String("file", "", "path to a JSON array of knowledge cards")
	flag.Parse()
	if *file == "" {
		log.Fatal("usage: ingest -file cards.json")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	var cards []triage.KnowledgeCard
	if err := json.Unmarshal(data, &cards); err != nil {
		log.Fatalf("parse %s: %v", *file, err)
	}
	if len(cards) == 0 {
		log.Fatalf("%s contains no cards", *file)
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	embedder := triage.NewOpenAIEmbeddingClient(openai.NewClient(cfg.OpenAIAPIKey), cfg.EmbedModel, cfg.EmbedDimensions)
	retriever := triage.NewRetriever(redisClient, embedder, cfg.RAGIndexName, cfg.RAGKeyPrefix, cfg.EmbedDimensions, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := retriever.EnsureIndex(ctx); err != nil {
		log.Fatalf("ensure index: %v", err)
	}
	if err := retriever.Ingest(ctx, cards); err != nil {
		log.Fatalf("ingest: %v", err)
	}

	fmt.Printf("ingested %d cards\n", len(cards))
}
