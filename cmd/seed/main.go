// Command seed loads canonical taxonomy YAML files into Postgres and
// backfills embedding vectors for topics that do not have one yet.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prepnexus/qbank/internal/embedding"
	"github.com/prepnexus/qbank/internal/platform/config"
	"github.com/prepnexus/qbank/internal/platform/database"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	seedDir := flag.String("dir", "", "seed directory (default from QBANK_TAXONOMY_SEED_DIR)")
	skipEmbed := flag.Bool("skip-embed", false, "skip the embedding backfill")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	dir := cfg.Taxonomy.SeedDir
	if *seedDir != "" {
		dir = *seedDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	store, err := taxonomy.NewPostgresStore(db.Pool)
	if err != nil {
		slog.Error("failed to create topic store", "error", err)
		os.Exit(1)
	}

	if _, err := taxonomy.LoadSeedDir(ctx, store, dir); err != nil {
		slog.Error("seeding failed", "dir", dir, "error", err)
		os.Exit(1)
	}

	if *skipEmbed {
		return
	}
	if !cfg.HasEmbeddingProvider() {
		slog.Warn("no embedding provider configured, skipping embedding backfill")
		return
	}

	router := embedding.NewRouter()
	if cfg.Embedding.Google.APIKey != "" {
		router.Register("google", embedding.NewGoogleProvider(
			cfg.Embedding.Google.APIKey,
			embedding.WithGoogleModel(cfg.Embedding.Google.Model),
		))
	}
	if cfg.Embedding.OpenAI.APIKey != "" {
		opts := []embedding.OpenAIOption{embedding.WithModel(cfg.Embedding.OpenAI.Model)}
		if cfg.Embedding.OpenAI.BaseURL != "" {
			opts = append(opts, embedding.WithBaseURL(cfg.Embedding.OpenAI.BaseURL))
		}
		router.Register("openai", embedding.NewOpenAIProvider(cfg.Embedding.OpenAI.APIKey, opts...))
	}

	embedded, err := backfillEmbeddings(ctx, store, router)
	if err != nil {
		slog.Error("embedding backfill failed", "error", err)
		os.Exit(1)
	}
	slog.Info("embeddings backfilled", "topics", embedded)
}

// backfillEmbeddings embeds every canonical topic that has no vector. Topic
// vectors use the same framing the resolver uses for labels, so query and
// document embeddings are comparable.
func backfillEmbeddings(ctx context.Context, store taxonomy.Store, embedder embedding.Embedder) (int, error) {
	topics, err := store.ListUnembedded(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, t := range topics {
		vec, err := embedder.Embed(ctx, embedding.Request{
			Text: "Topic: " + t.Name,
			Task: embedding.TaskRetrievalDocument,
		})
		if err != nil {
			slog.Warn("embedding topic failed, skipping", "topic_id", t.ID, "error", err)
			continue
		}
		if err := store.UpsertEmbedding(ctx, t.ID, vec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
