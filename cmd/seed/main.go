// Seeds the document index from a directory of plain-text files. Each file
// becomes one document; chunks are embedded synchronously so the index is
// queryable as soon as the run finishes.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ai-analyst-be/internal/config"
	"ai-analyst-be/internal/entity"
	"ai-analyst-be/internal/repository/unitofwork"
	"ai-analyst-be/pkg/database"
	"ai-analyst-be/pkg/embedding"
	"ai-analyst-be/pkg/embedding/jina"
	"ai-analyst-be/pkg/utils"
)

func main() {
	cfg := config.Load()

	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	docsDir := "./data/docs"
	if len(os.Args) > 1 {
		docsDir = os.Args[1]
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey, cfg.Ai.JinaModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbedModel)
	}

	uowFactory := unitofwork.NewRepositoryFactory(db)
	ctx := context.Background()

	entries, err := os.ReadDir(docsDir)
	if err != nil {
		log.Fatalf("Error: Failed to read docs directory %s: %v", docsDir, err)
	}

	seeded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		path := filepath.Join(docsDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warn: skipping %s: %v", path, err)
			continue
		}

		uow := uowFactory.NewUnitOfWork(ctx)
		document := &entity.Document{
			Title:  strings.TrimSuffix(entry.Name(), ".txt"),
			Source: path,
		}
		if err := uow.DocumentRepository().Create(ctx, document); err != nil {
			log.Fatalf("Error: Failed to create document %s: %v", entry.Name(), err)
		}

		chunks := utils.SplitText(string(raw), 1500, 200)
		chunkEntities := make([]*entity.DocumentChunk, 0, len(chunks))
		for i, chunk := range chunks {
			res, err := embeddingProvider.Generate(ctx, chunk, embedding.TaskRetrievalDocument)
			if err != nil {
				log.Fatalf("Error: Failed to embed chunk %d of %s: %v", i, entry.Name(), err)
			}
			chunkEntities = append(chunkEntities, &entity.DocumentChunk{
				DocumentId:     document.Id,
				ChunkIndex:     i,
				Content:        chunk,
				EmbeddingValue: res.Embedding.Values,
			})
		}
		if err := uow.DocumentChunkRepository().CreateBulk(ctx, chunkEntities); err != nil {
			log.Fatalf("Error: Failed to store chunks for %s: %v", entry.Name(), err)
		}

		log.Printf("Seeded %s (%d chunks)", entry.Name(), len(chunkEntities))
		seeded++
	}

	log.Printf("✅ Seeded %d documents", seeded)
}
