// Package docindex exposes the semantic document index consumed by the
// retrieval engine.
package docindex

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ai-analyst-be/internal/repository/unitofwork"
	"ai-analyst-be/pkg/embedding"
	"ai-analyst-be/pkg/store"
)

// ErrUnavailable wraps infrastructure failures (embedding backend or vector
// store down) so callers can distinguish them from an honest empty result.
var ErrUnavailable = errors.New("docindex: index unavailable")

// Index is the search surface over ingested document chunks.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]store.RetrievedDoc, error)
}

// PgVectorIndex answers similarity searches from the pgvector-backed chunk
// table, embedding the query text on the way in.
type PgVectorIndex struct {
	embeddingProvider embedding.EmbeddingProvider
	uowFactory        unitofwork.RepositoryFactory
	threshold         float64
	logger            *log.Logger
}

func NewPgVectorIndex(
	embeddingProvider embedding.EmbeddingProvider,
	uowFactory unitofwork.RepositoryFactory,
	threshold float64,
	logger *log.Logger,
) *PgVectorIndex {
	return &PgVectorIndex{
		embeddingProvider: embeddingProvider,
		uowFactory:        uowFactory,
		threshold:         threshold,
		logger:            logger,
	}
}

// Search embeds the query and returns up to k chunks above the similarity
// threshold, best first.
func (idx *PgVectorIndex) Search(ctx context.Context, query string, k int) ([]store.RetrievedDoc, error) {
	resp, err := idx.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}

	uow := idx.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.DocumentChunkRepository().SearchSimilarWithScore(ctx, resp.Embedding.Values, k, idx.threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", ErrUnavailable, err)
	}

	docs := make([]store.RetrievedDoc, len(scored))
	for i, s := range scored {
		docs[i] = store.RetrievedDoc{
			ChunkID: s.Chunk.Id.String(),
			Content: s.Chunk.Content,
			Score:   float32(s.Similarity),
		}
	}
	idx.logger.Printf("[DOCINDEX] Query returned %d/%d chunks", len(docs), k)
	return docs, nil
}
