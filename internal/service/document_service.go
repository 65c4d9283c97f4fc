package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-analyst-be/internal/dto"
	"ai-analyst-be/internal/entity"
	"ai-analyst-be/internal/repository/specification"
	"ai-analyst-be/internal/repository/unitofwork"
	"ai-analyst-be/pkg/utils"

	"github.com/google/uuid"
)

// Chunking parameters for ingestion. Roughly 375 tokens per chunk with
// boundary overlap to preserve context.
const (
	chunkSize    = 1500
	chunkOverlap = 200
)

type IDocumentService interface {
	Ingest(ctx context.Context, request *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error)
	GetAll(ctx context.Context) ([]*dto.GetDocumentResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
	}
}

// Ingest stores the document record and hands each chunk to the embedding
// consumer through the event bus. Chunks appear in the index asynchronously.
func (ds *documentService) Ingest(ctx context.Context, request *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error) {
	uow := ds.uowFactory.NewUnitOfWork(ctx)

	document := &entity.Document{
		Title:  request.Title,
		Source: request.Source,
	}
	if err := uow.DocumentRepository().Create(ctx, document); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	chunks := utils.SplitText(request.Content, chunkSize, chunkOverlap)
	for i, chunk := range chunks {
		payload, err := json.Marshal(dto.EmbedDocumentChunkMessage{
			DocumentId: document.Id,
			ChunkIndex: i,
			Content:    chunk,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal chunk message: %w", err)
		}
		if err := ds.publisherService.Publish(ctx, payload); err != nil {
			return nil, fmt.Errorf("publish chunk %d: %w", i, err)
		}
	}

	return &dto.IngestDocumentResponse{
		Id:     document.Id,
		Chunks: len(chunks),
	}, nil
}

func (ds *documentService) GetAll(ctx context.Context) ([]*dto.GetDocumentResponse, error) {
	uow := ds.uowFactory.NewUnitOfWork(ctx)

	documents, err := uow.DocumentRepository().FindAll(ctx, specification.OrderBy{Field: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.GetDocumentResponse, len(documents))
	for i, d := range documents {
		count, err := uow.DocumentChunkRepository().Count(ctx, specification.ByDocumentID{DocumentID: d.Id})
		if err != nil {
			return nil, err
		}
		responses[i] = &dto.GetDocumentResponse{
			Id:        d.Id,
			Title:     d.Title,
			Source:    d.Source,
			Chunks:    count,
			CreatedAt: d.CreatedAt,
		}
	}
	return responses, nil
}

func (ds *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := ds.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.DocumentChunkRepository().DeleteByDocumentId(ctx, id); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.DocumentRepository().Delete(ctx, id); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
