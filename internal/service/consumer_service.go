package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-analyst-be/internal/dto"
	"ai-analyst-be/internal/entity"
	"ai-analyst-be/internal/repository/unitofwork"
	"ai-analyst-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.EmbedDocumentChunkMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal chunk message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Embedding chunk %d of document %s", payload.ChunkIndex, payload.DocumentId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	res, err := cs.embeddingProvider.Generate(ctx, payload.Content, embedding.TaskRetrievalDocument)
	if err != nil {
		log.Printf("[ERROR] Failed to embed chunk %d of document %s: %v", payload.ChunkIndex, payload.DocumentId, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	chunk := &entity.DocumentChunk{
		DocumentId:     payload.DocumentId,
		ChunkIndex:     payload.ChunkIndex,
		Content:        payload.Content,
		EmbeddingValue: res.Embedding.Values,
	}
	if err := uow.DocumentChunkRepository().Create(ctx, chunk); err != nil {
		log.Printf("[ERROR] Failed to store chunk %d of document %s: %v", payload.ChunkIndex, payload.DocumentId, err)
		msg.Nack()
		return
	}

	log.Printf("[INFO] Stored chunk %d of document %s", payload.ChunkIndex, payload.DocumentId)
	msg.Ack()
}
