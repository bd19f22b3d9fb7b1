package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatbot-gateway/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantCache is an optional semantic answer cache: high-confidence
// answers are stored under the prompt's embedding so a semantically
// close question from the same user can be served without a provider
// call. Entries expire after 24 hours via a range filter on created_at.
type QdrantCache struct {
	client         *qdrant.Client
	collectionName string
	logger         *slog.Logger
}

func NewQdrantCache(client *qdrant.Client, collectionName string, logger *slog.Logger) *QdrantCache {
	return &QdrantCache{client: client, collectionName: collectionName, logger: logger}
}

func (c *QdrantCache) InitCollection(ctx context.Context, dim uint64) error {
	_, err := c.client.GetCollectionInfo(ctx, c.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != codes.NotFound {
			return err
		}
		err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	// Payload index for the freshness range filter.
	_, err = c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: c.collectionName,
		FieldName:      "created_at",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		c.logger.Warn("could not create created_at index, may already exist", "error", err)
	}
	return nil
}

func (c *QdrantCache) Search(ctx context.Context, vector []float32, userID string, threshold float32) (*entity.AIResponse, error) {
	oneDayAgo := time.Now().Add(-24 * time.Hour).Unix()
	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("user_id", userID),
		{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "created_at",
					Range: &qdrant.Range{Gte: qdrant.PtrOf(float64(oneDayAgo))},
				},
			},
		},
	}}

	res, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}

	payload := res[0].Payload
	return &entity.AIResponse{
		Content:      payload["content"].GetStringValue(),
		Confidence:   payload["confidence"].GetDoubleValue(),
		ModelVersion: payload["model_version"].GetStringValue(),
		Cached:       true,
	}, nil
}

func (c *QdrantCache) Save(ctx context.Context, prompt string, resp *entity.AIResponse, vector []float32, userID string) error {
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"prompt":        prompt,
					"content":       resp.Content,
					"confidence":    resp.Confidence,
					"model_version": resp.ModelVersion,
					"user_id":       userID,
					"created_at":    time.Now().Unix(),
				}),
			},
		},
	})
	return err
}
