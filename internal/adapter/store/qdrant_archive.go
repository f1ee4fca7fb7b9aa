package store

import (
	"context"
	"fmt"
	"log"
	"procurement-core/internal/domain/entity"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const excerptLen = 500

// QdrantArchive keeps an embedding of every accepted vendor reply for similarity search.
type QdrantArchive struct {
	client         *qdrant.Client
	collectionName string
}

func NewQdrantArchive(client *qdrant.Client, collectionName string) *QdrantArchive {
	return &QdrantArchive{
		client:         client,
		collectionName: collectionName,
	}
}

func (s *QdrantArchive) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != codes.NotFound {
			return err
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	// Keyword index so replies can be narrowed to one request.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collectionName,
		FieldName:      "rfp_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		log.Printf("[ARCHIVE] Warning: Could not create rfp_id index (might already exist): %v", err)
	}
	return nil
}

// Save upserts under a point id derived from the proposal id, so saving twice is harmless.
func (s *QdrantArchive) Save(ctx context.Context, p *entity.Proposal, vector []float32) error {
	payload := map[string]any{
		"proposal_id": p.ID,
		"rfp_id":      p.RequestID,
		"vendor_id":   p.VendorID,
		"excerpt":     excerpt(p.RawBody),
		"created_at":  time.Now().Unix(),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(pointID(p.ID)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	return err
}

func (s *QdrantArchive) Search(ctx context.Context, vector []float32, requestID string, limit uint64) ([]entity.ArchivedReply, error) {
	res, err := s.client.Query(ctx, searchQuery(s.collectionName, vector, requestID, limit))
	if err != nil {
		return nil, err
	}

	out := make([]entity.ArchivedReply, 0, len(res))
	for _, hit := range res {
		out = append(out, entity.ArchivedReply{
			ProposalID: hit.Payload["proposal_id"].GetStringValue(),
			RequestID:  hit.Payload["rfp_id"].GetStringValue(),
			VendorID:   hit.Payload["vendor_id"].GetStringValue(),
			Excerpt:    hit.Payload["excerpt"].GetStringValue(),
			Score:      hit.Score,
		})
	}
	return out, nil
}

func searchQuery(collection string, vector []float32, requestID string, limit uint64) *qdrant.QueryPoints {
	if limit == 0 {
		limit = 5
	}
	q := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if requestID != "" {
		q.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("rfp_id", requestID)},
		}
	}
	return q
}

func pointID(proposalID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(proposalID)).String()
}

func excerpt(body string) string {
	if utf8.RuneCountInString(body) <= excerptLen {
		return body
	}
	r := []rune(body)
	return string(r[:excerptLen]) + "…"
}
