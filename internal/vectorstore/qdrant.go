package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/logging"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// exactScanDimensionThreshold is the embedding width above which the
// collection is created with an exact-scan index instead of HNSW.
const exactScanDimensionThreshold = 2000

// QdrantStore implements Store against a Qdrant collection.
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
	dimensions     int
	log            logging.Logger
}

// NewQdrantStore builds a QdrantStore; call Initialize before use.
func NewQdrantStore(cfg config.QdrantConfig, dims int, log logging.Logger) *QdrantStore {
	name := cfg.Collection
	if name == "" {
		name = "memories"
	}
	return &QdrantStore{collectionName: name, dimensions: dims, log: log}
}

// Initialize connects to Qdrant and creates the collection if absent,
// choosing the index strategy from the configured embedding width: HNSW
// for dims <= 2000, exact scan above that — logged because it is a
// startup-time, not-easily-reversible decision.
func (qs *QdrantStore) Initialize(ctx context.Context, cfg config.QdrantConfig) error {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}
	qs.client = client

	collections, err := client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
	}

	exists := false
	for _, name := range collections {
		if name == qs.collectionName {
			exists = true
			break
		}
	}

	if !exists {
		useExactScan := qs.dimensions > exactScanDimensionThreshold
		vectorsConfig := qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(qs.dimensions), //nolint:gosec // dims validated positive at config load
			Distance: qdrant.Distance_Cosine,
			HnswConfig: &qdrant.HnswConfigDiff{
				M: qdrant.PtrOf(uint64(0)), // 0 disables HNSW, forcing exact scan
			},
		})
		if !useExactScan {
			vectorsConfig = qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(qs.dimensions), //nolint:gosec // dims validated positive at config load
				Distance: qdrant.Distance_Cosine,
			})
		}

		if err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: qs.collectionName,
			VectorsConfig:  vectorsConfig,
		}); err != nil {
			return fmt.Errorf("vectorstore: create collection %s: %w", qs.collectionName, err)
		}

		if qs.log != nil {
			qs.log.Info("vectorstore: created collection",
				"collection", qs.collectionName,
				"dimensions", qs.dimensions,
				"index_strategy", indexStrategyName(useExactScan))
		}
	}

	return nil
}

func indexStrategyName(exact bool) string {
	if exact {
		return "exact_scan"
	}
	return "hnsw"
}

func (qs *QdrantStore) Insert(ctx context.Context, mem types.Memory) error {
	return qs.upsert(ctx, mem)
}

func (qs *QdrantStore) Update(ctx context.Context, mem types.Memory) error {
	return qs.upsert(ctx, mem)
}

func (qs *QdrantStore) upsert(ctx context.Context, mem types.Memory) error {
	if len(mem.Embedding) == 0 {
		return fmt.Errorf("vectorstore: memory %s has no embedding", mem.ID)
	}

	point, err := memoryToPoint(mem)
	if err != nil {
		return fmt.Errorf("vectorstore: encode point: %w", err)
	}

	_, err = qs.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qs.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	return nil
}

func (qs *QdrantStore) Delete(ctx context.Context, ownerID, id string) error {
	_, err := qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qs.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: []*qdrant.Condition{
					matchKeyword("id", id),
					matchKeyword("owner_id", ownerID),
				}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete %s: %w", id, err)
	}
	return nil
}

func (qs *QdrantStore) Get(ctx context.Context, ownerID, id string) (*types.Memory, error) {
	points, err := qs.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qs.collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	mem, err := pointToMemory(points[0])
	if err != nil {
		return nil, fmt.Errorf("vectorstore: decode point: %w", err)
	}
	if mem.OwnerID != ownerID {
		return nil, nil
	}
	return mem, nil
}

// GetAny fetches a point by id without an owner filter. See the Store
// interface doc: used only to distinguish not_found from access_denied.
func (qs *QdrantStore) GetAny(ctx context.Context, id string) (*types.Memory, error) {
	points, err := qs.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qs.collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	mem, err := pointToMemory(points[0])
	if err != nil {
		return nil, fmt.Errorf("vectorstore: decode point: %w", err)
	}
	return mem, nil
}

func (qs *QdrantStore) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]types.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vectorstore: search vector cannot be empty")
	}

	conditions := []*qdrant.Condition{matchKeyword("owner_id", filter.OwnerID)}
	for k, v := range filter.Metadata {
		conditions = append(conditions, matchKeyword(fmt.Sprintf("metadata.%s", k), fmt.Sprintf("%v", v)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	points, err := qs.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qs.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: conditions},
		Limit:          qdrant.PtrOf(uint64(limit)), //nolint:gosec // limit bounded above zero
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	out := make([]types.SearchResult, 0, len(points))
	for _, p := range points {
		mem, err := scoredPointToMemory(p)
		if err != nil {
			if qs.log != nil {
				qs.log.Warn("vectorstore: skipping undecodable point", "error", err)
			}
			continue
		}
		out = append(out, types.SearchResult{
			ID:        mem.ID,
			Content:   mem.Content,
			Score:     p.GetScore(),
			Metadata:  mem.Metadata,
			CreatedAt: mem.CreatedAt,
		})
	}
	return out, nil
}

func (qs *QdrantStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Memory, error) {
	points, err := qs.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: qs.collectionName,
		Filter:         &qdrant.Filter{Must: []*qdrant.Condition{matchKeyword("owner_id", ownerID)}},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
		Limit:          qdrant.PtrOf(uint32(10000)),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list by owner: %w", err)
	}

	out := make([]types.Memory, 0, len(points))
	for _, p := range points {
		mem, err := pointToMemory(p)
		if err != nil {
			continue
		}
		out = append(out, *mem)
	}
	return out, nil
}

func (qs *QdrantStore) Count(ctx context.Context, ownerID string) (int, error) {
	mems, err := qs.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return len(mems), nil
}

func (qs *QdrantStore) DeleteAll(ctx context.Context, ownerID string) error {
	_, err := qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qs.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: []*qdrant.Condition{matchKeyword("owner_id", ownerID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete all for %s: %w", ownerID, err)
	}
	return nil
}

func (qs *QdrantStore) HealthCheck(ctx context.Context) error {
	_, err := qs.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: health check: %w", err)
	}
	return nil
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func memoryToPoint(mem types.Memory) (*qdrant.PointStruct, error) {
	metaJSON, err := json.Marshal(mem.Metadata)
	if err != nil {
		return nil, err
	}

	payload := map[string]*qdrant.Value{
		"id":           qdrant.NewValueString(mem.ID),
		"owner_id":     qdrant.NewValueString(mem.OwnerID),
		"content":      qdrant.NewValueString(mem.Content),
		"content_hash": qdrant.NewValueString(mem.ContentHash),
		"metadata":     qdrant.NewValueString(string(metaJSON)),
		"created_at":   qdrant.NewValueString(mem.CreatedAt.Format(time.RFC3339Nano)),
		"updated_at":   qdrant.NewValueString(mem.UpdatedAt.Format(time.RFC3339Nano)),
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(mem.ID),
		Vectors: qdrant.NewVectors(mem.Embedding...),
		Payload: payload,
	}, nil
}

func pointToMemory(p *qdrant.RetrievedPoint) (*types.Memory, error) {
	payload := p.GetPayload()
	return payloadToMemory(payload, p.GetVectors())
}

func scoredPointToMemory(p *qdrant.ScoredPoint) (*types.Memory, error) {
	return payloadToMemory(p.GetPayload(), p.GetVectors())
}

func payloadToMemory(payload map[string]*qdrant.Value, vecs *qdrant.Vectors) (*types.Memory, error) {
	mem := &types.Memory{
		ID:          payload["id"].GetStringValue(),
		OwnerID:     payload["owner_id"].GetStringValue(),
		Content:     payload["content"].GetStringValue(),
		ContentHash: payload["content_hash"].GetStringValue(),
	}

	if metaRaw := payload["metadata"].GetStringValue(); metaRaw != "" {
		if err := json.Unmarshal([]byte(metaRaw), &mem.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if createdAt := payload["created_at"].GetStringValue(); createdAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			mem.CreatedAt = t
		}
	}
	if updatedAt := payload["updated_at"].GetStringValue(); updatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			mem.UpdatedAt = t
		}
	}
	if vecs != nil {
		if dense := vecs.GetVector(); dense != nil {
			mem.Embedding = dense.GetData()
		}
	}

	return mem, nil
}
