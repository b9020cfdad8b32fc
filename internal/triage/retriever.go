package triage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pandochealth/triage/pkg/logging"
)

const vectorScoreField = "__embedding_score"

// KnowledgeCard is one grounding document: a titled chunk of platform or
// triage-routing reference text, scoped to a tenant.
type KnowledgeCard struct {
	ID     string `json:"id"`
	Tenant string `json:"tenant"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// Retriever performs tenant-scoped KNN retrieval over a RediSearch HNSW index
// of embedded knowledge cards.
type Retriever struct {
	redis      *redis.Client
	embedder   EmbeddingClient
	index      string
	prefix     string
	dimensions int
	tracer     trace.Tracer
	logger     *logging.Logger
}

func NewRetriever(client *redis.Client, embedder EmbeddingClient, index, prefix string, dimensions int, logger *logging.Logger) *Retriever {
	if client == nil {
		panic("triage: redis client cannot be nil")
	}
	if embedder == nil {
		panic("triage: embedding client cannot be nil")
	}
	if index == "" {
		index = "idx:rag:cards"
	}
	if prefix == "" {
		prefix = "triage:card:"
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Retriever{
		redis:      client,
		embedder:   embedder,
		index:      index,
		prefix:     prefix,
		dimensions: dimensions,
		tracer:     otel.Tracer("triage.internal.retriever"),
		logger:     logger,
	}
}

// EnsureIndex creates the vector index if it does not exist yet. Safe to call
// on every startup.
func (r *Retriever) EnsureIndex(ctx context.Context) error {
	if err := r.redis.FTInfo(ctx, r.index).Err(); err == nil {
		return nil
	}

	err := r.redis.FTCreate(ctx, r.index,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{r.prefix},
		},
		&redis.FieldSchema{FieldName: "tenant", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "kind", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "title", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "text", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{
			FieldName: "embedding",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				HNSWOptions: &redis.FTHNSWOptions{
					Type:           "FLOAT32",
					Dim:            r.dimensions,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("triage: failed to create vector index: %w", err)
	}
	return nil
}

// Retrieve embeds the query and returns the top-k cards for the tenant,
// formatted as markdown sections separated by horizontal rules. An empty
// query returns an empty grounding block without touching the index.
func (r *Retriever) Retrieve(ctx context.Context, tenant, query string, k int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}
	if k <= 0 {
		k = 5
	}

	ctx, span := r.tracer.Start(ctx, "retriever.retrieve",
		trace.WithAttributes(
			attribute.String("triage.tenant_id", tenant),
			attribute.Int("triage.top_k", k),
		))
	defer span.End()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("triage: failed to embed query: %w", err)
	}

	searchQuery := fmt.Sprintf("(@tenant:{%s}) => [KNN %d @embedding $vec AS %s]",
		escapeTag(tenant), k, vectorScoreField)

	res, err := r.redis.FTSearchWithArgs(ctx, r.index, searchQuery, &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: "title"},
			{FieldName: "text"},
		},
		SortBy: []redis.FTSearchSortBy{
			{FieldName: vectorScoreField, Asc: true},
		},
		DialectVersion: 2,
		LimitOffset:    0,
		Limit:          k,
		Params: map[string]interface{}{
			"vec": encodeVector(vec),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("triage: vector search failed: %w", err)
	}
	span.SetAttributes(attribute.Int("triage.hits", len(res.Docs)))

	sections := make([]string, 0, len(res.Docs))
	for _, doc := range res.Docs {
		title := doc.Fields["title"]
		body := doc.Fields["text"]
		if title == "" && body == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("# %s\n%s", title, body))
	}
	return strings.Join(sections, "\n\n---\n\n"), nil
}

// Ingest embeds and indexes knowledge cards. Existing cards with the same ID
// are overwritten.
func (r *Retriever) Ingest(ctx context.Context, cards []KnowledgeCard) error {
	ctx, span := r.tracer.Start(ctx, "retriever.ingest",
		trace.WithAttributes(attribute.Int("triage.cards", len(cards))))
	defer span.End()

	for _, card := range cards {
		if strings.TrimSpace(card.ID) == "" || strings.TrimSpace(card.Text) == "" {
			return fmt.Errorf("triage: card requires id and text")
		}
		tenant := card.Tenant
		if tenant == "" {
			tenant = "default"
		}

		vec, err := r.embedder.Embed(ctx, card.Title+"\n"+card.Text)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("triage: failed to embed card %s: %w", card.ID, err)
		}

		key := r.prefix + card.ID
		if err := r.redis.HSet(ctx, key, map[string]interface{}{
			"tenant":    tenant,
			"kind":      card.Kind,
			"title":     card.Title,
			"text":      card.Text,
			"embedding": encodeVector(vec),
		}).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("triage: failed to index card %s: %w", card.ID, err)
		}
		r.logger.Debug("indexed knowledge card", "card_id", card.ID, "tenant", tenant)
	}
	return nil
}

// encodeVector packs float32 components little-endian, the layout RediSearch
// expects for FLOAT32 vector fields.
func encodeVector(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// escapeTag quotes the characters RediSearch treats as tag syntax.
func escapeTag(s string) string {
	replacer := strings.NewReplacer(
		",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
		"[", "\\[", "]", "\\]", "\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;",
		"!", "\\!", "@", "\\@", "#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
		"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+",
		"=", "\\=", "~", "\\~", " ", "\\ ",
	)
	return replacer.Replace(s)
}
