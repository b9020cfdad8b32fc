package triage

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandochealth/triage/pkg/logging"
)

type stubEmbedder struct {
	vec    []float32
	err    error
	called int
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	s.called++
	return s.vec, s.err
}

func newTestRetriever(t *testing.T, emb *stubEmbedder) (*Retriever, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRetriever(client, emb, "idx:test", "triage:card:", 4, logging.New("error")), mr
}

func TestRetrieveEmptyQuerySkipsEmbedding(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("should not be called")}
	r, _ := newTestRetriever(t, emb)

	out, err := r.Retrieve(context.Background(), "acme", "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, emb.called)
}

func TestRetrieveEmbeddingErrorPropagates(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("quota exceeded")}
	r, _ := newTestRetriever(t, emb)

	_, err := r.Retrieve(context.Background(), "acme", "knee pain", 5)
	assert.Error(t, err)
}

func TestIngestWritesHashFields(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3, 0.4}}
	r, mr := newTestRetriever(t, emb)

	err := r.Ingest(context.Background(), []KnowledgeCard{
		{ID: "card1", Tenant: "acme", Kind: "platform", Title: "Rescheduling", Text: "Open Appointments and pick a new slot."},
	})
	require.NoError(t, err)

	assert.Equal(t, "acme", mr.HGet("triage:card:card1", "tenant"))
	assert.Equal(t, "Rescheduling", mr.HGet("triage:card:card1", "title"))
	assert.Equal(t, encodeVector(emb.vec), mr.HGet("triage:card:card1", "embedding"))
}

func TestIngestRejectsIncompleteCards(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 2, 3, 4}}
	r, _ := newTestRetriever(t, emb)

	err := r.Ingest(context.Background(), []KnowledgeCard{{ID: "x"}})
	assert.Error(t, err)
}

func TestIngestDefaultsTenant(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 2, 3, 4}}
	r, mr := newTestRetriever(t, emb)

	err := r.Ingest(context.Background(), []KnowledgeCard{
		{ID: "card2", Title: "T", Text: "body"},
	})
	require.NoError(t, err)
	assert.Equal(t, "default", mr.HGet("triage:card:card2", "tenant"))
}

func TestEncodeVectorLittleEndian(t *testing.T) {
	out := encodeVector([]float32{1.5})
	require.Len(t, out, 4)
	assert.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32([]byte(out)))
}

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, `acme\-clinic`, escapeTag("acme-clinic"))
	assert.Equal(t, `a\ b`, escapeTag("a b"))
	assert.Equal(t, "plain", escapeTag("plain"))
}
