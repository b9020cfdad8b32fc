package triage

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pandochealth/triage/pkg/logging"
)

// KnowledgeIngestor indexes grounding cards.
type KnowledgeIngestor interface {
	Ingest(ctx context.Context, cards []KnowledgeCard) error
}

// IngestHandler accepts batches of knowledge cards from operators.
type IngestHandler struct {
	ingestor KnowledgeIngestor
	logger   *logging.Logger
}

func NewIngestHandler(ingestor KnowledgeIngestor, logger *logging.Logger) *IngestHandler {
	if ingestor == nil {
		panic("triage: ingestor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IngestHandler{ingestor: ingestor, logger: logger}
}

// Ingest handles POST /ai/ingest.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var cards []KnowledgeCard
	if err := json.NewDecoder(r.Body).Decode(&cards); err != nil {
		h.logger.Error("failed to decode ingest request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(cards) == 0 {
		http.Error(w, "at least one card is required", http.StatusBadRequest)
		return
	}

	if err := h.ingestor.Ingest(r.Context(), cards); err != nil {
		h.logger.Error("failed to ingest cards", "error", err, "count", len(cards))
		http.Error(w, "Failed to ingest cards", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": true, "ingested": len(cards)}); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
