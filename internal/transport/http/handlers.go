package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"finrisk/internal/audit"
	"finrisk/internal/graph"
	"finrisk/internal/ingest"
	"finrisk/internal/pipeline"
	"finrisk/internal/store"
)

// Processor runs one transaction through the assessment pipeline.
type Processor interface {
	Process(ctx context.Context, tx pipeline.Transaction) (pipeline.Assessment, error)
}

// Handler handles the assessment endpoints.
type Handler struct {
	parser      *ingest.Parser
	processor   Processor
	assessments store.AssessmentStore
	auditor     *audit.Publisher
	graph       graph.Store
	logger      *slog.Logger
}

// New creates the HTTP handler.
func New(
	parser *ingest.Parser,
	processor Processor,
	assessments store.AssessmentStore,
	auditor *audit.Publisher,
	graphStore graph.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		parser:      parser,
		processor:   processor,
		assessments: assessments,
		auditor:     auditor,
		graph:       graphStore,
		logger:      logger,
	}
}

// Register registers the assessment routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/transactions/process", h.handleProcess)
	r.Get("/v1/assessments/{id}", h.handleGetAssessment)
	r.Get("/v1/transactions/{id}/assessment", h.handleGetByTransaction)
	r.Get("/v1/transactions/{id}/audit", h.handleGetAuditTrail)
	r.Post("/v1/graph/relationships", h.handleCreateRelationship)
}

// processRequest accepts either raw report text to be parsed into blocks, or
// one structured transaction. Exactly one of the two must be set.
type processRequest struct {
	Raw         string                `json:"raw,omitempty"`
	Transaction *pipeline.Transaction `json:"transaction,omitempty"`
}

type processResponse struct {
	Assessments []pipeline.Assessment `json:"assessments"`
	Skipped     int                   `json:"skipped,omitempty"`
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if (req.Raw == "") == (req.Transaction == nil) {
		writeError(w, h.logger, http.StatusBadRequest, "provide exactly one of raw or transaction", nil)
		return
	}

	var txs []pipeline.Transaction
	if req.Transaction != nil {
		if req.Transaction.Sender.Name == "" && req.Transaction.Receiver.Name == "" {
			writeError(w, h.logger, http.StatusBadRequest, "transaction has no parties", nil)
			return
		}
		txs = []pipeline.Transaction{*req.Transaction}
	} else {
		txs = h.parser.Parse(req.Raw)
		if len(txs) == 0 {
			writeError(w, h.logger, http.StatusBadRequest, "no parseable transactions in raw content", nil)
			return
		}
	}

	resp := processResponse{}
	for _, tx := range txs {
		a, err := h.processor.Process(r.Context(), tx)
		if err != nil {
			// The failed assessment is still part of the response; its status
			// and error field carry the outcome.
			h.logger.Warn("assessment failed", "transaction_id", tx.ID, "error", err)
		}
		resp.Assessments = append(resp.Assessments, a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.assessments.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "assessment not found", nil)
		return
	}
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "loading assessment", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleGetByTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.assessments.GetByTransaction(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "no assessment for transaction", nil)
		return
	}
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "loading assessment", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleGetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trail, err := h.auditor.List(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "loading audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]audit.Event{"events": trail})
}

// relationshipRequest is the graph write surface used by sibling ingestion
// systems (corporate registry sync, beneficial ownership feeds).
type relationshipRequest struct {
	FromID   string  `json:"from_id" valid:"required"`
	ToID     string  `json:"to_id" valid:"required"`
	Type     string  `json:"type" valid:"required"`
	Weight   float64 `json:"weight"`
	FromName string  `json:"from_name,omitempty"`
	ToName   string  `json:"to_name,omitempty"`
}

func (h *Handler) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rel := graph.RelationshipType(req.Type)
	if !rel.Valid() {
		writeError(w, h.logger, http.StatusBadRequest, "unknown relationship type", nil)
		return
	}

	// Feeds may create the endpoints inline by naming them.
	for _, node := range []graph.Node{
		{ID: req.FromID, Name: req.FromName},
		{ID: req.ToID, Name: req.ToName},
	} {
		if node.Name == "" {
			continue
		}
		if err := h.graph.UpsertEntity(r.Context(), node); err != nil {
			writeError(w, h.logger, http.StatusInternalServerError, "upserting graph entity", err)
			return
		}
	}

	err := h.graph.CreateRelationship(r.Context(), req.FromID, req.ToID, rel, graph.EdgeProps{Weight: req.Weight})
	if err != nil {
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
