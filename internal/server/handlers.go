package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/claimlens/claimlens/internal/export"
	"github.com/claimlens/claimlens/internal/models"
)

// 32 MB cap on uploaded document size.
const maxUploadBytes = 32 << 20

var errUploadTooLarge = errors.New("upload exceeds size limit")

// handleUploadDocument accepts every file sent under the "file" field and
// responds 202 with each document in the uploading state; the pipeline stages
// run in the background on the bounded worker pool. A single-file request
// answers with the document object, a batch with the list.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}

	docs := make([]*models.Document, 0, len(headers))
	for _, header := range headers {
		content, err := readUpload(header)
		if err != nil {
			if errors.Is(err, errUploadTooLarge) {
				s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
				return
			}
			s.respondError(w, http.StatusBadRequest, "read upload")
			return
		}
		doc, err := s.pipeline.Accept(r.Context(), "", header.Filename, content)
		if err != nil {
			if errors.Is(err, models.ErrUnsupportedFormat) {
				s.respondError(w, http.StatusUnsupportedMediaType, err.Error())
				return
			}
			s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		docs = append(docs, doc)
	}
	for _, doc := range docs {
		s.pipeline.ProcessAsync(doc.ID)
	}
	if len(docs) == 1 {
		s.respondJSON(w, http.StatusAccepted, docs[0])
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]any{"documents": docs})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadBytes {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetDocument(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err := s.pipeline.Remove(r.Context(), id); err != nil {
		s.logger.Error("delete document failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type submitQueryRequest struct {
	Text string `json:"text"`
}

// handleSubmitQuery records the query and returns it along with the payment
// order the caller must settle before evaluation.
func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := s.evaluator.Submit(r.Context(), req.Text)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := map[string]any{"query": q}
	if s.config.Payment.RequiredOrDefault() {
		order, err := s.payments.CreateOrder(r.Context(), q.ID)
		if err != nil {
			s.logger.Error("create payment order failed", zap.String("query_id", q.ID), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["payment"] = order
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := s.storage.GetQuery(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "query not found")
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleEvaluateQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := s.evaluator.Evaluate(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrPaymentRequired) {
			s.respondError(w, http.StatusPaymentRequired, err.Error())
			return
		}
		s.logger.Error("evaluate failed", zap.String("query_id", id), zap.Error(err))
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleCancelQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := s.evaluator.Cancel(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

type createOrderRequest struct {
	QueryID string `json:"query_id"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.storage.GetQuery(r.Context(), req.QueryID); err != nil {
		s.respondError(w, http.StatusNotFound, "query not found")
		return
	}
	order, err := s.payments.CreateOrder(r.Context(), req.QueryID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.payments.Confirm(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// historyFilterFromQuery reads filter parameters: status, decision, from, to
// (RFC 3339), and q for free-text matching.
func historyFilterFromQuery(r *http.Request) (*models.HistoryFilter, error) {
	filter := &models.HistoryFilter{
		Status:   models.QueryStatus(r.URL.Query().Get("status")),
		Decision: models.Decision(r.URL.Query().Get("decision")),
		Text:     r.URL.Query().Get("q"),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filter.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filter.To = t
	}
	return filter, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid time filter: "+err.Error())
		return
	}
	records, err := s.histLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid time filter: "+err.Error())
		return
	}
	summary, err := s.histLog.Summarize(r.Context(), filter)
	if err != nil {
		s.logger.Error("history summary failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid time filter: "+err.Error())
		return
	}
	exported, err := s.exporter.ExportHistory(r.Context(), filter)
	if err != nil {
		s.logger.Error("export history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="claimlens-history.json"`)
	if err := export.WriteJSON(w, exported); err != nil {
		s.logger.Error("write export failed", zap.Error(err))
	}
}

func (s *Server) handleExportQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exported, err := s.exporter.ExportQuery(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "query not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, exported); err != nil {
		s.logger.Error("write export failed", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	clauseCount, err := s.storage.CountClauses(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"documents": docCount,
		"chunks":    chunkCount,
		"clauses":   clauseCount,
		"config": map[string]any{
			"embedding_backend":    s.config.Embedding.Backend,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_size":           s.config.Pipeline.ChunkSize,
			"chunk_overlap":        s.config.Pipeline.ChunkOverlap,
			"payment_required":     s.config.Payment.RequiredOrDefault(),
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
