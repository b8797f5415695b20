package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/blkout/ivor-core/internal/core/domain"
)

const maxBodyBytes = 4 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency probed by /ready
// @Description Readiness with per-dependency status
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// BatchIntakeRequest is a batch of scraped or submitted items
// @Description Batch of raw content items
type BatchIntakeRequest struct {
	Items []*domain.RawContentItem `json:"items" validate:"required,min=1,max=100,dive,required"`
}

// PublishEventResponse carries the new event id
// @Description Published event id. Error is set when the event was stored but fan-out failed.
type PublishEventResponse struct {
	ID    string `json:"id" example:"event_4f1c..."`
	Error string `json:"error,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, Redis and other configured dependencies
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Intake endpoints

// handleIntake godoc
// @Summary      Ingest one content item
// @Description  Classifies, validates and routes one item to auto-publish or human review
// @Tags         Intake
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.RawContentItem  true  "Raw content item"
// @Success      200      {object}  domain.IntakeOutcome
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      502      {object}  ErrorResponse  "Classification capability failed"
// @Failure      503      {object}  ErrorResponse  "Downstream unavailable"
// @Router       /intake [post]
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var item domain.RawContentItem
	if !s.decode(w, r, &item) {
		return
	}

	outcome, err := s.intake.Process(r.Context(), &item)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleIntakeBatch godoc
// @Summary      Ingest a batch of content items
// @Description  Processes items sequentially; per-item failures are counted as errors
// @Tags         Intake
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      BatchIntakeRequest  true  "Items"
// @Success      200      {object}  domain.BatchResult
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Router       /intake/batch [post]
func (s *Server) handleIntakeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchIntakeRequest
	if !s.decode(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, s.intake.IngestBatch(r.Context(), req.Items))
}

// Event endpoints

// handlePublishEvent godoc
// @Summary      Publish a cross-domain event
// @Description  Stores the event as pending and broadcasts it to the source, target and coordination channels
// @Tags         Events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.EventDraft  true  "Event draft"
// @Success      201      {object}  PublishEventResponse
// @Failure      400      {object}  ErrorResponse  "Invalid event"
// @Failure      503      {object}  PublishEventResponse  "Store or broker unavailable"
// @Router       /events [post]
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var draft domain.EventDraft
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.events.PublishEvent(r.Context(), draft)
	if err != nil {
		if id != "" && errors.Is(err, domain.ErrPublishFailed) {
			// Stored but not broadcast; the sweeper will pick it up
			writeJSON(w, http.StatusServiceUnavailable, PublishEventResponse{ID: id, Error: err.Error()})
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PublishEventResponse{ID: id})
}

// handleGetEvent godoc
// @Summary      Get an event
// @Tags         Events
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  domain.CrossDomainEvent
// @Failure      404  {object}  ErrorResponse  "Event not found"
// @Router       /events/{id} [get]
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.events.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleCoordinationMetrics godoc
// @Summary      Coordination metrics
// @Description  Event processing metrics over the trailing 24 hours
// @Tags         Coordination
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.CoordinationMetrics
// @Failure      403  {object}  ErrorResponse  "Admin access required"
// @Router       /coordination/metrics [get]
func (s *Server) handleCoordinationMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.metrics.GetCoordinationMetrics(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// decode reads a JSON body and runs struct validation; it writes the 400 itself
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps domain sentinels onto status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrClassificationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrPublishFailed), errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
