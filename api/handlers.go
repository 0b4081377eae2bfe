/*
handlers.go - HTTP API handlers for the charge engine

PURPOSE:
  Exposes charge computation, scheme management and the assessment log via
  REST API. Handles HTTP request/response, JSON serialization, and delegates
  to the charges package.

ENDPOINTS:
  Schemes:
    GET    /api/schemes                 List schemes (?organization_id=&branch_id=)
    POST   /api/schemes                 Create scheme from JSON
    GET    /api/schemes/{id}            Get scheme
    PUT    /api/schemes/{id}            Replace scheme (bumps version)
    DELETE /api/schemes/{id}            Delete scheme

  Charges:
    POST   /api/charges/compute         Compute a charge with its breakdown
    POST   /api/charges/schedule        Month-by-month schedule (?format=xlsx)

  Assessments:
    POST   /api/loans/{loanID}/assessments  Record a charge against a loan
    GET    /api/loans/{loanID}/assessments  Assessment history (?format=xlsx)

  Presets:
    GET    /api/presets                 List seedable scheme sets
    POST   /api/presets/load            Seed a preset into an org/branch

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Schemes: SchemeStore, usually cache.CachedSchemes over SQLite
  - Assessor: Validates, computes and appends assessments
  - Factory: JSON to SchemeRecord conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Scheme or assessment not found
  - 409: Conflict (idempotency key reused, scheme ID taken)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Deploy behind the branch gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - presets.go: Seedable scheme sets
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/warp/charge-engine/charges"
	"github.com/warp/charge-engine/export"
	"github.com/warp/charge-engine/factory"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Schemes  charges.SchemeStore
	Assessor *charges.Assessor
	Factory  *factory.SchemeFactory

	// Reset clears all data. Nil disables POST /api/reset.
	Reset func(ctx context.Context) error

	// Ping checks the database for /healthz. Nil reports healthy.
	Ping func(ctx context.Context) error
}

// NewHandler creates a handler over a scheme store and an assessment store.
func NewHandler(schemes charges.SchemeStore, assessments charges.Store) *Handler {
	return &Handler{
		Schemes:  schemes,
		Assessor: charges.NewAssessor(assessments),
		Factory:  factory.NewSchemeFactory(),
	}
}

// =============================================================================
// SCHEME HANDLERS
// =============================================================================

// ListSchemes returns schemes, optionally filtered by organization and branch.
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	filter := charges.SchemeFilter{
		OrganizationID: charges.OrganizationID(r.URL.Query().Get("organization_id")),
		BranchID:       charges.BranchID(r.URL.Query().Get("branch_id")),
	}

	records, err := h.Schemes.ListSchemes(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list schemes", err)
		return
	}

	dtos := make([]SchemeDTO, len(records))
	for i, rec := range records {
		dtos[i] = h.toSchemeDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScheme creates a scheme. A missing ID is generated.
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var sj factory.SchemeJSON
	if err := json.NewDecoder(r.Body).Decode(&sj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if sj.ID == "" {
		sj.ID = uuid.NewString()
	}

	rec, err := h.Factory.FromJSON(sj)
	if err != nil {
		writeDomainError(w, "Invalid scheme", err)
		return
	}

	saved, err := h.Schemes.CreateScheme(r.Context(), rec)
	if errors.Is(err, charges.ErrSchemeExists) {
		writeError(w, http.StatusConflict, fmt.Sprintf("Scheme %s already exists", rec.ID), nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to save scheme", err)
		return
	}

	log.WithFields(log.Fields{"scheme_id": saved.ID, "organization_id": saved.OrganizationID}).Info("scheme created")
	writeJSON(w, http.StatusCreated, h.toSchemeDTO(saved))
}

// GetScheme returns a single scheme.
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	id := charges.SchemeID(chi.URLParam(r, "id"))

	rec, err := h.Schemes.GetScheme(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get scheme", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toSchemeDTO(rec))
}

// UpdateScheme replaces an existing scheme. The URL ID wins over the body.
func (h *Handler) UpdateScheme(w http.ResponseWriter, r *http.Request) {
	id := charges.SchemeID(chi.URLParam(r, "id"))

	var sj factory.SchemeJSON
	if err := json.NewDecoder(r.Body).Decode(&sj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sj.ID = string(id)

	rec, err := h.Factory.FromJSON(sj)
	if err != nil {
		writeDomainError(w, "Invalid scheme", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Schemes.GetScheme(ctx, id); err != nil {
		writeDomainError(w, "Failed to get scheme", err)
		return
	}

	saved, err := h.Schemes.SaveScheme(ctx, rec)
	if err != nil {
		writeDomainError(w, "Failed to save scheme", err)
		return
	}

	log.WithFields(log.Fields{"scheme_id": saved.ID, "version": saved.Version}).Info("scheme updated")
	writeJSON(w, http.StatusOK, h.toSchemeDTO(saved))
}

// DeleteScheme removes a scheme. Recorded assessments keep their snapshot.
func (h *Handler) DeleteScheme(w http.ResponseWriter, r *http.Request) {
	id := charges.SchemeID(chi.URLParam(r, "id"))

	if err := h.Schemes.DeleteScheme(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete scheme", err)
		return
	}

	log.WithField("scheme_id", id).Info("scheme deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toSchemeDTO(rec charges.SchemeRecord) SchemeDTO {
	return SchemeDTO{
		SchemeJSON: h.Factory.ToJSON(rec),
		Version:    rec.Version,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// =============================================================================
// CHARGE HANDLERS
// =============================================================================

// Compute returns the charge for a loan together with its breakdown.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.resolveScheme(r.Context(), req.SchemeID, req.Scheme)
	if err != nil {
		writeDomainError(w, "Failed to resolve scheme", err)
		return
	}

	loan := req.Loan.toLoan()
	if err := charges.Validate(rec.Scheme, loan); err != nil {
		writeDomainError(w, "Invalid charge input", err)
		return
	}

	writeJSON(w, http.StatusOK, toComputeResponse(rec.ID, charges.Itemize(rec.Scheme, loan)))
}

// Schedule returns the month-by-month charge for the loan's whole term.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.resolveScheme(r.Context(), req.SchemeID, req.Scheme)
	if err != nil {
		writeDomainError(w, "Failed to resolve scheme", err)
		return
	}

	// The schedule overrides number_of_months, so only the loan is checked
	// against the term.
	loan := req.Loan.toLoan()
	if err := charges.ValidateLoan(loan); err != nil {
		writeDomainError(w, "Invalid loan", err)
		return
	}

	lines := charges.Schedule(rec.Scheme, loan)

	if r.URL.Query().Get("format") == "xlsx" {
		title := rec.Name
		if title == "" {
			title = "Charge schedule"
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="schedule.xlsx"`)
		if err := export.WriteSchedule(w, title, lines); err != nil {
			log.WithError(err).Error("schedule export failed")
		}
		return
	}

	dtos := make([]ScheduleLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = ScheduleLineDTO{Month: l.Month, Cumulative: l.Cumulative, Delta: l.Delta, Paths: l.Paths}
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{
		SchemeID: string(rec.ID),
		Lines:    dtos,
		Total:    charges.ScheduleTotal(lines),
	})
}

// resolveScheme returns the inline scheme if present, else the stored one.
func (h *Handler) resolveScheme(ctx context.Context, id string, inline *factory.SchemeJSON) (charges.SchemeRecord, error) {
	if inline != nil {
		return h.Factory.FromJSON(*inline)
	}
	if id == "" {
		return charges.SchemeRecord{}, &charges.ValidationError{
			Kind:   charges.ErrInvalidScheme,
			Fields: []charges.FieldError{{Field: "scheme_id", Message: "scheme_id or scheme is required"}},
		}
	}
	return h.Schemes.GetScheme(ctx, charges.SchemeID(id))
}

// =============================================================================
// ASSESSMENT HANDLERS
// =============================================================================

// CreateAssessment records a charge against a loan.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	loanID := charges.LoanID(chi.URLParam(r, "loanID"))

	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = req.IdempotencyKey
	}

	ctx := r.Context()
	rec, err := h.resolveScheme(ctx, req.SchemeID, nil)
	if err != nil {
		writeDomainError(w, "Failed to resolve scheme", err)
		return
	}

	a, err := h.Assessor.Assess(ctx, charges.AssessInput{
		Scheme:         rec,
		LoanID:         loanID,
		Loan:           req.Loan.toLoan(),
		IdempotencyKey: key,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, "Failed to record assessment", err)
		return
	}

	log.WithFields(log.Fields{
		"assessment_id": a.ID,
		"loan_id":       a.LoanID,
		"scheme_id":     a.SchemeID,
		"amount":        a.Amount.String(),
	}).Info("charge assessed")
	writeJSON(w, http.StatusCreated, toAssessmentDTO(a))
}

// ListAssessments returns a loan's assessments in creation order.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	loanID := charges.LoanID(chi.URLParam(r, "loanID"))

	list, total, err := h.Assessor.History(r.Context(), loanID)
	if err != nil {
		writeDomainError(w, "Failed to list assessments", err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="assessments_%s.xlsx"`, loanID))
		if err := export.WriteAssessments(w, loanID, list); err != nil {
			log.WithError(err).WithField("loan_id", loanID).Error("assessment export failed")
		}
		return
	}

	dtos := make([]AssessmentDTO, len(list))
	for i, a := range list {
		dtos[i] = toAssessmentDTO(a)
	}
	writeJSON(w, http.StatusOK, AssessmentListResponse{LoanID: string(loanID), Assessments: dtos, Total: total})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all schemes and assessments.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Reset == nil {
		writeError(w, http.StatusNotFound, "Reset is not enabled", nil)
		return
	}
	if err := h.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	log.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Health reports 503 when the database does not answer a ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			log.WithError(err).Error("health check failed")
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps charges errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var verr *charges.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]FieldErrorDTO, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = FieldErrorDTO{Field: f.Field, Message: f.Message}
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation_failed", Details: fields})
	case charges.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation_failed", Details: err.Error()})
	case charges.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Code: "not_found", Details: err.Error()})
	case charges.IsConflict(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "conflict", Details: err.Error()})
	default:
		log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
