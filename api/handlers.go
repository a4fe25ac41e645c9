/*
handlers.go - HTTP API handlers for the revenue engine

PURPOSE:
  Exposes beneficiary management over REST. Handles HTTP request/response
  and JSON, and delegates every invariant to beneficiary.Manager.

ENDPOINTS:
  Beneficiaries:
    POST   /api/beneficiaries              Create a share
    GET    /api/beneficiaries              List (filters, paging, per-user dedupe)
    GET    /api/beneficiaries/{id}         Get one
    PATCH  /api/beneficiaries/{id}         Partial update
    DELETE /api/beneficiaries/{id}         Delete (blocked while referenced)

  Users:
    POST   /api/users                      Create user
    GET    /api/users                      List users
    GET    /api/users/{id}                 Get user

  Payment types:
    POST   /api/payment-types                               Create payment type
    GET    /api/payment-types                               List payment types
    GET    /api/payment-types/{id}                          Get payment type
    GET    /api/payment-types/{id}/allocation               Allocation summary
    POST   /api/payment-types/{id}/beneficiaries            Add reference
    DELETE /api/payment-types/{id}/beneficiaries/{bid}      Remove reference

  Admin:
    POST   /api/admin/audit                Run the allocation audit now
    GET    /api/admin/audit                Last audit run

RESPONSES:
  {success, message, data}. Errors carry the domain message; validation
  errors also carry errors[] with one entry per field.

ERROR HANDLING:
  - 400: Validation errors, malformed body
  - 404: Record not found
  - 409: Duplicate share, beneficiary still referenced
  - 422: Allocation would exceed 100%
  - 500: Store failures (and every domain error in legacy mode)

SECURITY NOTE:
  The actor header is trusted as-is. Authentication is handled upstream.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/allocation"
	"github.com/warp/revenue-engine/beneficiary"
	"github.com/warp/revenue-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         ledger.TxStore
	Beneficiaries *beneficiary.Manager
	Logger        *slog.Logger

	// LegacyErrorStatus reports every domain error as 500.
	LegacyErrorStatus bool

	// Auditor, when set, serves the admin audit endpoints so manual runs
	// publish breaches like scheduled ones.
	Auditor *AuditScheduler

	mu              sync.Mutex
	currentScenario string
	now             func() time.Time
}

// NewHandler creates a handler over store and the manager that guards it.
func NewHandler(store ledger.TxStore, mgr *beneficiary.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Store:         store,
		Beneficiaries: mgr,
		Logger:        logger,
		now:           time.Now,
	}
}

// =============================================================================
// BENEFICIARY HANDLERS
// =============================================================================

// CreateBeneficiary adds a share.
func (h *Handler) CreateBeneficiary(w http.ResponseWriter, r *http.Request) {
	var req CreateBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.Beneficiaries.Create(r.Context(), beneficiary.CreateInput{
		UserID:        req.UserID,
		Percentage:    req.Percentage,
		PaymentTypeID: req.PaymentTypeID,
	}, ActorFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err, h.LegacyErrorStatus)
		return
	}

	writeOK(w, http.StatusCreated, "Beneficiary created successfully", toBeneficiaryDTO(*b))
}

// ListBeneficiaries returns one page of beneficiaries, one row per user.
func (h *Handler) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := beneficiary.ListQuery{
		UserID:        q.Get("userId"),
		PaymentTypeID: q.Get("paymentTypeId"),
		Page:          atoiOr(q.Get("page"), beneficiary.DefaultPage),
		Limit:         atoiOr(q.Get("limit"), beneficiary.DefaultLimit),
	}
	if raw := strings.TrimSpace(q.Get("percentage")); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil || !ledger.ValidPercentageScale(p) {
			v := &ledger.ValidationError{}
			v.Add("percentage", "must be a number with at most 8 decimal places")
			h.writeDomainError(w, r, v, false)
			return
		}
		query.Percentage = &p
	}

	page, err := h.Beneficiaries.List(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, r, err, h.LegacyErrorStatus)
		return
	}

	writeJSON(w, http.StatusOK, ListEnvelope{
		Success:    true,
		Data:       toBeneficiaryDTOs(page.Beneficiaries),
		Pagination: page.Pagination,
	})
}

// GetBeneficiary returns a single beneficiary.
func (h *Handler) GetBeneficiary(w http.ResponseWriter, r *http.Request) {
	b, err := h.Beneficiaries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		// Not found is a 404 even in legacy mode.
		h.writeDomainError(w, r, err, false)
		return
	}
	writeOK(w, http.StatusOK, "", toBeneficiaryDTO(*b))
}

// UpdateBeneficiary applies a partial update.
func (h *Handler) UpdateBeneficiary(w http.ResponseWriter, r *http.Request) {
	var req UpdateBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.Beneficiaries.Update(r.Context(), chi.URLParam(r, "id"), beneficiary.UpdateInput{
		UserID:        req.UserID,
		Percentage:    req.Percentage,
		PaymentTypeID: req.PaymentTypeID,
		Role:          req.Role,
	}, ActorFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err, h.LegacyErrorStatus)
		return
	}

	writeOK(w, http.StatusOK, "Beneficiary updated successfully", toBeneficiaryDTO(*b))
}

// DeleteBeneficiary removes a share and returns its last state.
func (h *Handler) DeleteBeneficiary(w http.ResponseWriter, r *http.Request) {
	b, err := h.Beneficiaries.Delete(r.Context(), chi.URLParam(r, "id"), ActorFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err, h.LegacyErrorStatus)
		return
	}

	writeOK(w, http.StatusOK, "Beneficiary deleted successfully", toBeneficiaryDTO(*b))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser creates a user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	v := &ledger.ValidationError{}
	if req.ID != "" && !ledger.ValidID(req.ID) {
		v.Add("id", "must be a valid user id")
	}
	if strings.TrimSpace(req.Name) == "" {
		v.Add("name", "is required")
	}
	if !ledger.Role(req.Role).Valid() {
		v.Add("role", "must be a known role")
	}
	if err := v.OrNil(); err != nil {
		h.writeDomainError(w, r, err, false)
		return
	}

	u := ledger.User{
		ID:        ledger.UserID(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Role:      ledger.Role(req.Role),
		CreatedAt: h.now().UTC(),
	}
	if u.ID == "" {
		u.ID = ledger.NewUserID()
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("save user", err), false)
		return
	}

	writeOK(w, http.StatusCreated, "User created successfully", toUserDTO(u))
}

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("list users", err), false)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.Store.GetUser(r.Context(), ledger.UserID(id))
	if err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("get user", err), false)
		return
	}
	if u == nil {
		h.writeDomainError(w, r, &ledger.NotFoundError{Kind: ledger.KindUser, ID: id}, false)
		return
	}
	writeOK(w, http.StatusOK, "", toUserDTO(*u))
}

// =============================================================================
// PAYMENT TYPE HANDLERS
// =============================================================================

// CreatePaymentType creates a payment type with an empty reference list.
func (h *Handler) CreatePaymentType(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	v := &ledger.ValidationError{}
	if req.ID != "" && !ledger.ValidID(req.ID) {
		v.Add("id", "must be a valid payment type id")
	}
	if strings.TrimSpace(req.Name) == "" {
		v.Add("name", "is required")
	}
	if err := v.OrNil(); err != nil {
		h.writeDomainError(w, r, err, false)
		return
	}

	now := h.now().UTC()
	p := ledger.PaymentType{
		ID:        ledger.PaymentTypeID(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Code:      strings.TrimSpace(req.Code),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ID == "" {
		p.ID = ledger.NewPaymentTypeID()
	}
	if err := h.Store.SavePaymentType(r.Context(), p); err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("save payment type", err), false)
		return
	}

	writeOK(w, http.StatusCreated, "Payment type created successfully", toPaymentTypeDTO(p))
}

// ListPaymentTypes returns all payment types.
func (h *Handler) ListPaymentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListPaymentTypes(r.Context())
	if err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("list payment types", err), false)
		return
	}

	dtos := make([]PaymentTypeDTO, len(types))
	for i, p := range types {
		dtos[i] = toPaymentTypeDTO(p)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

// GetPaymentType returns a single payment type.
func (h *Handler) GetPaymentType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Store.GetPaymentType(r.Context(), ledger.PaymentTypeID(id))
	if err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("get payment type", err), false)
		return
	}
	if p == nil {
		h.writeDomainError(w, r, &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: id}, false)
		return
	}
	writeOK(w, http.StatusOK, "", toPaymentTypeDTO(*p))
}

// GetAllocation summarises how much of a payment type is allocated.
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	s, err := h.Beneficiaries.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err, false)
		return
	}
	writeOK(w, http.StatusOK, "", toAllocationDTO(*s))
}

// LinkBeneficiary adds a beneficiary to a payment type's reference list.
func (h *Handler) LinkBeneficiary(w http.ResponseWriter, r *http.Request) {
	var req LinkBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.Beneficiaries.Link(r.Context(), chi.URLParam(r, "id"), req.BeneficiaryID)
	if err != nil {
		h.writeDomainError(w, r, err, false)
		return
	}
	writeOK(w, http.StatusOK, "Beneficiary linked to payment type", toPaymentTypeDTO(*p))
}

// UnlinkBeneficiary removes a beneficiary from a payment type's reference list.
func (h *Handler) UnlinkBeneficiary(w http.ResponseWriter, r *http.Request) {
	p, err := h.Beneficiaries.Unlink(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "beneficiaryId"))
	if err != nil {
		h.writeDomainError(w, r, err, false)
		return
	}
	writeOK(w, http.StatusOK, "Beneficiary unlinked from payment type", toPaymentTypeDTO(*p))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunAudit re-checks every payment type and returns the breaches found.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor != nil {
		run := h.Auditor.RunNow(r.Context())
		if run.Error != "" {
			writeError(w, http.StatusInternalServerError, "Allocation audit failed")
			return
		}
		writeOK(w, http.StatusOK, "", run)
		return
	}

	breaches, err := allocation.Audit(r.Context(), h.Store)
	if err != nil {
		h.writeDomainError(w, r, ledger.WrapStore("audit", err), false)
		return
	}
	if breaches == nil {
		breaches = []allocation.Breach{}
	}
	writeOK(w, http.StatusOK, "", AuditRun{StartedAt: h.now().UTC(), Breaches: breaches})
}

// LastAudit returns the most recent audit run.
func (h *Handler) LastAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeOK(w, http.StatusOK, "Allocation audit is not scheduled", nil)
		return
	}
	writeOK(w, http.StatusOK, "", h.Auditor.LastRun())
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
