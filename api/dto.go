/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names are
  camelCase and percentages travel as JSON numbers.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - Envelope / ListEnvelope: the {success, message, data} wrapper

TYPES:
  Beneficiary:   BeneficiaryDTO, CreateBeneficiaryRequest, UpdateBeneficiaryRequest
  User:          UserDTO, CreateUserRequest
  Payment type:  PaymentTypeDTO, CreatePaymentTypeRequest, LinkBeneficiaryRequest,
                 AllocationDTO
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in beneficiary.Manager and the handlers, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/allocation"
	"github.com/warp/revenue-engine/beneficiary"
	"github.com/warp/revenue-engine/ledger"
)

// =============================================================================
// ENVELOPES
// =============================================================================

// Envelope wraps every response body.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  []ledger.FieldError `json:"errors,omitempty"`
}

// ListEnvelope is the list response: Envelope plus pagination.
type ListEnvelope struct {
	Success    bool                   `json:"success"`
	Data       []BeneficiaryDTO       `json:"data"`
	Pagination beneficiary.Pagination `json:"pagination"`
}

// =============================================================================
// BENEFICIARIES
// =============================================================================

// BeneficiaryDTO represents a beneficiary in API responses.
type BeneficiaryDTO struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	Percentage    json.Number `json:"percentage"`
	Role          string      `json:"role"`
	PaymentTypeID string      `json:"paymentTypeId"`
	CreatedBy     string      `json:"createdBy,omitempty"`
	CreatedAt     string      `json:"createdAt"`
	UpdatedAt     string      `json:"updatedAt"`
}

// CreateBeneficiaryRequest is the body of POST /api/beneficiaries.
type CreateBeneficiaryRequest struct {
	UserID        string           `json:"userId"`
	Percentage    *decimal.Decimal `json:"percentage"`
	PaymentTypeID string           `json:"paymentTypeId"`
}

// UpdateBeneficiaryRequest is the body of PATCH /api/beneficiaries/{id}.
// Absent fields are left unchanged.
type UpdateBeneficiaryRequest struct {
	UserID        *string          `json:"userId"`
	Percentage    *decimal.Decimal `json:"percentage"`
	PaymentTypeID *string          `json:"paymentTypeId"`
	Role          *string          `json:"role"`
}

func toBeneficiaryDTO(b ledger.Beneficiary) BeneficiaryDTO {
	return BeneficiaryDTO{
		ID:            string(b.ID),
		UserID:        string(b.User),
		Percentage:    json.Number(b.Percentage.String()),
		Role:          string(b.Role),
		PaymentTypeID: string(b.PaymentType),
		CreatedBy:     b.CreatedBy,
		CreatedAt:     formatTime(b.CreatedAt),
		UpdatedAt:     formatTime(b.UpdatedAt),
	}
}

func toBeneficiaryDTOs(bs []ledger.Beneficiary) []BeneficiaryDTO {
	dtos := make([]BeneficiaryDTO, len(bs))
	for i, b := range bs {
		dtos[i] = toBeneficiaryDTO(b)
	}
	return dtos
}

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// CreateUserRequest is the body of POST /api/users. ID is generated when empty.
type CreateUserRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserDTO(u ledger.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: formatTime(u.CreatedAt),
	}
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentTypeDTO represents a payment type in API responses.
type PaymentTypeDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Code          string   `json:"code,omitempty"`
	Beneficiaries []string `json:"beneficiaries"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

// CreatePaymentTypeRequest is the body of POST /api/payment-types.
type CreatePaymentTypeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// LinkBeneficiaryRequest is the body of POST /api/payment-types/{id}/beneficiaries.
type LinkBeneficiaryRequest struct {
	BeneficiaryID string `json:"beneficiaryId"`
}

// AllocationDTO summarises how much of a payment type is allocated.
type AllocationDTO struct {
	PaymentTypeID string      `json:"paymentTypeId"`
	FixedTotal    json.Number `json:"fixedTotal"`
	VariableTotal json.Number `json:"variableTotal"`
	Total         json.Number `json:"total"`
	Remaining     json.Number `json:"remaining"`
	Count         int         `json:"count"`
}

func toPaymentTypeDTO(p ledger.PaymentType) PaymentTypeDTO {
	refs := make([]string, len(p.Beneficiaries))
	for i, b := range p.Beneficiaries {
		refs[i] = string(b)
	}
	return PaymentTypeDTO{
		ID:            string(p.ID),
		Name:          p.Name,
		Code:          p.Code,
		Beneficiaries: refs,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

func toAllocationDTO(s allocation.Summary) AllocationDTO {
	return AllocationDTO{
		PaymentTypeID: string(s.PaymentType),
		FixedTotal:    json.Number(s.FixedTotal.String()),
		VariableTotal: json.Number(s.VariableTotal.String()),
		Total:         json.Number(s.Total.String()),
		Remaining:     json.Number(s.Remaining.String()),
		Count:         s.Count,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
