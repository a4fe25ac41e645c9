/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Populates the database with small, realistic revenue setups so the
	allocation rules can be explored from the API or a frontend.

AVAILABLE SCENARIOS:

	market-levy:     One levy split between an agent, a council and an admin (90%)
	vendor-pool:     Fixed shares at 60%, one vendor at 40%, a super vendor at 100%
	fully-allocated: Two payment types, one at exactly 100% with linked shares

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create users and payment types directly in the store
 3. Create shares through beneficiary.Manager, so every invariant applies
 4. Optionally link shares onto their payment type

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "vendor-pool"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: the endpoints these scenarios feed
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/beneficiary"
	"github.com/warp/revenue-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "market-levy",
		Name:        "Market Levy",
		Description: "One levy shared by an agent, the council and an admin; 10% left",
	},
	{
		ID:          "vendor-pool",
		Name:        "Vendor Pool",
		Description: "Fixed shares at 60%, a vendor at 40% and a super vendor at 100%",
	},
	{
		ID:          "fully-allocated",
		Name:        "Fully Allocated",
		Description: "A payment type at exactly 100% with linked shares that cannot be deleted",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"market-levy":     (*Handler).loadMarketLevyScenario,
	"vendor-pool":     (*Handler).loadVendorPoolScenario,
	"fully-allocated": (*Handler).loadFullyAllocatedScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "", scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeOK(w, http.StatusOK, "", s)
			return
		}
	}
	writeOK(w, http.StatusOK, "No scenario loaded", nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario")
			return
		}
		h.Logger.Error("failed to load scenario", "scenario", req.ScenarioID, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err))
		return
	}

	writeOK(w, http.StatusOK, "Scenario loaded", map[string]string{"scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets the store and loads scenario id.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownScenario, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	if err := load(h, ctx); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMarketLevyScenario(ctx context.Context) error {
	levy, err := h.seedPaymentType(ctx, "Market Levy", "MKT")
	if err != nil {
		return err
	}

	shares := []struct {
		name string
		role ledger.Role
		pct  int64
	}{
		{"Amaka Obi", ledger.RoleAgent, 40},
		{"Ikeja Local Council", ledger.RoleBeneficiary, 30},
		{"Revenue Admin", ledger.RoleAdmin, 20},
	}
	for _, s := range shares {
		u, err := h.seedUser(ctx, s.name, s.role)
		if err != nil {
			return err
		}
		if _, err := h.seedShare(ctx, u, levy, s.pct); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadVendorPoolScenario(ctx context.Context) error {
	fees, err := h.seedPaymentType(ctx, "Parking Fees", "PRK")
	if err != nil {
		return err
	}

	shares := []struct {
		name string
		role ledger.Role
		pct  int64
	}{
		{"State Treasury", ledger.RoleBeneficiary, 40},
		{"Parking Agent", ledger.RoleAgent, 20},
		// A variable share is checked against what already exists, not
		// against itself, so the super vendor fits once the pool is at 100.
		{"Collections Vendor", ledger.RoleVendor, 40},
		{"Regional Super Vendor", ledger.RoleSuperVendor, 100},
	}
	for _, s := range shares {
		u, err := h.seedUser(ctx, s.name, s.role)
		if err != nil {
			return err
		}
		if _, err := h.seedShare(ctx, u, fees, s.pct); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadFullyAllocatedScenario(ctx context.Context) error {
	tax, err := h.seedPaymentType(ctx, "Signage Tax", "SGN")
	if err != nil {
		return err
	}
	permits, err := h.seedPaymentType(ctx, "Street Permits", "PRM")
	if err != nil {
		return err
	}

	treasury, err := h.seedUser(ctx, "State Treasury", ledger.RoleBeneficiary)
	if err != nil {
		return err
	}
	agent, err := h.seedUser(ctx, "Field Agent", ledger.RoleAgent)
	if err != nil {
		return err
	}

	t, err := h.seedShare(ctx, treasury, tax, 75)
	if err != nil {
		return err
	}
	a, err := h.seedShare(ctx, agent, tax, 25)
	if err != nil {
		return err
	}
	for _, b := range []*ledger.Beneficiary{t, a} {
		if _, err := h.Beneficiaries.Link(ctx, string(tax), string(b.ID)); err != nil {
			return err
		}
	}

	_, err = h.seedShare(ctx, treasury, permits, 50)
	return err
}

func (h *Handler) seedUser(ctx context.Context, name string, role ledger.Role) (ledger.UserID, error) {
	u := ledger.User{ID: ledger.NewUserID(), Name: name, Role: role, CreatedAt: h.now().UTC()}
	if err := h.Store.SaveUser(ctx, u); err != nil {
		return "", fmt.Errorf("seed user %s: %w", name, err)
	}
	return u.ID, nil
}

func (h *Handler) seedPaymentType(ctx context.Context, name, code string) (ledger.PaymentTypeID, error) {
	now := h.now().UTC()
	p := ledger.PaymentType{ID: ledger.NewPaymentTypeID(), Name: name, Code: code, CreatedAt: now, UpdatedAt: now}
	if err := h.Store.SavePaymentType(ctx, p); err != nil {
		return "", fmt.Errorf("seed payment type %s: %w", name, err)
	}
	return p.ID, nil
}

func (h *Handler) seedShare(ctx context.Context, u ledger.UserID, p ledger.PaymentTypeID, pct int64) (*ledger.Beneficiary, error) {
	d := decimal.NewFromInt(pct)
	b, err := h.Beneficiaries.Create(ctx, beneficiary.CreateInput{
		UserID:        string(u),
		Percentage:    &d,
		PaymentTypeID: string(p),
	}, "scenario-loader")
	if err != nil {
		return nil, fmt.Errorf("seed share: %w", err)
	}
	return b, nil
}
