package beneficiary

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListQuery filters and pages a listing. Empty filters match everything.
type ListQuery struct {
	UserID        string
	PaymentTypeID string
	Percentage    *decimal.Decimal
	Page          int
	Limit         int
}

// Pagination describes the page returned by List. The totals count store
// matches before the per-user dedupe.
type Pagination struct {
	TotalBeneficiaries int `json:"totalBeneficiaries"`
	TotalPages         int `json:"totalPages"`
	CurrentPage        int `json:"currentPage"`
	Limit              int `json:"limit"`
}

type Page struct {
	Beneficiaries []ledger.Beneficiary
	Pagination    Pagination
}

// List returns one page of beneficiaries, collapsed to one row per user.
// The collapse happens after paging, so a page can hold fewer than Limit rows.
func (m *Manager) List(ctx context.Context, q ListQuery) (*Page, error) {
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	var f ledger.BeneficiaryFilter
	if q.UserID != "" {
		id := ledger.UserID(q.UserID)
		f.UserID = &id
	}
	if q.PaymentTypeID != "" {
		id := ledger.PaymentTypeID(q.PaymentTypeID)
		f.PaymentTypeID = &id
	}
	f.Percentage = q.Percentage

	rows, total, err := m.store.ListBeneficiaries(ctx, f, pageOffset(q.Page, q.Limit), q.Limit)
	if err != nil {
		return nil, ledger.WrapStore("list beneficiaries", err)
	}

	return &Page{
		Beneficiaries: DedupeByUser(rows),
		Pagination: Pagination{
			TotalBeneficiaries: total,
			TotalPages:         totalPages(total, q.Limit),
			CurrentPage:        q.Page,
			Limit:              q.Limit,
		},
	}, nil
}

// pageOffset returns the offset of page. A page past the addressable range
// is clamped to an offset no store can fill.
func pageOffset(page, limit int) int {
	if page-1 > (math.MaxInt-limit)/limit {
		return math.MaxInt - limit
	}
	return (page - 1) * limit
}

func totalPages(total, limit int) int {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}

// DedupeByUser keeps the first record of each user, preserving order.
func DedupeByUser(bs []ledger.Beneficiary) []ledger.Beneficiary {
	seen := make(map[ledger.UserID]bool, len(bs))
	out := make([]ledger.Beneficiary, 0, len(bs))
	for _, b := range bs {
		if seen[b.User] {
			continue
		}
		seen[b.User] = true
		out = append(out, b)
	}
	return out
}
