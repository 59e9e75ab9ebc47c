package plans

import (
	"fmt"
	"sort"

	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// Plan identifiers
const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Unlimited marks a limit with no ceiling. Limit comparisons must treat it
// as always-pass before any numeric comparison.
const Unlimited = -1

// Limits are the per-plan entitlements
type Limits struct {
	MaxCustomers         int
	MaxInvoicesPerMonth  int
	HasProductManagement bool
	HasWhatsAppCRM       bool
	HasPrioritySupport   bool
}

// Plan is a named tier with a fixed monthly price in major currency units
type Plan struct {
	ID     string
	Price  int
	Limits Limits
}

// catalog is compile-time constant state; plans are never mutated at runtime.
var catalog = map[string]Plan{
	PlanFree: {
		ID:    PlanFree,
		Price: 0,
		Limits: Limits{
			MaxCustomers:        50,
			MaxInvoicesPerMonth: 30,
		},
	},
	PlanStarter: {
		ID:    PlanStarter,
		Price: 199,
		Limits: Limits{
			MaxCustomers:         500,
			MaxInvoicesPerMonth:  300,
			HasProductManagement: true,
		},
	},
	PlanPro: {
		ID:    PlanPro,
		Price: 499,
		Limits: Limits{
			MaxCustomers:         Unlimited,
			MaxInvoicesPerMonth:  Unlimited,
			HasProductManagement: true,
			HasWhatsAppCRM:       true,
		},
	},
	PlanBusiness: {
		ID:    PlanBusiness,
		Price: 999,
		Limits: Limits{
			MaxCustomers:         Unlimited,
			MaxInvoicesPerMonth:  Unlimited,
			HasProductManagement: true,
			HasWhatsAppCRM:       true,
			HasPrioritySupport:   true,
		},
	},
}

// Get returns the plan for the given id
func Get(planID string) (Plan, error) {
	p, ok := catalog[planID]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan: %s", planID)
	}
	return p, nil
}

// MustGet returns the plan or panics. Only for ids that are validated at
// startup or produced by this package.
func MustGet(planID string) Plan {
	p, err := Get(planID)
	if err != nil {
		panic(err)
	}
	return p
}

// IsValid reports whether the plan id exists in the catalog
func IsValid(planID string) bool {
	_, ok := catalog[planID]
	return ok
}

// WithinLimit reports whether count more rows fit under limit, honoring the
// Unlimited sentinel before any numeric comparison.
func WithinLimit(limit int, count int64) bool {
	if limit == Unlimited {
		return true
	}
	return count < int64(limit)
}

// Pricing returns pricing information for all tiers, cheapest first
func Pricing() *models.PricingResponse {
	features := map[string][]string{
		PlanFree: {
			"50 customers",
			"30 invoices per month",
		},
		PlanStarter: {
			"500 customers",
			"300 invoices per month",
			"Product management",
		},
		PlanPro: {
			"Unlimited customers",
			"Unlimited invoices",
			"Product management",
			"WhatsApp CRM",
		},
		PlanBusiness: {
			"Unlimited customers",
			"Unlimited invoices",
			"Product management",
			"WhatsApp CRM",
			"Priority support",
		},
	}

	tiers := make([]models.PricingTier, 0, len(catalog))
	for id, p := range catalog {
		tiers = append(tiers, models.PricingTier{
			Name:                id,
			Price:               p.Price,
			MaxCustomers:        p.Limits.MaxCustomers,
			MaxInvoicesPerMonth: p.Limits.MaxInvoicesPerMonth,
			Features:            features[id],
		})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Price < tiers[j].Price })

	return &models.PricingResponse{Tiers: tiers}
}
