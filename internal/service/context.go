package service

import (
	"fmt"
	"strings"

	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/index"
)

// Claim amount bands used in the query phrase.
const (
	smallClaimCeiling  = 50_000
	mediumClaimCeiling = 200_000
)

// fallbackQuery is used when a case carries no usable fields at all.
const fallbackQuery = "general insurance claim"

// QueryContext is the ephemeral product of the context builder: a natural
// language query string plus a metadata filter, built fresh per request and
// never persisted.
type QueryContext struct {
	Query  string
	Filter index.Filter
	Case   domain.CaseRecord
}

// BuildQueryContext converts a case record into a query string and metadata
// filter. Field order in the query is deterministic: claim type, state,
// property type, amount band, then notes. Fields with a direct metadata
// analog (state, claim type) also become equality filter predicates; claim
// amount and notes shape only the query string. Absent fields are omitted,
// never an error.
func BuildQueryContext(c domain.CaseRecord) QueryContext {
	c = c.Normalized()

	var parts []string
	if c.ClaimType != "" {
		parts = append(parts, c.ClaimType)
	}
	if c.State != "" {
		parts = append(parts, fmt.Sprintf("in %s", c.State))
	}
	if c.PropertyType != "" {
		parts = append(parts, fmt.Sprintf("for %s property", c.PropertyType))
	}
	if c.ClaimAmount > 0 {
		parts = append(parts, amountBand(c.ClaimAmount))
	}
	if c.Notes != "" {
		parts = append(parts, c.Notes)
	}

	query := strings.Join(parts, " ")
	if query == "" {
		query = fallbackQuery
	}

	return QueryContext{
		Query: query,
		Filter: index.Filter{
			State:    strings.ToLower(c.State),
			Category: strings.ToLower(c.ClaimType),
		},
		Case: c,
	}
}

func amountBand(amount float64) string {
	switch {
	case amount < smallClaimCeiling:
		return "small claim"
	case amount < mediumClaimCeiling:
		return "medium claim"
	default:
		return "large claim"
	}
}
