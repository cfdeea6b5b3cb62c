package domain

import "strings"

// CaseRecord is the structured claim case a retrieval request is built from.
// Every field is optional; absent fields are omitted from the derived query
// and filter rather than causing a failure. The record is owned by the
// caller, never persisted by the retrieval engine.
type CaseRecord struct {
	CaseID       string
	ClaimType    string
	State        string
	PropertyType string
	ClaimAmount  float64
	Notes        string
}

// IsEmpty reports whether the case carries no usable signal at all.
func (c CaseRecord) IsEmpty() bool {
	return strings.TrimSpace(c.ClaimType) == "" &&
		strings.TrimSpace(c.State) == "" &&
		strings.TrimSpace(c.PropertyType) == "" &&
		c.ClaimAmount <= 0 &&
		strings.TrimSpace(c.Notes) == ""
}

// Normalized returns a copy with whitespace trimmed on all text fields.
// Field values are matched against chunk metadata case-insensitively, so
// comparison callers lowercase as needed.
func (c CaseRecord) Normalized() CaseRecord {
	return CaseRecord{
		CaseID:       strings.TrimSpace(c.CaseID),
		ClaimType:    strings.TrimSpace(c.ClaimType),
		State:        strings.TrimSpace(c.State),
		PropertyType: strings.TrimSpace(c.PropertyType),
		ClaimAmount:  c.ClaimAmount,
		Notes:        strings.TrimSpace(c.Notes),
	}
}
