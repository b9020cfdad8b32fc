package directory

import (
	"context"

	"github.com/google/uuid"
)

// DefaultSpecialty is the safety fallback when no specialty can be resolved
// from a conversation. A query is never widened to the whole directory.
const DefaultSpecialty = "Emergency Medicine"

// Clinician is a read-only directory record. Only Available records are ever
// returned to a conversation.
type Clinician struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Specialty    string    `json:"specialty"`
	Gender       *string   `json:"gender,omitempty"`
	Experience   string    `json:"experience"` // free text, e.g. "12 Years"
	Fees         float64   `json:"fees"`
	Degree       string    `json:"degree"`
	Image        string    `json:"image"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2"`
	Available    bool      `json:"available"`
}

// ExperienceYears normalizes the free-text experience field to whole years.
func (c Clinician) ExperienceYears() int {
	return ParseExperienceYears(c.Experience)
}

// ParseExperienceYears extracts the leading integer from an experience string
// such as "12 Years" or "4+ yrs". Strings with no digits normalize to 0.
func ParseExperienceYears(s string) int {
	n := 0
	seen := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			seen = true
			continue
		}
		if seen {
			break
		}
	}
	if !seen {
		return 0
	}
	return n
}

// Specialty is one entry of the canonical taxonomy.
type Specialty struct {
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
	Active       bool   `json:"active"`
}

// ClinicianStore is the read-only directory query surface the engine needs.
type ClinicianStore interface {
	// ListBySpecialties returns available clinicians whose specialty matches
	// any of the given names case-insensitively. Gender, when non-empty,
	// filters to an exact case-insensitive match.
	ListBySpecialties(ctx context.Context, specialties []string, gender string) ([]Clinician, error)
	// SearchByName returns available clinicians whose name contains the query
	// as a substring, case-insensitively.
	SearchByName(ctx context.Context, nameQuery string, gender string) ([]Clinician, error)
}

// SpecialtyStore lists the canonical specialty vocabulary.
type SpecialtyStore interface {
	// ListActive returns active specialty names in display order.
	ListActive(ctx context.Context) ([]string, error)
}
