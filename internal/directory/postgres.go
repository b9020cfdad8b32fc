package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const clinicianColumns = `id, name, specialty, gender, experience, fees, degree, image, address_line1, address_line2, available`

// PostgresStore implements ClinicianStore and SpecialtyStore over the
// clinician directory schema (see migrations/).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a directory store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("directory: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

// ListBySpecialties returns available clinicians matching any of the given
// specialty names, optionally filtered by gender.
func (s *PostgresStore) ListBySpecialties(ctx context.Context, specialties []string, gender string) ([]Clinician, error) {
	if len(specialties) == 0 {
		specialties = []string{DefaultSpecialty}
	}
	lowered := make([]string, len(specialties))
	for i, name := range specialties {
		lowered[i] = strings.ToLower(strings.TrimSpace(name))
	}

	query := `SELECT ` + clinicianColumns + `
		FROM clinicians
		WHERE available = TRUE AND lower(specialty) = ANY($1)`
	args := []any{pq.Array(lowered)}
	if gender != "" {
		query += ` AND lower(gender) = lower($2)`
		args = append(args, gender)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: specialty query failed: %w", err)
	}
	defer rows.Close()
	return scanClinicians(rows)
}

// SearchByName returns available clinicians whose name contains the query,
// case-insensitively, optionally filtered by gender.
func (s *PostgresStore) SearchByName(ctx context.Context, nameQuery string, gender string) ([]Clinician, error) {
	nameQuery = strings.TrimSpace(nameQuery)
	if nameQuery == "" {
		return nil, nil
	}

	query := `SELECT ` + clinicianColumns + `
		FROM clinicians
		WHERE available = TRUE AND name ILIKE '%' || $1 || '%'`
	args := []any{nameQuery}
	if gender != "" {
		query += ` AND lower(gender) = lower($2)`
		args = append(args, gender)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: name search failed: %w", err)
	}
	defer rows.Close()
	return scanClinicians(rows)
}

// ListActive returns active specialty names ordered for display.
func (s *PostgresStore) ListActive(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM specialties WHERE active = TRUE ORDER BY display_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("directory: specialty listing failed: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("directory: specialty scan failed: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpsertSpecialty inserts a taxonomy entry if absent, keeping existing rows
// untouched so re-seeding is idempotent.
func (s *PostgresStore) UpsertSpecialty(ctx context.Context, spec Specialty) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO specialties (name, display_order, active)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING`,
		spec.Name, spec.DisplayOrder, spec.Active)
	if err != nil {
		return fmt.Errorf("directory: specialty upsert failed: %w", err)
	}
	return nil
}

func scanClinicians(rows *sql.Rows) ([]Clinician, error) {
	var out []Clinician
	for rows.Next() {
		var (
			c      Clinician
			gender sql.NullString
			line1  sql.NullString
			line2  sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Specialty, &gender, &c.Experience,
			&c.Fees, &c.Degree, &c.Image, &line1, &line2, &c.Available); err != nil {
			return nil, fmt.Errorf("directory: clinician scan failed: %w", err)
		}
		if gender.Valid {
			g := strings.ToLower(gender.String)
			c.Gender = &g
		}
		c.AddressLine1 = line1.String
		c.AddressLine2 = line2.String
		out = append(out, c)
	}
	return out, rows.Err()
}
