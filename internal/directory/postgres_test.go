package directory

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clinicianRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "specialty", "gender", "experience", "fees",
		"degree", "image", "address_line1", "address_line2", "available",
	})
}

func TestListBySpecialtiesLowersNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(`lower\(specialty\) = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(clinicianRows().
			AddRow(id.String(), "Dr. Amara Osei", "Orthopedic Surgery", "female",
				"12 Years", 120.0, "MBBS", "osei.png", "12 Hill Rd", nil, true))

	store := NewPostgresStore(db)
	got, err := store.ListBySpecialties(context.Background(), []string{" Orthopedic Surgery "}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "Dr. Amara Osei", got[0].Name)
	require.NotNil(t, got[0].Gender)
	assert.Equal(t, "female", *got[0].Gender)
	assert.Equal(t, "", got[0].AddressLine2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySpecialtiesGenderArg(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`lower\(gender\) = lower\(\$2\)`).
		WithArgs(sqlmock.AnyArg(), "female").
		WillReturnRows(clinicianRows())

	store := NewPostgresStore(db)
	got, err := store.ListBySpecialties(context.Background(), []string{"Cardiology"}, "female")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByNameEmptyQuerySkipsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	got, err := store.SearchByName(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByNameUsesILike(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`name ILIKE`).
		WithArgs("Osei").
		WillReturnRows(clinicianRows().
			AddRow(uuid.New().String(), "Dr. Amara Osei", "Orthopedic Surgery", nil,
				"12 Years", 120.0, "MBBS", "osei.png", nil, nil, true))

	store := NewPostgresStore(db)
	got, err := store.SearchByName(context.Background(), "Osei", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Gender)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveSpecialties(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM specialties WHERE active = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("Emergency Medicine").
			AddRow("Cardiology"))

	store := NewPostgresStore(db)
	got, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Emergency Medicine", "Cardiology"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSpecialtyIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`ON CONFLICT \(name\) DO NOTHING`).
		WithArgs("Wound Care", 10, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresStore(db)
	err = store.UpsertSpecialty(context.Background(), Specialty{Name: "Wound Care", DisplayOrder: 10, Active: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
