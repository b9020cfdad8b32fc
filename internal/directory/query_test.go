package directory

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	clinicians []Clinician
}

func (f *fakeStore) ListBySpecialties(_ context.Context, specialties []string, gender string) ([]Clinician, error) {
	wanted := make(map[string]bool, len(specialties))
	for _, s := range specialties {
		wanted[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var out []Clinician
	for _, c := range f.clinicians {
		if !c.Available || !wanted[strings.ToLower(c.Specialty)] {
			continue
		}
		if gender != "" && (c.Gender == nil || !strings.EqualFold(*c.Gender, gender)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) SearchByName(_ context.Context, nameQuery string, gender string) ([]Clinician, error) {
	var out []Clinician
	for _, c := range f.clinicians {
		if !c.Available || !strings.Contains(strings.ToLower(c.Name), strings.ToLower(nameQuery)) {
			continue
		}
		if gender != "" && (c.Gender == nil || !strings.EqualFold(*c.Gender, gender)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func clinician(name, specialty, gender, experience string, fees float64, available bool) Clinician {
	c := Clinician{
		ID:         uuid.New(),
		Name:       name,
		Specialty:  specialty,
		Experience: experience,
		Fees:       fees,
		Available:  available,
	}
	if gender != "" {
		c.Gender = &gender
	}
	return c
}

func testEngine() *Engine {
	return NewEngine(&fakeStore{clinicians: []Clinician{
		clinician("Dr. Amara Osei", "Orthopedic Surgery", "female", "12 Years", 120, true),
		clinician("Dr. Ben Okafor", "Orthopedic Surgery", "male", "4 Years", 60, true),
		clinician("Dr. Clara Mensah", "Orthopedic Surgery", "female", "8 Years", 80, true),
		clinician("Dr. Dan Ames", "Orthopedic Surgery", "male", "8 Years", 45, true),
		clinician("Dr. Edith Laing", "Orthopedic Surgery", "female", "2 Years", 30, false),
		clinician("Dr. Farouk Bello", "Emergency Medicine", "male", "15 Years", 150, true),
		clinician("Dr. Grace Addo", "Cardiology", "female", "20 Years", 200, true),
	}})
}

func TestQueryNeverReturnsUnavailable(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{Specialties: []string{"Orthopedic Surgery"}})
	require.NoError(t, err)
	for _, c := range res.Clinicians {
		assert.True(t, c.Available)
		assert.NotEqual(t, "Dr. Edith Laing", c.Name)
	}
}

func TestQueryDefaultsToEmergencyMedicine(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{})
	require.NoError(t, err)
	require.Len(t, res.Clinicians, 1)
	assert.Equal(t, "Dr. Farouk Bello", res.Clinicians[0].Name)
}

func TestQueryCheapestSortsAscending(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{
		Specialties: []string{"Orthopedic Surgery"},
		Price:       PriceFilter{Sort: PriceCheapest},
	})
	require.NoError(t, err)
	for i := 1; i < len(res.Clinicians); i++ {
		assert.LessOrEqual(t, res.Clinicians[i-1].Fees, res.Clinicians[i].Fees)
	}
}

func TestQueryExperienceMin(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{
		Specialties:   []string{"Orthopedic Surgery"},
		ExperienceMin: 8,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Clinicians)
	for _, c := range res.Clinicians {
		assert.GreaterOrEqual(t, c.ExperienceYears(), 8)
	}
}

func TestQueryFeeCap(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{
		Specialties: []string{"Orthopedic Surgery"},
		Price:       PriceFilter{Cap: 90, HasCap: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Clinicians)
	for _, c := range res.Clinicians {
		assert.LessOrEqual(t, c.Fees, 90.0)
	}
}

func TestQueryMostExperiencedWithFeeTieBreak(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{
		Specialties:         []string{"Orthopedic Surgery"},
		WantMostExperienced: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Clinicians, 4)
	assert.Equal(t, "Dr. Amara Osei", res.Clinicians[0].Name)
	// 8-year tie resolves by ascending fee: Ames (45) before Mensah (80).
	assert.Equal(t, "Dr. Dan Ames", res.Clinicians[1].Name)
	assert.Equal(t, "Dr. Clara Mensah", res.Clinicians[2].Name)
}

func TestQueryGenderFilter(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{
		Specialties: []string{"Orthopedic Surgery"},
		Gender:      "female",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Clinicians)
	for _, c := range res.Clinicians {
		require.NotNil(t, c.Gender)
		assert.Equal(t, "female", *c.Gender)
	}
}

func TestPaginationStableAndDisjoint(t *testing.T) {
	e := testEngine()
	p := Params{Specialties: []string{"Orthopedic Surgery"}, PageSize: 2}

	p.Page = 1
	page1, err := e.Query(context.Background(), p)
	require.NoError(t, err)
	p.Page = 2
	page2, err := e.Query(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 4, page1.Total)
	assert.Equal(t, page1.Total, page2.Total)
	seen := map[uuid.UUID]bool{}
	for _, c := range page1.Clinicians {
		seen[c.ID] = true
	}
	for _, c := range page2.Clinicians {
		assert.False(t, seen[c.ID], "page 2 repeated %s", c.Name)
	}
}

func TestPaginationPastEndIsEmpty(t *testing.T) {
	res, err := testEngine().Query(context.Background(), Params{
		Specialties: []string{"Orthopedic Surgery"},
		Page:        9,
		PageSize:    6,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Clinicians)
	assert.Equal(t, 4, res.Total)
}

func TestFindByNameStrictBeforeLoose(t *testing.T) {
	e := testEngine()

	// "Ames" matches Dr. Dan Ames on a word boundary even though "Mensah"
	// does not contain it; strict match wins.
	res, err := e.FindByName(context.Background(), "Ames", Params{})
	require.NoError(t, err)
	require.Len(t, res.Clinicians, 1)
	assert.Equal(t, "Dr. Dan Ames", res.Clinicians[0].Name)

	// "klin" matches nothing strictly or loosely.
	res, err = e.FindByName(context.Background(), "klin", Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Clinicians)
}

func TestFindByNameLooseFallback(t *testing.T) {
	// "Oka" is inside "Okafor" but not on a trailing word boundary, so the
	// strict pass misses and the substring pass recovers it.
	res, err := testEngine().FindByName(context.Background(), "Oka", Params{})
	require.NoError(t, err)
	require.Len(t, res.Clinicians, 1)
	assert.Equal(t, "Dr. Ben Okafor", res.Clinicians[0].Name)
}

func TestFindByNameEmptyQuery(t *testing.T) {
	res, err := testEngine().FindByName(context.Background(), "   ", Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Clinicians)
}
