package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandochealth/triage/internal/directory"
)

var testCanonical = []string{
	"Cardiology", "Dermatology", "Neurology", "Orthopedic Surgery",
	"Sports Medicine", "Emergency Medicine", "Gastroenterology",
}

func classify(t *testing.T, text string, cc ClassifyContext) Decision {
	t.Helper()
	if cc.Canonical == nil {
		cc.Canonical = testCanonical
	}
	return Classify(text, cc)
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		text string
		cc   ClassifyContext
		want Intent
	}{
		{"empty", "   ", ClassifyContext{}, IntentUnknown},
		{"abuse wins over symptoms", "you stupid bot, my chest hurts", ClassifyContext{}, IntentAbusive},
		{"off topic", "what's the bitcoin price today", ClassifyContext{}, IntentOutOfScope},
		{"off topic with health stays in scope", "forget the weather, my fever is back", ClassifyContext{}, IntentSymptoms},
		{"platform help", "how do i reschedule my appointment", ClassifyContext{}, IntentPlatformHelp},
		{"booking", "can you book me with a cardiologist", ClassifyContext{}, IntentBooking},
		{"greeting", "hello there", ClassifyContext{}, IntentGreeting},
		{"how are you", "how are you doing", ClassifyContext{}, IntentHowAreYou},
		{"paginate with context", "show more", ClassifyContext{HasActiveSpecialty: true}, IntentPaginate},
		{"more without context is not paginate", "more", ClassifyContext{}, IntentUnknown},
		{"compare cheapest", "who is cheapest", ClassifyContext{}, IntentCompare},
		{"explicit specialty", "i need dermatology", ClassifyContext{}, IntentSpecialtyExplicit},
		{"truncated specialty", "any cardio doctors", ClassifyContext{}, IntentSpecialtyExplicit},
		{"show doctors", "show me some doctors", ClassifyContext{}, IntentShowDoctors},
		{"symptoms", "i fell off my bike and my knee is swollen", ClassifyContext{}, IntentSymptoms},
		{"bare filters refine", "female under 90", ClassifyContext{HasActiveSpecialty: true}, IntentRefine},
		{"unknown", "zxqv blorp", ClassifyContext{}, IntentUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := classify(t, tc.text, tc.cc)
			assert.Equal(t, tc.want, d.Intent)
		})
	}
}

func TestClassifyAffirmativeAfterOffer(t *testing.T) {
	d := classify(t, "yes please", ClassifyContext{PendingShowOffer: true})
	assert.Equal(t, IntentShowDoctors, d.Intent)
	assert.True(t, d.IsConfirmation)

	d = classify(t, "yes please", ClassifyContext{})
	assert.NotEqual(t, IntentShowDoctors, d.Intent)
}

func TestClassifySymptomsCarriesInference(t *testing.T) {
	d := classify(t, "i fell off my bike, my knee is swollen and my arm is bleeding", ClassifyContext{})
	require.Equal(t, IntentSymptoms, d.Intent)
	assert.Contains(t, d.InferredSpecialties, "Orthopedic Surgery")
	assert.Contains(t, d.InferredSpecialties, "Sports Medicine")
	assert.Contains(t, d.InferredSpecialties, "Emergency Medicine")
}

func TestClassifyCompareFlags(t *testing.T) {
	d := classify(t, "who is the most experienced", ClassifyContext{HasActiveSpecialty: true})
	require.Equal(t, IntentCompare, d.Intent)
	assert.True(t, d.AskMostExperienced)
	assert.False(t, d.AskCheapest)
}

func TestClassifyNameLookup(t *testing.T) {
	d := classify(t, "is Dr. Amara Osei available", ClassifyContext{})
	require.Equal(t, IntentNameLookup, d.Intent)
	assert.Equal(t, "Amara Osei", d.NameQuery)

	d = classify(t, "can I see Doctor Mensah, a female one", ClassifyContext{})
	require.Equal(t, IntentNameLookup, d.Intent)
	assert.Equal(t, "Mensah", d.NameQuery)
	assert.Equal(t, "female", d.Filters.Gender)
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Filters
	}{
		{"gender female", "a female doctor", Filters{Gender: "female"}},
		{"gender male", "male please", Filters{Gender: "male"}},
		{"cheapest sort", "cheapest option", Filters{Price: directory.PriceFilter{Sort: directory.PriceCheapest}}},
		{"premium sort", "something premium", Filters{Price: directory.PriceFilter{Sort: directory.PriceExpensive}}},
		{"fee cap", "under $90", Filters{Price: directory.PriceFilter{Cap: 90, HasCap: true}}},
		{"fee cap no dollar", "within 150", Filters{Price: directory.PriceFilter{Cap: 150, HasCap: true}}},
		{"experience min", "10+ years experience", Filters{ExperienceMin: 10}},
		{"experience short form", "at least 5 yrs", Filters{ExperienceMin: 5}},
		{"most experienced", "the most experienced one", Filters{WantMostExperienced: true}},
		{"combined", "female under $120 with 8 years experience", Filters{
			Gender:        "female",
			Price:         directory.PriceFilter{Cap: 120, HasCap: true},
			ExperienceMin: 8,
		}},
		{"none", "i have a question", Filters{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseFilters(tc.text))
		})
	}
}

func TestRecoverShowDoctors(t *testing.T) {
	assert.True(t, RecoverShowDoctors("pls suggest physicians near me"))
	assert.True(t, RecoverShowDoctors("i want to see a specialist"))
	assert.False(t, RecoverShowDoctors("my knee hurts"))
	assert.False(t, RecoverShowDoctors(""))
}

func TestAffirmativeAndDeclines(t *testing.T) {
	assert.True(t, Affirmative("Yes"))
	assert.True(t, Affirmative("ok sure"))
	assert.False(t, Affirmative("not really"))
	assert.True(t, Declines("no thanks"))
	assert.False(t, Declines("yes"))
}
