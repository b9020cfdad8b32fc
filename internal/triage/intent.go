package triage

import (
	"regexp"
	"strconv"

	"github.com/pandochealth/triage/internal/directory"
)

// Deterministic turn parsing. Each detector is a short-circuiting check and
// the whole ladder runs before any model call; the model is consulted only
// when everything here comes back unknown.

var (
	abuseRe     = regexp.MustCompile(`\b(fuck\w*|shit|bitch|asshole|idiot|moron|dumb|stupid|kill yourself)\b`)
	offTopicRe  = regexp.MustCompile(`\b(stock|stocks|bitcoin|crypto|politics|election|weather|forecast|sports score|news|celebrity)\b`)
	healthRe    = regexp.MustCompile(`\b(health|doctor|dr|clinic|symptom\w*|pain|sick|ill|fever|injur\w*|appointment|specialist|medicine|hospital)\b`)
	platformRe  = regexp.MustCompile(`\b(reschedule|cancel (my )?appointment|upload (my )?(report|reports|file|files)|appointment status|where is my appointment|reset (my )?password)\b`)
	bookingRe   = regexp.MustCompile(`\b(book\w*|schedule|reserve|make an appointment|confirm appointment)\b`)
	greetingRe  = regexp.MustCompile(`\b(h+i+|hello|hey|good (morning|afternoon|evening))\b`)
	howAreYouRe = regexp.MustCompile(`\bhow (are|r) (you|ya|u)\b`)
	paginateRe  = regexp.MustCompile(`\b(more|next|load more|show more)\b`)
	affirmRe    = regexp.MustCompile(`\b(yes|yep|yeah|y|ok|okay|sure|please|pls|do it|go ahead)\b`)
	declineRe   = regexp.MustCompile(`\b(no|nope|nah|not now|later)\b`)

	cheapestRe        = regexp.MustCompile(`\b(cheapest|lowest fee|least expensive|who is cheapest)\b`)
	expensiveRe       = regexp.MustCompile(`\b(most expensive|highest fee|priciest|who is priciest)\b`)
	mostExperiencedRe = regexp.MustCompile(`\b(most experienced|more experienced|highest experience|most senior)\b`)

	femaleRe   = regexp.MustCompile(`\b(female|woman|lady)\b`)
	maleRe     = regexp.MustCompile(`\b(male|man|gent|gentleman)\b`)
	cheapRe    = regexp.MustCompile(`\b(cheapest|cheap|low ?-?cost|budget|affordable)\b`)
	premiumRe  = regexp.MustCompile(`\b(expensive|premium|top ?-?tier|highest fee)\b`)
	feeCapRe   = regexp.MustCompile(`\b(?:under|below|within|<=?)\s*\$?(\d{2,4})\b`)
	expYearsRe = regexp.MustCompile(`(\d{1,2})\+?\s*(?:years?|yrs?)(?:\s*(?:of\s*)?(?:experience|exp))?`)
	wantBestRe = regexp.MustCompile(`\b(best|most experienced|senior|top doctor)\b`)

	// Title plus capitalized name tokens, applied to the raw (uncased) text.
	nameLookupRe = regexp.MustCompile(`\b(?:Dr\.?|Doctor)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})`)

	doctorNounRe     = regexp.MustCompile(`\b(doct\w*|dr|physician\w*|specialist\w*|clinician\w*)\b`)
	imperativeVerbRe = regexp.MustCompile(`\b(show|give|send|provide|list|share|find|get|need|want|see|suggest|recommend)\b`)
	doctorPleaseRe   = regexp.MustCompile(`\bdoctors?\s*(please|now)\b`)

	symptomRe = regexp.MustCompile(`\b(pain|ache|hurt\w*|swollen|swelling|bleed\w*|injur\w*|fever|cough|rash|headache|dizzy|nausea|vomit\w*|unwell|sick|tired|fatigue)\b`)
)

// Affirmative reports a bare confirmation ("yes", "ok", "sure").
func Affirmative(text string) bool {
	return affirmRe.MatchString(normalize(text))
}

// Declines reports an explicit refusal, which clears a pending show offer.
func Declines(text string) bool {
	return declineRe.MatchString(normalize(text))
}

// ClassifyContext carries the prior-state signals the detectors condition on.
type ClassifyContext struct {
	// Canonical is the active specialty vocabulary for explicit matching.
	Canonical []string
	// PendingShowOffer is true when the previous reply offered a list.
	PendingShowOffer bool
	// HasActiveSpecialty is true when the session already resolved a specialty.
	HasActiveSpecialty bool
}

// Classify runs the deterministic dispatch ladder over one utterance.
func Classify(raw string, cc ClassifyContext) Decision {
	t := normalize(raw)
	if t == "" {
		return Decision{Intent: IntentUnknown}
	}

	if abuseRe.MatchString(t) {
		return Decision{Intent: IntentAbusive, Abusive: true}
	}
	if offTopicRe.MatchString(t) && !healthRe.MatchString(t) {
		return Decision{Intent: IntentOutOfScope}
	}
	if platformRe.MatchString(t) {
		return Decision{Intent: IntentPlatformHelp}
	}
	if bookingRe.MatchString(t) {
		return Decision{Intent: IntentBooking, WantsBooking: true}
	}
	if greetingRe.MatchString(t) {
		return Decision{Intent: IntentGreeting}
	}
	if howAreYouRe.MatchString(t) {
		return Decision{Intent: IntentHowAreYou}
	}
	// "more experienced" is a ranking ask, not a page request.
	if paginateRe.MatchString(t) && cc.HasActiveSpecialty && !mostExperiencedRe.MatchString(t) {
		return Decision{Intent: IntentPaginate}
	}

	// A ranking question over the current page, unless the user is asking for
	// a fresh list ("show me the cheapest cardiologists" is a list request).
	if !wantsDoctors(t) && (cheapestRe.MatchString(t) || expensiveRe.MatchString(t) || mostExperiencedRe.MatchString(t)) {
		return Decision{
			Intent:             IntentCompare,
			AskCheapest:        cheapestRe.MatchString(t),
			AskExpensive:       expensiveRe.MatchString(t),
			AskMostExperienced: mostExperiencedRe.MatchString(t),
		}
	}

	filters := ParseFilters(t)

	if m := nameLookupRe.FindStringSubmatch(raw); len(m) == 2 {
		return Decision{Intent: IntentNameLookup, NameQuery: m[1], Filters: filters}
	}

	explicit := MapExplicit(t, cc.Canonical)
	inferred := MapInferred(t)

	if wantsDoctors(t) || (cc.PendingShowOffer && affirmRe.MatchString(t)) {
		return Decision{
			Intent:              IntentShowDoctors,
			ExplicitSpecialties: explicit,
			InferredSpecialties: inferred,
			Filters:             filters,
			IsConfirmation:      cc.PendingShowOffer && affirmRe.MatchString(t),
			RedFlag:             redFlagRe.MatchString(t),
		}
	}

	if !filters.IsZero() {
		return Decision{
			Intent:              IntentRefine,
			ExplicitSpecialties: explicit,
			InferredSpecialties: inferred,
			Filters:             filters,
			RedFlag:             redFlagRe.MatchString(t),
		}
	}

	if len(explicit) > 0 {
		return Decision{Intent: IntentSpecialtyExplicit, ExplicitSpecialties: explicit, Filters: filters}
	}

	if len(inferred) > 0 || symptomRe.MatchString(t) {
		return Decision{
			Intent:              IntentSymptoms,
			InferredSpecialties: inferred,
			Filters:             filters,
			SafeTips:            SafeTips(t),
			RedFlag:             redFlagRe.MatchString(t),
		}
	}

	return Decision{Intent: IntentUnknown}
}

// ParseFilters extracts gender, price, and experience refinements.
func ParseFilters(text string) Filters {
	t := normalize(text)
	var f Filters

	if femaleRe.MatchString(t) {
		f.Gender = "female"
	} else if maleRe.MatchString(t) {
		f.Gender = "male"
	}

	if cheapRe.MatchString(t) {
		f.Price = directory.PriceFilter{Sort: directory.PriceCheapest}
	}
	if premiumRe.MatchString(t) {
		f.Price = directory.PriceFilter{Sort: directory.PriceExpensive}
	}
	if m := feeCapRe.FindStringSubmatch(t); len(m) == 2 {
		if cap, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.Price.Cap = cap
			f.Price.HasCap = true
		}
	}

	if m := expYearsRe.FindStringSubmatch(t); len(m) >= 2 {
		if years, err := strconv.Atoi(m[1]); err == nil {
			f.ExperienceMin = years
		}
	}
	if wantBestRe.MatchString(t) {
		f.WantMostExperienced = true
	}
	return f
}

func wantsDoctors(t string) bool {
	if imperativeVerbRe.MatchString(t) && doctorNounRe.MatchString(t) {
		return true
	}
	return doctorPleaseRe.MatchString(t)
}

// RecoverShowDoctors is the final permissive check: an imperative verb next to
// any doctor-referring noun is treated as a list request even when the parse
// ladder and the model both missed, so the conversation does not dead-end.
func RecoverShowDoctors(raw string) bool {
	t := normalize(raw)
	if t == "" {
		return false
	}
	return imperativeVerbRe.MatchString(t) && doctorNounRe.MatchString(t)
}
