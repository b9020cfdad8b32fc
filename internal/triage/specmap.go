package triage

import (
	"regexp"
	"strings"

	"github.com/pandochealth/triage/internal/directory"
)

// inferRule maps a symptom/body-part vocabulary pattern to the specialties it
// suggests. Rules are evaluated in table order and their hits unioned, so the
// table is data: extending coverage means adding a row, not control flow.
type inferRule struct {
	re          *regexp.Regexp
	specialties []string
}

var inferRules = []inferRule{
	{regexp.MustCompile(`\b(knee|ankle|wrist|shoulder|hip|elbow|joint|sprain|fractur\w*|dislocat\w*|meniscus|acl|rotator|bone|bones|swollen|swelling|bruise|fell|fall|accident|injur\w*|trauma|collision)\b`),
		[]string{"Orthopedic Surgery", "Sports Medicine", directory.DefaultSpecialty}},
	{regexp.MustCompile(`\b(bleed\w*|laceration|cut|gash|wound)\b`),
		[]string{directory.DefaultSpecialty, "Wound Care", "General Surgery"}},
	{regexp.MustCompile(`\b(skin|rash|acne|eczema|psoriasis|hives|itch\w*|alopecia)\b`),
		[]string{"Dermatology"}},
	{regexp.MustCompile(`\b(chest pain|heart|palpitation\w*|cardio)\b`),
		[]string{"Cardiology"}},
	{regexp.MustCompile(`\b(headache|migraine|seiz\w*|stroke|numb\w*|tingl\w*|concussion|head injur\w*|brain|neuro)\b`),
		[]string{"Neurology"}},
	{regexp.MustCompile(`\b(eye|eyes|vision|blurry|red eye|conjunct\w*|ophthal\w*)\b`),
		[]string{"Ophthalmology"}},
	{regexp.MustCompile(`\b(ent|ear|nose|throat|sinus|tonsil\w*|adenoid\w*|sore throat)\b`),
		[]string{"Otolaryngology (ENT)"}},
	{regexp.MustCompile(`\b(thyroid|hormone\w*|diabet\w*|endocrin\w*)\b`),
		[]string{"Endocrinology, Diabetes & Metabolism"}},
	{regexp.MustCompile(`\b(stomach|abdomen|belly|reflux|gerd|ulcer|nausea|vomit\w*|diarrhea|constipation|gastro\w*|acid)\b`),
		[]string{"Gastroenterology"}},
	{regexp.MustCompile(`\b(kidney|renal|uti|urinary|urine|prostate|urolog\w*|burning urination|kidney stone)\b`),
		[]string{"Urology"}},
	{regexp.MustCompile(`\b(pediatr\w*|child|kid|toddler|infant|baby)\b`),
		[]string{"Pediatrics"}},
	{regexp.MustCompile(`\b(pregnan\w*|period|gyne\w*|obgyn|pelvic|uter\w*|ovary|cervix|vagin\w*|menstru\w*|missed period)\b`),
		[]string{"Gynecology"}},
	{regexp.MustCompile(`\b(asthma|lung|lungs|pulmo\w*|shortness of breath|can'?t breathe|wheez\w*)\b`),
		[]string{"Pulmonology"}},
	{regexp.MustCompile(`\b(faint\w*|blackout|unconscious|weakness)\b`),
		[]string{directory.DefaultSpecialty, "Neurology"}},
}

// redFlagRe signals acute danger. Red-flag utterances always include Emergency
// Medicine regardless of other matches and never receive self-care tips.
var redFlagRe = regexp.MustCompile(`\b(bleeding a lot|severe bleeding|profuse bleeding|uncontrolled bleeding|can'?t breathe|difficulty breathing|shortness of breath|fainted|unconscious|loss of consciousness|chest pain|head injur\w*|stroke|seizure|open fracture|crushed)\b`)

// RedFlag reports whether the utterance signals acute danger.
func RedFlag(text string) bool {
	return redFlagRe.MatchString(normalize(text))
}

// MapInferred maps symptom and body-part vocabulary to specialties by
// evaluating the rule table in order and unioning hits. The result is
// deterministic: first-mention order, duplicates removed.
func MapInferred(text string) []string {
	t := normalize(text)
	if t == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, rule := range inferRules {
		if rule.re.MatchString(t) {
			for _, s := range rule.specialties {
				add(s)
			}
		}
	}
	if redFlagRe.MatchString(t) {
		add(directory.DefaultSpecialty)
	}
	return out
}

// MapExplicit returns every canonical specialty the text names, either as the
// whole normalized name or as a truncation of its head token (so "cardio"
// matches "Cardiology"). Order is canonical-list order, deduplicated.
func MapExplicit(text string, canonical []string) []string {
	t := normalize(text)
	if t == "" {
		return nil
	}
	words := strings.Fields(t)

	var out []string
	seen := make(map[string]bool)
	for _, name := range canonical {
		norm := normalize(name)
		if norm == "" || seen[norm] {
			continue
		}
		if matchesSpecialty(t, words, norm) {
			seen[norm] = true
			out = append(out, name)
		}
	}
	return out
}

func matchesSpecialty(text string, words []string, normName string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(normName) + `\b`)
	if re.MatchString(text) {
		return true
	}
	head := strings.FieldsFunc(normName, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	if len(head) == 0 {
		return false
	}
	headToken := head[0]
	for _, w := range words {
		// A whole word of the utterance that truncates the head token, five
		// runes minimum to keep short words like "skin" from matching
		// everything.
		if len(w) >= 5 && strings.HasPrefix(headToken, w) {
			return true
		}
	}
	return false
}

// safeTipRule pairs a minor-symptom pattern with one short, non-directive
// self-care note. Tips are general wellbeing pointers, never diagnoses.
type safeTipRule struct {
	re  *regexp.Regexp
	tip string
}

var safeTipRules = []safeTipRule{
	{regexp.MustCompile(`\b(headache|tension|mild fever)\b`),
		"For a mild headache or fever, rest, hydrate, and consider a general over-the-counter pain reliever if you usually tolerate it."},
	{regexp.MustCompile(`\b(muscle strain|sprain|bruise)\b`),
		"For a mild sprain or strain, rest and gentle icing may help in the short term."},
	{regexp.MustCompile(`\b(heartburn|reflux|acid)\b`),
		"Avoid trigger foods and large meals close to bedtime; elevating your head while sleeping can help."},
	{regexp.MustCompile(`\b(allergy|allergies|itch\w*|sneez\w*|hay fever)\b`),
		"Limit exposure to triggers; saline nasal rinses may help with congestion."},
}

const maxSafeTips = 2

// SafeTips returns up to two self-care notes for minor symptoms. Red-flag
// utterances get none; those carry an urgent-care caution instead.
func SafeTips(text string) []string {
	t := normalize(text)
	if t == "" || redFlagRe.MatchString(t) {
		return nil
	}
	var tips []string
	for _, rule := range safeTipRules {
		if rule.re.MatchString(t) {
			tips = append(tips, rule.tip)
			if len(tips) == maxSafeTips {
				break
			}
		}
	}
	return tips
}
