package triage

import "strings"

// systemCorePrompt frames the assistant and its hard boundaries. It is sent on
// every model call, ahead of any retrieved grounding cards.
const systemCorePrompt = `You are the triage assistant for Pandoc, a clinic platform. You help people describe a health concern and route them to the right kind of doctor, and you answer questions about using the Pandoc app. You never diagnose, never prescribe, and never book appointments on a user's behalf. You only discuss the user's health or the Pandoc platform.`

// intentExtractionPrompt instructs the model to emit one JSON object with the
// turn's intent and entities. The legal intent values mirror the deterministic
// parser so both paths feed the same dispatch.
const intentExtractionPrompt = `Classify the user's latest message. Respond with one JSON object only, no prose, matching this shape:

{
  "intent": "<one of: greeting, how_are_you, hms_help, out_of_scope, booking, compare, paginate, name_lookup, specialty_explicit, show_doctors, refine, symptoms, abusive, unknown>",
  "entities": {
    "name": "<doctor name the user asked about, or empty>",
    "explicit_specialties": ["<specialty names the user stated>"],
    "inferred_specialties": ["<specialties implied by symptoms>"],
    "safe_tips": ["<at most two generic self-care notes for minor symptoms, none for anything urgent>"]
  },
  "filters": {
    "gender": "<female, male, or empty>",
    "price_sort": "<cheapest, expensive, or empty>",
    "price_cap": <number or 0>,
    "experience_min": <number or 0>,
    "want_most_experienced": <true or false>
  },
  "flags": {
    "wants_booking": <true or false>,
    "ask_cheapest": <true or false>,
    "ask_expensive": <true or false>,
    "ask_most_experienced": <true or false>,
    "is_confirmation": <true or false>,
    "abusive": <true or false>
  }
}

Rules: "hms_help" is for questions about using the Pandoc app. "compare" is for ranking questions about doctors already shown. "refine" is for filter-only follow-ups. Use "unknown" when unsure. Never invent specialties outside the provided list.`

// buildClassifyPrompt assembles the system blocks for one classification call.
func buildClassifyPrompt(canonical []string, grounding string) []string {
	blocks := []string{systemCorePrompt}
	if len(canonical) > 0 {
		blocks = append(blocks, "Available specialties: "+strings.Join(canonical, ", ")+".")
	}
	if grounding != "" {
		blocks = append(blocks, "Reference material about the platform and triage routing:\n\n"+grounding)
	}
	blocks = append(blocks, intentExtractionPrompt)
	return blocks
}
