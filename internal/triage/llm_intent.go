package triage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pandochealth/triage/internal/directory"
	"github.com/pandochealth/triage/pkg/logging"
)

// intentSchema validates the model's extraction before anything downstream
// trusts it. A payload that fails validation degrades to unknown rather than
// driving dispatch with malformed entities.
const intentSchema = `{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {
      "type": "string",
      "enum": ["greeting", "how_are_you", "hms_help", "out_of_scope", "booking",
               "compare", "paginate", "name_lookup", "specialty_explicit",
               "show_doctors", "refine", "symptoms", "abusive", "unknown"]
    },
    "entities": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "explicit_specialties": {"type": "array", "items": {"type": "string"}},
        "inferred_specialties": {"type": "array", "items": {"type": "string"}},
        "safe_tips": {"type": "array", "items": {"type": "string"}}
      }
    },
    "filters": {
      "type": "object",
      "properties": {
        "gender": {"type": "string"},
        "price_sort": {"type": "string"},
        "price_cap": {"type": "number"},
        "experience_min": {"type": "number"},
        "want_most_experienced": {"type": "boolean"}
      }
    },
    "flags": {
      "type": "object",
      "properties": {
        "wants_booking": {"type": "boolean"},
        "ask_cheapest": {"type": "boolean"},
        "ask_expensive": {"type": "boolean"},
        "ask_most_experienced": {"type": "boolean"},
        "is_confirmation": {"type": "boolean"},
        "abusive": {"type": "boolean"}
      }
    }
  }
}`

var intentSchemaLoader = gojsonschema.NewStringLoader(intentSchema)

type intentPayload struct {
	Intent   string `json:"intent"`
	Entities struct {
		Name                string   `json:"name"`
		ExplicitSpecialties []string `json:"explicit_specialties"`
		InferredSpecialties []string `json:"inferred_specialties"`
		SafeTips            []string `json:"safe_tips"`
	} `json:"entities"`
	Filters struct {
		Gender              string  `json:"gender"`
		PriceSort           string  `json:"price_sort"`
		PriceCap            float64 `json:"price_cap"`
		ExperienceMin       float64 `json:"experience_min"`
		WantMostExperienced bool    `json:"want_most_experienced"`
	} `json:"filters"`
	Flags struct {
		WantsBooking       bool `json:"wants_booking"`
		AskCheapest        bool `json:"ask_cheapest"`
		AskExpensive       bool `json:"ask_expensive"`
		AskMostExperienced bool `json:"ask_most_experienced"`
		IsConfirmation     bool `json:"is_confirmation"`
		Abusive            bool `json:"abusive"`
	} `json:"flags"`
}

// LLMClassifier asks a model for the turn's intent when the deterministic
// ladder comes back unknown.
type LLMClassifier struct {
	client LLMClient
	model  string
	logger *logging.Logger
}

func NewLLMClassifier(client LLMClient, model string, logger *logging.Logger) *LLMClassifier {
	if client == nil {
		panic("triage: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClassifier{client: client, model: model, logger: logger}
}

// Classify returns the model's reading of the latest user message. Every
// failure mode, transport, malformed JSON, or schema violation, collapses to
// an unknown decision so the caller's canned nudge takes over.
func (c *LLMClassifier) Classify(ctx context.Context, messages []ChatMessage, canonical []string, grounding string) Decision {
	unknown := Decision{Intent: IntentUnknown}

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:       c.model,
		System:      buildClassifyPrompt(canonical, grounding),
		Messages:    messages,
		MaxTokens:   400,
		Temperature: 0,
		ForceJSON:   true,
	})
	if err != nil {
		c.logger.Warn("intent model call failed", "error", err.Error())
		return unknown
	}

	raw := extractJSONObject(resp.Text)
	if raw == "" {
		c.logger.Warn("intent model returned no JSON object")
		return unknown
	}

	result, err := gojsonschema.Validate(intentSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		c.logger.Warn("intent payload failed schema validation")
		return unknown
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return unknown
	}
	return payload.toDecision(canonical)
}

func (p intentPayload) toDecision(canonical []string) Decision {
	intent := Intent(p.Intent)
	if !ValidIntent(p.Intent) {
		intent = IntentUnknown
	}

	d := Decision{
		Intent:              intent,
		NameQuery:           strings.TrimSpace(p.Entities.Name),
		ExplicitSpecialties: coerceSpecialties(p.Entities.ExplicitSpecialties, canonical),
		InferredSpecialties: coerceSpecialties(p.Entities.InferredSpecialties, canonical),
		WantsBooking:        p.Flags.WantsBooking,
		AskCheapest:         p.Flags.AskCheapest,
		AskExpensive:        p.Flags.AskExpensive,
		AskMostExperienced:  p.Flags.AskMostExperienced,
		IsConfirmation:      p.Flags.IsConfirmation,
		Abusive:             p.Flags.Abusive || intent == IntentAbusive,
	}

	if len(p.Entities.SafeTips) > maxSafeTips {
		d.SafeTips = p.Entities.SafeTips[:maxSafeTips]
	} else {
		d.SafeTips = p.Entities.SafeTips
	}

	switch p.Filters.Gender {
	case "female", "male":
		d.Filters.Gender = p.Filters.Gender
	}
	switch p.Filters.PriceSort {
	case "cheapest":
		d.Filters.Price.Sort = directory.PriceCheapest
	case "expensive":
		d.Filters.Price.Sort = directory.PriceExpensive
	}
	if p.Filters.PriceCap > 0 {
		d.Filters.Price.Cap = p.Filters.PriceCap
		d.Filters.Price.HasCap = true
	}
	if p.Filters.ExperienceMin > 0 {
		d.Filters.ExperienceMin = int(p.Filters.ExperienceMin)
	}
	d.Filters.WantMostExperienced = p.Filters.WantMostExperienced

	return d
}

// coerceSpecialties keeps only names present in the canonical vocabulary,
// matched case-insensitively, returned in canonical casing.
func coerceSpecialties(names, canonical []string) []string {
	if len(names) == 0 {
		return nil
	}
	byLower := make(map[string]string, len(canonical))
	for _, c := range canonical {
		byLower[strings.ToLower(c)] = c
	}

	var out []string
	seen := make(map[string]bool)
	for _, n := range names {
		canon, ok := byLower[strings.ToLower(strings.TrimSpace(n))]
		if !ok || seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, canon)
	}
	return out
}

// extractJSONObject pulls the outermost {...} span out of model text, which
// tolerates code fences and stray prose around the object.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
