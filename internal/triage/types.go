package triage

import (
	"fmt"
	"strings"

	"github.com/pandochealth/triage/internal/directory"
)

// Intent is one turn-level decision tag. The set is closed: the LLM path is
// coerced into it and anything else becomes IntentUnknown.
type Intent string

const (
	IntentGreeting          Intent = "greeting"
	IntentHowAreYou         Intent = "how_are_you"
	IntentPlatformHelp      Intent = "hms_help"
	IntentOutOfScope        Intent = "out_of_scope"
	IntentBooking           Intent = "booking"
	IntentCompare           Intent = "compare"
	IntentPaginate          Intent = "paginate"
	IntentNameLookup        Intent = "name_lookup"
	IntentSpecialtyExplicit Intent = "specialty_explicit"
	IntentShowDoctors       Intent = "show_doctors"
	IntentRefine            Intent = "refine"
	IntentSymptoms          Intent = "symptoms"
	IntentAbusive           Intent = "abusive"
	IntentUnknown           Intent = "unknown"
)

// Intents lists the closed set, used to validate model output.
var Intents = []Intent{
	IntentGreeting, IntentHowAreYou, IntentPlatformHelp, IntentOutOfScope,
	IntentBooking, IntentCompare, IntentPaginate, IntentNameLookup,
	IntentSpecialtyExplicit, IntentShowDoctors, IntentRefine, IntentSymptoms,
	IntentAbusive, IntentUnknown,
}

// ValidIntent reports whether s is a member of the closed intent set.
func ValidIntent(s string) bool {
	for _, i := range Intents {
		if string(i) == s {
			return true
		}
	}
	return false
}

// Filters are the clinician-list refinements a conversation can accumulate.
type Filters struct {
	Gender              string                 `json:"gender,omitempty"`
	Price               directory.PriceFilter  `json:"price,omitempty"`
	ExperienceMin       int                    `json:"experience_min,omitempty"`
	WantMostExperienced bool                   `json:"want_most_experienced,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Gender == "" && f.Price.Sort == "" && !f.Price.HasCap &&
		f.ExperienceMin == 0 && !f.WantMostExperienced
}

// Merge overlays the non-empty fields of other onto f. Later turns win.
func (f *Filters) Merge(other Filters) {
	if other.Gender != "" {
		f.Gender = other.Gender
	}
	if other.Price.Sort != "" || other.Price.HasCap {
		f.Price = other.Price
	}
	if other.ExperienceMin > 0 {
		f.ExperienceMin = other.ExperienceMin
	}
	if other.WantMostExperienced {
		f.WantMostExperienced = true
	}
}

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of the bounded per-session transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionKey identifies a conversation's persisted state.
type SessionKey struct {
	Tenant string
	User   string
	Chat   string
}

// Normalize fills the anonymous defaults the platform uses for missing parts.
func (k SessionKey) Normalize() SessionKey {
	if k.Tenant == "" {
		k.Tenant = "default"
	}
	if k.User == "" {
		k.User = "anon"
	}
	if k.Chat == "" {
		k.Chat = "local"
	}
	return k
}

func (k SessionKey) String() string {
	k = k.Normalize()
	return fmt.Sprintf("triage:ctx:%s:%s:%s", k.Tenant, k.User, k.Chat)
}

// SessionState is the per-conversation triage state. It is mutated at the end
// of every turn and expires by TTL, never by explicit deletion except a reset.
type SessionState struct {
	ActiveSpecialty  string                 `json:"active_specialty,omitempty"`
	Filters          Filters                `json:"filters"`
	LastResults      []directory.Clinician  `json:"last_results,omitempty"`
	Page             int                    `json:"page"`
	PageSize         int                    `json:"page_size"`
	PendingShowOffer bool                   `json:"pending_show_offer"`
	Messages         []ChatMessage          `json:"messages,omitempty"`
}

// NewSessionState returns the lazy-created default state.
func NewSessionState(pageSize int) *SessionState {
	if pageSize < 1 {
		pageSize = 6
	}
	return &SessionState{Page: 1, PageSize: pageSize}
}

// AppendMessage records a transcript entry, keeping only the most recent limit.
func (s *SessionState) AppendMessage(role, content string, limit int) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content})
	if limit > 0 && len(s.Messages) > limit {
		s.Messages = s.Messages[len(s.Messages)-limit:]
	}
}

// Decision is the classifier's per-turn output. Only the parts the engine
// merges into SessionState outlive the turn.
type Decision struct {
	Intent Intent

	ExplicitSpecialties []string
	InferredSpecialties []string
	NameQuery           string
	Filters             Filters
	SafeTips            []string

	Abusive            bool
	WantsBooking       bool
	IsConfirmation     bool
	AskCheapest        bool
	AskExpensive       bool
	AskMostExperienced bool
	RedFlag            bool
}

// TurnRequest is one inbound message addressed to a session.
type TurnRequest struct {
	Tenant  string `json:"tenantId"`
	User    string `json:"userId"`
	Chat    string `json:"chatId"`
	Message string `json:"message"`
}

// Key returns the normalized session key for the request.
func (r TurnRequest) Key() SessionKey {
	return SessionKey{Tenant: r.Tenant, User: r.User, Chat: r.Chat}.Normalize()
}

// TurnResponse is the reply surface handed to the presentation layer.
type TurnResponse struct {
	Reply      string                `json:"reply"`
	Intent     Intent                `json:"intent"`
	Clinicians []directory.Clinician `json:"doctors"`
}

// normalize lowercases and collapses whitespace for pattern matching.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
