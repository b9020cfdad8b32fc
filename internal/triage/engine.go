package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pandochealth/triage/internal/directory"
	"github.com/pandochealth/triage/internal/observability/metrics"
	"github.com/pandochealth/triage/pkg/logging"
)

// Grounder supplies retrieved reference text for the model path. The engine
// treats retrieval as best-effort; a failed lookup degrades to no grounding.
type Grounder interface {
	Retrieve(ctx context.Context, tenant, query string, k int) (string, error)
}

// IntentModel is the model-backed classifier the engine consults when the
// deterministic parser returns unknown.
type IntentModel interface {
	Classify(ctx context.Context, messages []ChatMessage, canonical []string, grounding string) Decision
}

// EngineConfig tunes the turn loop.
type EngineConfig struct {
	PageSize     int
	HistoryLimit int
	TopK         int
	LLMTimeout   time.Duration
	RAGTimeout   time.Duration
}

func (c *EngineConfig) applyDefaults() {
	if c.PageSize < 1 {
		c.PageSize = 6
	}
	if c.HistoryLimit < 1 {
		c.HistoryLimit = 60
	}
	if c.TopK < 1 {
		c.TopK = 5
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 12 * time.Second
	}
	if c.RAGTimeout <= 0 {
		c.RAGTimeout = 6 * time.Second
	}
}

// Engine runs the turn loop: load state, classify, dispatch, persist.
type Engine struct {
	sessions  SessionStore
	directory *directory.Engine
	taxonomy  directory.SpecialtyStore
	grounder  Grounder
	model     IntentModel
	metrics   *metrics.TriageMetrics
	logger    *logging.Logger
	cfg       EngineConfig

	locks keyedMutex
}

func NewEngine(sessions SessionStore, dir *directory.Engine, taxonomy directory.SpecialtyStore, grounder Grounder, model IntentModel, m *metrics.TriageMetrics, logger *logging.Logger, cfg EngineConfig) *Engine {
	if sessions == nil {
		panic("triage: session store cannot be nil")
	}
	if dir == nil {
		panic("triage: directory engine cannot be nil")
	}
	if taxonomy == nil {
		panic("triage: specialty store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Engine{
		sessions:  sessions,
		directory: dir,
		taxonomy:  taxonomy,
		grounder:  grounder,
		model:     model,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
}

// ProcessTurn handles one user message. Turns on the same session are
// serialized so concurrent messages cannot interleave state writes.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	started := time.Now()
	key := req.Key()

	unlock := e.locks.lock(key.String())
	defer unlock()

	state, err := e.sessions.Get(ctx, key, e.cfg.PageSize)
	if err != nil {
		e.metrics.ObserveTurn(string(IntentUnknown), "error")
		return TurnResponse{}, fmt.Errorf("triage: load session: %w", err)
	}
	state.AppendMessage(ChatRoleUser, req.Message, e.cfg.HistoryLimit)

	canonical, grounding := e.gatherContext(ctx, key.Tenant, req.Message)

	decision := Classify(req.Message, ClassifyContext{
		Canonical:          canonical,
		PendingShowOffer:   state.PendingShowOffer,
		HasActiveSpecialty: state.ActiveSpecialty != "",
	})

	if decision.Intent == IntentUnknown && e.model != nil {
		llmCtx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
		decision = e.model.Classify(llmCtx, state.Messages, canonical, grounding)
		cancel()
		if decision.Intent == IntentUnknown {
			e.metrics.ObserveLLMFallback("unknown")
		} else {
			e.metrics.ObserveLLMFallback("classified")
		}
	}
	if decision.Intent == IntentUnknown && RecoverShowDoctors(req.Message) {
		decision.Intent = IntentShowDoctors
	}

	resp, err := e.dispatch(ctx, key, state, decision)
	if err != nil {
		e.metrics.ObserveTurn(string(decision.Intent), "error")
		return TurnResponse{}, err
	}

	// The offer survives exactly one turn unless this turn renewed it.
	if resp.Intent != IntentSymptoms {
		state.PendingShowOffer = false
	}

	state.AppendMessage(ChatRoleAssistant, resp.Reply, e.cfg.HistoryLimit)
	if err := e.sessions.Save(ctx, key, state); err != nil {
		e.logger.Warn("failed to persist session", "error", err.Error(), "session", key.String())
	}

	e.metrics.ObserveTurn(string(resp.Intent), "ok")
	e.metrics.ObserveTurnLatency(string(resp.Intent), time.Since(started).Seconds())
	return resp, nil
}

// Reset clears a session's persisted state.
func (e *Engine) Reset(ctx context.Context, key SessionKey) error {
	key = key.Normalize()
	unlock := e.locks.lock(key.String())
	defer unlock()
	return e.sessions.Clear(ctx, key)
}

// gatherContext fetches the specialty vocabulary and grounding cards in
// parallel. Both are best-effort; a slow embedding or index call must not
// hold the session lock past RAGTimeout, so failures and timeouts log and
// degrade to an empty result.
func (e *Engine) gatherContext(ctx context.Context, tenant, message string) ([]string, string) {
	var (
		canonical []string
		grounding string
	)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RAGTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		specs, err := e.taxonomy.ListActive(gctx)
		if err != nil {
			e.logger.Warn("failed to load specialty taxonomy", "error", err.Error())
			return nil
		}
		canonical = specs
		return nil
	})
	if e.grounder != nil {
		g.Go(func() error {
			text, err := e.grounder.Retrieve(gctx, tenant, message, e.cfg.TopK)
			if err != nil {
				e.logger.Warn("grounding retrieval failed", "error", err.Error())
				return nil
			}
			grounding = text
			return nil
		})
	}
	_ = g.Wait()
	return canonical, grounding
}

func (e *Engine) dispatch(ctx context.Context, key SessionKey, state *SessionState, d Decision) (TurnResponse, error) {
	if gate := ApplyPolicy(d); gate.Handled {
		return TurnResponse{Reply: gate.Reply, Intent: gate.Intent}, nil
	}

	switch d.Intent {
	case IntentShowDoctors, IntentSpecialtyExplicit:
		return e.handleShow(ctx, state, d)
	case IntentRefine:
		return e.handleRefine(ctx, state, d)
	case IntentSymptoms:
		return e.handleSymptoms(state, d), nil
	case IntentCompare:
		return e.handleCompare(state, d), nil
	case IntentPaginate:
		return e.handlePaginate(ctx, state)
	case IntentNameLookup:
		return e.handleNameLookup(ctx, state, d)
	default:
		return TurnResponse{Reply: replyUnknown, Intent: IntentUnknown}, nil
	}
}

// resolveSpecialties picks the query specialty set in precedence order:
// stated this turn, remembered from the session, inferred from symptoms,
// and finally the emergency default.
func resolveSpecialties(state *SessionState, d Decision) []string {
	if len(d.ExplicitSpecialties) > 0 {
		return d.ExplicitSpecialties
	}
	if state.ActiveSpecialty != "" {
		return []string{state.ActiveSpecialty}
	}
	if len(d.InferredSpecialties) > 0 {
		if len(d.InferredSpecialties) > 2 {
			return d.InferredSpecialties[:2]
		}
		return d.InferredSpecialties
	}
	return []string{directory.DefaultSpecialty}
}

func (e *Engine) handleShow(ctx context.Context, state *SessionState, d Decision) (TurnResponse, error) {
	specs := resolveSpecialties(state, d)
	state.Filters.Merge(d.Filters)

	res, err := e.query(ctx, specs, state.Filters, 1, state.PageSize)
	if err != nil {
		return TurnResponse{}, err
	}

	state.ActiveSpecialty = specs[0]
	state.Page = 1
	state.LastResults = res.Clinicians

	intent := d.Intent
	if intent != IntentSpecialtyExplicit {
		intent = IntentShowDoctors
	}
	return TurnResponse{
		Reply:      listReply(specs[0], res),
		Intent:     intent,
		Clinicians: res.Clinicians,
	}, nil
}

func (e *Engine) handleRefine(ctx context.Context, state *SessionState, d Decision) (TurnResponse, error) {
	if state.ActiveSpecialty == "" && len(d.ExplicitSpecialties) == 0 && len(d.InferredSpecialties) == 0 {
		return TurnResponse{Reply: replyNoContext, Intent: IntentRefine}, nil
	}

	specs := resolveSpecialties(state, d)
	state.Filters.Merge(d.Filters)

	res, err := e.query(ctx, specs, state.Filters, 1, state.PageSize)
	if err != nil {
		return TurnResponse{}, err
	}

	state.ActiveSpecialty = specs[0]
	state.Page = 1
	state.LastResults = res.Clinicians

	return TurnResponse{
		Reply:      listReply(specs[0], res),
		Intent:     IntentRefine,
		Clinicians: res.Clinicians,
	}, nil
}

func (e *Engine) handleSymptoms(state *SessionState, d Decision) TurnResponse {
	var b strings.Builder
	if d.RedFlag {
		b.WriteString(redFlagCaution)
	}
	for _, tip := range d.SafeTips {
		b.WriteString(tip)
		b.WriteString(" ")
	}
	if len(d.InferredSpecialties) > 0 {
		b.WriteString("Based on what you describe, " + humanJoin(d.InferredSpecialties) + " could be a good fit.")
	} else {
		b.WriteString("Thanks for telling me.")
	}
	b.WriteString(showOfferTail)

	state.PendingShowOffer = true
	if len(d.InferredSpecialties) > 0 && state.ActiveSpecialty == "" {
		state.ActiveSpecialty = d.InferredSpecialties[0]
	}

	return TurnResponse{Reply: b.String(), Intent: IntentSymptoms}
}

// handleCompare answers ranking questions over the page already shown. It
// never re-queries the directory.
func (e *Engine) handleCompare(state *SessionState, d Decision) TurnResponse {
	if len(state.LastResults) == 0 {
		return TurnResponse{
			Reply:  "I haven't shown any doctors yet. Tell me a symptom or specialty and I'll pull up a list.",
			Intent: IntentCompare,
		}
	}

	list := make([]directory.Clinician, len(state.LastResults))
	copy(list, state.LastResults)

	var pick directory.Clinician
	var label string
	switch {
	case d.AskExpensive:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Fees > list[j].Fees })
		pick, label = list[0], "has the highest fee"
	case d.AskMostExperienced:
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].ExperienceYears() != list[j].ExperienceYears() {
				return list[i].ExperienceYears() > list[j].ExperienceYears()
			}
			return list[i].Fees < list[j].Fees
		})
		pick, label = list[0], fmt.Sprintf("is the most experienced (%s)", list[0].Experience)
	case d.AskCheapest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Fees < list[j].Fees })
		pick, label = list[0], "is the cheapest"
	default:
		return TurnResponse{Reply: replyCompareWhat, Intent: IntentCompare}
	}

	return TurnResponse{
		Reply:  fmt.Sprintf("Among the doctors shown, %s %s at $%.0f.", pick.Name, label, pick.Fees),
		Intent: IntentCompare,
	}
}

func (e *Engine) handlePaginate(ctx context.Context, state *SessionState) (TurnResponse, error) {
	if state.ActiveSpecialty == "" {
		return TurnResponse{Reply: replyNoContext, Intent: IntentPaginate}, nil
	}

	nextPage := state.Page + 1
	res, err := e.query(ctx, []string{state.ActiveSpecialty}, state.Filters, nextPage, state.PageSize)
	if err != nil {
		return TurnResponse{}, err
	}
	if len(res.Clinicians) == 0 {
		return TurnResponse{Reply: replyNoMore, Intent: IntentPaginate}, nil
	}

	state.Page = nextPage
	state.LastResults = res.Clinicians
	return TurnResponse{
		Reply:      replyMorePage,
		Intent:     IntentPaginate,
		Clinicians: res.Clinicians,
	}, nil
}

func (e *Engine) handleNameLookup(ctx context.Context, state *SessionState, d Decision) (TurnResponse, error) {
	state.Filters.Merge(d.Filters)

	res, err := e.directory.FindByName(ctx, d.NameQuery, directory.Params{
		Gender:              state.Filters.Gender,
		Price:               state.Filters.Price,
		ExperienceMin:       state.Filters.ExperienceMin,
		WantMostExperienced: state.Filters.WantMostExperienced,
		Page:                1,
		PageSize:            state.PageSize,
	})
	if err != nil {
		return TurnResponse{}, fmt.Errorf("triage: name lookup: %w", err)
	}
	if len(res.Clinicians) == 0 {
		return TurnResponse{
			Reply:  fmt.Sprintf("I couldn't find a doctor named %q. Want me to show doctors by specialty instead?", d.NameQuery),
			Intent: IntentNameLookup,
		}, nil
	}

	state.LastResults = res.Clinicians
	state.Page = 1
	return TurnResponse{
		Reply:      fmt.Sprintf("Here's what I found for %q.", d.NameQuery),
		Intent:     IntentNameLookup,
		Clinicians: res.Clinicians,
	}, nil
}

func (e *Engine) query(ctx context.Context, specs []string, f Filters, page, pageSize int) (directory.Result, error) {
	res, err := e.directory.Query(ctx, directory.Params{
		Specialties:         specs,
		Gender:              f.Gender,
		Price:               f.Price,
		ExperienceMin:       f.ExperienceMin,
		WantMostExperienced: f.WantMostExperienced,
		Page:                page,
		PageSize:            pageSize,
	})
	if err != nil {
		return directory.Result{}, fmt.Errorf("triage: directory query: %w", err)
	}
	return res, nil
}

func listReply(specialty string, res directory.Result) string {
	if len(res.Clinicians) == 0 {
		return fmt.Sprintf("I couldn't find available %s doctors matching those filters. Try relaxing a filter?", specialty)
	}
	return fmt.Sprintf("Here are %s doctors that match.", specialty)
}

// humanJoin renders up to three names as natural English.
func humanJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
	}
}

// keyedMutex serializes turns per session key. Entries are reference
// counted and removed once the last holder releases, so the map only ever
// holds keys with a turn in flight.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sessionLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sessionLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
