package directory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PriceFilter captures a price preference: a sort direction, a numeric cap,
// or both absent.
type PriceFilter struct {
	Sort   string  `json:"sort,omitempty"` // "", PriceCheapest or PriceExpensive
	Cap    float64 `json:"cap,omitempty"`
	HasCap bool    `json:"has_cap,omitempty"`
}

const (
	PriceCheapest  = "cheapest"
	PriceExpensive = "expensive"
)

// Params describes one clinician query.
type Params struct {
	Specialties         []string
	Gender              string
	Price               PriceFilter
	ExperienceMin       int
	WantMostExperienced bool
	Page                int
	PageSize            int
}

// Result is one page of matches plus the pre-pagination total.
type Result struct {
	Clinicians []Clinician `json:"clinicians"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

const defaultPageSize = 6

// Engine applies deterministic filter, sort and pagination rules on top of a
// ClinicianStore. An empty result stays empty; the engine never widens a query
// to the whole directory.
type Engine struct {
	store ClinicianStore
}

// NewEngine creates a query engine.
func NewEngine(store ClinicianStore) *Engine {
	if store == nil {
		panic("directory: store cannot be nil")
	}
	return &Engine{store: store}
}

// Query fetches clinicians for the specialty set (Emergency Medicine when
// empty), filters by experience and fee cap, sorts, and returns the requested
// page. Total counts the filtered, pre-pagination set.
func (e *Engine) Query(ctx context.Context, p Params) (Result, error) {
	specs := p.Specialties
	if len(specs) == 0 {
		specs = []string{DefaultSpecialty}
	}

	candidates, err := e.store.ListBySpecialties(ctx, specs, p.Gender)
	if err != nil {
		return Result{}, fmt.Errorf("directory: query failed: %w", err)
	}

	filtered := applyFilters(candidates, p)
	sortClinicians(filtered, p)
	return paginate(filtered, p), nil
}

// FindByName matches the supplied name tokens against clinician names with
// word boundaries, loosening to a plain substring match when the strict pass
// finds nothing, then applies the same filter and sort rules as Query.
func (e *Engine) FindByName(ctx context.Context, name string, p Params) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return paginate(nil, p), nil
	}

	loose, err := e.store.SearchByName(ctx, name, p.Gender)
	if err != nil {
		return Result{}, fmt.Errorf("directory: name lookup failed: %w", err)
	}

	strictRe := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	var strict []Clinician
	for _, c := range loose {
		if strictRe.MatchString(c.Name) {
			strict = append(strict, c)
		}
	}
	matches := strict
	if len(matches) == 0 {
		matches = loose
	}

	filtered := applyFilters(matches, p)
	sortClinicians(filtered, p)
	return paginate(filtered, p), nil
}

func applyFilters(in []Clinician, p Params) []Clinician {
	out := make([]Clinician, 0, len(in))
	for _, c := range in {
		if !c.Available {
			continue
		}
		if p.ExperienceMin > 0 && c.ExperienceYears() < p.ExperienceMin {
			continue
		}
		if p.Price.HasCap && c.Fees > p.Price.Cap {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortClinicians(list []Clinician, p Params) {
	switch {
	case p.Price.Sort == PriceCheapest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Fees < list[j].Fees })
	case p.Price.Sort == PriceExpensive:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Fees > list[j].Fees })
	case p.WantMostExperienced:
		sort.SliceStable(list, func(i, j int) bool {
			yi, yj := list[i].ExperienceYears(), list[j].ExperienceYears()
			if yi != yj {
				return yi > yj
			}
			return list[i].Fees < list[j].Fees
		})
	default:
		// Name order keeps pagination stable across turns.
		sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
}

func paginate(list []Clinician, p Params) Result {
	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PageSize
	if size < 1 {
		size = defaultPageSize
	}

	start := (page - 1) * size
	end := start + size
	if start > len(list) {
		start = len(list)
	}
	if end > len(list) {
		end = len(list)
	}

	return Result{
		Clinicians: list[start:end],
		Total:      len(list),
		Page:       page,
		PageSize:   size,
	}
}
