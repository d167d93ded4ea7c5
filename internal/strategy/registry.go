package strategy

import (
	"fmt"
	"sort"
)

// Info describes a registered solver variant for reporting and CLI/API
// listings.
type Info struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

type entry struct {
	label string
	make  func() BuySolver
}

// registry maps variant tags to labeled constructors, so callers select
// strategies by name rather than by function identity.
// ⭐ SSOT: strategy dispatch happens only through this registry
var registry = map[string]entry{}

// Register adds a solver variant under a tag. Registering a duplicate tag
// panics; it is a wiring bug, not a runtime condition.
func Register(tag, label string, make func() BuySolver) {
	if _, exists := registry[tag]; exists {
		panic(fmt.Sprintf("strategy %q registered twice", tag))
	}
	registry[tag] = entry{label: label, make: make}
}

// New constructs the solver registered under tag.
func New(tag string) (BuySolver, error) {
	e, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", tag, tags())
	}
	return e.make(), nil
}

// Label returns the human-readable label for a tag, or the tag itself when
// unknown.
func Label(tag string) string {
	if e, ok := registry[tag]; ok {
		return e.label
	}
	return tag
}

// List returns every registered variant, sorted by tag.
func List() []Info {
	infos := make([]Info, 0, len(registry))
	for tag, e := range registry {
		infos = append(infos, Info{Tag: tag, Label: e.label})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Tag < infos[j].Tag })
	return infos
}

func tags() []string {
	out := make([]string, 0, len(registry))
	for tag := range registry {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register("topn", "Unfiltered top-N", func() BuySolver { return TopN{} })
	Register("single", "Single loan per month", func() BuySolver { return SingleLoan{} })
	Register("zerobuy", "Zero-buy control", func() BuySolver { return ZeroBuy{} })
	Register("filtered", "Established-borrower filter", func() BuySolver { return DefaultFiltered() })
}
