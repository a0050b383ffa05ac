// Package schema declares the fixed screens of the dashboard: which upload
// slots exist, which filter fields each record family exposes, and which
// columns drive its derived fields and aggregates. The definitions live in
// an embedded YAML file so the column contract is readable in one place.
package schema

import (
	_ "embed"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nelhattab/electratrack/internal/engine"
)

//go:embed families.yaml
var familiesYAML []byte

// FamilyKind distinguishes contract screens from the substation screen.
type FamilyKind string

const (
	KindContracts   FamilyKind = "contracts"
	KindSubstations FamilyKind = "substations"
)

// FilterField is one filter input of a screen: the query parameter it is
// bound to, the column it matches against, and how it matches.
type FilterField struct {
	Param  string `yaml:"param"`
	Column string `yaml:"column"`
	Match  string `yaml:"match"`
}

// Family describes one upload slot and its screens.
type Family struct {
	Slot    string        `yaml:"slot"`
	Label   string        `yaml:"label"`
	Kind    FamilyKind    `yaml:"kind"`
	Filters []FilterField `yaml:"filters"`

	TerminationColumn string `yaml:"termination_column"`
	StartColumn       string `yaml:"start_column"`
	EndColumn         string `yaml:"end_column"`
	SortColumn        string `yaml:"sort_column"`

	CategoryColumn string   `yaml:"category_column"`
	CommuneColumn  string   `yaml:"commune_column"`
	RegionColumn   string   `yaml:"region_column"`
	ValueColumn    string   `yaml:"value_column"`
	PivotColumns   []string `yaml:"pivot_columns"`
	AlertColumns   []string `yaml:"alert_columns"`
}

type familiesFile struct {
	Families []Family `yaml:"families"`
}

var (
	loadOnce sync.Once
	loaded   []Family
	loadErr  error
)

// Families returns all declared families in definition order.
func Families() ([]Family, error) {
	loadOnce.Do(func() {
		var f familiesFile
		if err := yaml.Unmarshal(familiesYAML, &f); err != nil {
			loadErr = eris.Wrap(err, "schema: parse families")
			return
		}
		if len(f.Families) == 0 {
			loadErr = eris.New("schema: no families declared")
			return
		}
		loaded = f.Families
	})
	return loaded, loadErr
}

// FamilyFor returns the family owning the given slot key.
func FamilyFor(slot string) (Family, error) {
	fams, err := Families()
	if err != nil {
		return Family{}, err
	}
	for _, f := range fams {
		if f.Slot == slot {
			return f, nil
		}
	}
	return Family{}, eris.Errorf("schema: unknown slot %q", slot)
}

// Slots returns the fixed slot keys in definition order.
func Slots() []string {
	fams, err := Families()
	if err != nil {
		return nil
	}
	keys := make([]string, len(fams))
	for i, f := range fams {
		keys[i] = f.Slot
	}
	return keys
}

// Spec builds the engine filter spec from user-supplied values keyed by
// filter param name. Missing params become inactive fields, so a partial
// map is fine.
func (f Family) Spec(values map[string]string) engine.FilterSpec {
	var spec engine.FilterSpec
	for _, field := range f.Filters {
		kind := engine.MatchContains
		if field.Match == "exact" {
			kind = engine.MatchExact
		}
		spec = spec.Add(field.Column, kind, values[field.Param])
	}
	return spec
}

// AllowsPivot reports whether both columns belong to the family's declared
// pivot axes.
func (f Family) AllowsPivot(rowCol, colCol string) bool {
	allowed := func(c string) bool {
		for _, p := range f.PivotColumns {
			if p == c {
				return true
			}
		}
		return false
	}
	return allowed(rowCol) && allowed(colCol)
}
