package segment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OrganEntry maps one organ name to its numeric label. The position of an
// entry in the paint-order list is meaningful: organs declared later
// overwrite organs declared earlier wherever their masks overlap.
type OrganEntry struct {
	Name string `yaml:"name"`
	ID   int    `yaml:"id"`
}

// NameEntry maps one numeric label to its canonical display name, used when
// splitting a labeled volume back into per-organ masks.
type NameEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// ComboEntry declares that one main label is displayed as the union of
// several component labels. The component labels are mutually exclusive in
// any assembled volume, so the union is additive.
type ComboEntry struct {
	ID         int   `yaml:"id"`
	Components []int `yaml:"components"`
}

// Tables holds the three organ mapping tables used by the converters.
// Ordering is explicit: PaintOrder is a list, not a map, because its order
// IS the overlap-resolution priority.
type Tables struct {
	// PaintOrder lists organ name to ID mappings in paint priority order
	// (first entry painted first, so lowest priority). Several names may
	// share one ID; these are aliases for the same anatomical structure.
	PaintOrder []OrganEntry `yaml:"paintOrder"`

	// StandardNames maps each label to the canonical name used in split
	// output filenames.
	StandardNames []NameEntry `yaml:"standardNames"`

	// CombinedOrgans lists labels whose split output is the union of
	// several component labels.
	CombinedOrgans []ComboEntry `yaml:"combinedOrgans"`
}

// DefaultTables returns the built-in organ tables. Larger structures come
// first in the paint order so that smaller, more specific structures
// painted later overwrite them on overlap (e.g. Marrow over Bone).
func DefaultTables() *Tables {
	return &Tables{
		PaintOrder: []OrganEntry{
			{"Outline", 10}, {"Body", 10},
			{"Skin", 11}, {"Muscle", 13},
			{"Bone", 46}, {"Skeleton", 46}, {"Marrow", 47},
			{"SCord", 65}, {"SpinalCore", 65}, {"Brain", 18}, {"Eyes", 22},
			{"Lung", 33}, {"Heart", 26}, {"Breast", 19},
			{"Intestine", 44}, {"Liver", 32}, {"Kidney", 28}, {"Stomach", 67},
			{"ParotidGland", 43},
			{"Bladder", 15}, {"Ovary", 86}, {"Spleen", 66}, {"Thyroid", 70},
			{"Pancrease", 38}, {"GallBladder", 24},
		},
		StandardNames: []NameEntry{
			{10, "Body"}, {11, "Skin"}, {13, "Muscle"}, {15, "Bladder"}, {18, "Brain"},
			{19, "Breast"}, {21, "Esophagus"}, {22, "Eye"}, {23, "Len"}, {24, "GallBladder"},
			{26, "Heart"}, {28, "Kidney"}, {29, "Larynx"}, {32, "Liver"}, {33, "Lung"},
			{37, "OralCavity"}, {38, "Pancreas"}, {42, "Pituitary"}, {43, "Parotid"}, {44, "Intestine"},
			{46, "Bone"}, {47, "Marrow"}, {63, "TMJ"}, {65, "SpinalCord"}, {66, "Spleen"},
			{67, "Stomach"}, {70, "Thyroid"}, {73, "Trachea"}, {75, "Cochlea"}, {76, "BrainStem"},
			{77, "TemporalLobe"}, {78, "OpticChiasm"}, {79, "OpticalNerve"}, {80, "Rectum"}, {81, "Sigmoid"},
			{82, "Duodenum"}, {86, "Ovary"},
		},
		CombinedOrgans: []ComboEntry{
			{10, []int{10, 11}},
			{22, []int{22, 23}},
			{18, []int{18, 76, 77}},
			{46, []int{46, 47}},
		},
	}
}

// LoadTables loads organ tables from a YAML file. An empty path or a
// missing file yields the built-in defaults.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultTables(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %v", err)
	}

	t := &Tables{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("failed to parse tables file %s: %v", path, err)}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveTables writes the tables to a YAML file, preserving order.
func SaveTables(t *Tables, path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tables: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tables file: %v", err)
	}
	return nil
}

// Validate checks the tables for internal consistency. Duplicate names in
// the paint order would make file matching ambiguous; duplicate IDs are
// fine (aliases).
func (t *Tables) Validate() error {
	if len(t.PaintOrder) == 0 {
		return &ConfigurationError{Reason: "paint order is empty"}
	}
	seen := make(map[string]bool, len(t.PaintOrder))
	for _, e := range t.PaintOrder {
		if e.Name == "" || e.ID <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("invalid paint order entry %q: %d", e.Name, e.ID)}
		}
		if seen[e.Name] {
			return &ConfigurationError{Reason: fmt.Sprintf("duplicate organ name %q in paint order", e.Name)}
		}
		seen[e.Name] = true
	}
	names := make(map[int]bool, len(t.StandardNames))
	for _, e := range t.StandardNames {
		if names[e.ID] {
			return &ConfigurationError{Reason: fmt.Sprintf("duplicate label %d in standard names", e.ID)}
		}
		names[e.ID] = true
	}
	for _, c := range t.CombinedOrgans {
		if len(c.Components) == 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("combined organ %d has no components", c.ID)}
		}
	}
	return nil
}

// IDByName returns the label painted for the given organ name.
func (t *Tables) IDByName(name string) (int, bool) {
	for _, e := range t.PaintOrder {
		if e.Name == name {
			return e.ID, true
		}
	}
	return 0, false
}

// NameByID returns the canonical display name for a label.
func (t *Tables) NameByID(id int) (string, bool) {
	for _, e := range t.StandardNames {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}

// ComponentsFor returns the component labels of a combined organ, or nil
// when the label is not combined.
func (t *Tables) ComponentsFor(id int) []int {
	for _, c := range t.CombinedOrgans {
		if c.ID == id {
			return c.Components
		}
	}
	return nil
}
