package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a configurator
// definition. Each tab becomes one independent configuration context.
type Model struct {
	Tabs []*Tab `validate:"dive"`
}

// Tab finds a tab by id.
func (m *Model) Tab(id string) (*Tab, bool) {
	for _, t := range m.Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Tab is the format-agnostic representation of a `tab` block: one wizard
// instance with its parameter sections and preview shapes.
type Tab struct {
	ID       string            `validate:"required"`
	Name     map[string]string // language -> text, passed through untouched
	Sections []*Section        `validate:"dive"`
	Preview  []*Shape          `validate:"dive"`
}

// Section groups parameters for display and may carry a grouped auto toggle.
type Section struct {
	ID          string `validate:"required"`
	Title       map[string]string
	Position    string       `validate:"omitempty,oneof=left right"`
	Parameters  []*Parameter `validate:"dive"`
	GroupedAuto *GroupedAuto
}

// GroupedAuto is a section-level toggle that drives the auto flag of several
// parameters at once.
type GroupedAuto struct {
	Label         map[string]string
	Controlled    []string `validate:"min=1"`
	DefaultActive bool
}

// Parameter is the format-agnostic representation of a `parameter` block.
type Parameter struct {
	Key         string `validate:"required"`
	DisplayName map[string]string
	Kind        string `validate:"required,oneof=float int string boolean enum multi"`
	Category    string
	ImagePath   string

	Min     *float64
	Max     *float64
	Default *cty.Value
	Options []string

	// Auto declares the auto capability; DefaultAuto is its initial state.
	Auto        bool
	DefaultAuto bool
	// Active declares the active capability; DefaultActive is its initial state.
	Active        bool
	DefaultActive bool

	// Calc names a registered rule; Formula is an HCL expression. At most one is set.
	Calc    string
	Formula string
	// DependsOn is nil when not declared, in which case the loader extracts it.
	DependsOn []string

	// Multi-attribute fields.
	Template     *Parameter
	CountMin     int `validate:"gte=0"`
	CountMax     int `validate:"gte=0"`
	CountDefault int `validate:"gte=0"`
}

// Shape is a preview primitive whose geometry is given as formulas or numbers.
type Shape struct {
	ID          string `validate:"required"`
	Type        string `validate:"required,oneof=rectangle circle line"`
	X           string
	Y           string
	Width       string
	Height      string
	Color       string `validate:"omitempty,hexcolor"`
	BorderColor string `validate:"omitempty,hexcolor"`
	BorderWidth int    `validate:"gte=0"`
}
