package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes the top level of any definition file.
type fileRoot struct {
	Tabs   []*tabBlock `hcl:"tab,block"`
	Remain hcl.Body    `hcl:",remain"`
}

type tabBlock struct {
	ID       string            `hcl:"id,label"`
	Name     map[string]string `hcl:"name,optional"`
	Sections []*sectionBlock   `hcl:"section,block"`
	Preview  *previewBlock     `hcl:"preview,block"`
}

type sectionBlock struct {
	ID          string            `hcl:"id,label"`
	Title       map[string]string `hcl:"title,optional"`
	Position    string            `hcl:"position,optional"`
	GroupedAuto *groupedAutoBlock `hcl:"grouped_auto,block"`
	Parameters  []*parameterBlock `hcl:"parameter,block"`
}

type groupedAutoBlock struct {
	Label         map[string]string `hcl:"label,optional"`
	Controlled    []string          `hcl:"controlled"`
	DefaultActive bool              `hcl:"default_active,optional"`
}

type parameterBlock struct {
	Key         string            `hcl:"key,label"`
	Kind        string            `hcl:"kind"`
	DisplayName map[string]string `hcl:"display_name,optional"`
	Category    string            `hcl:"category,optional"`
	ImagePath   string            `hcl:"image,optional"`

	Min     *float64  `hcl:"min,optional"`
	Max     *float64  `hcl:"max,optional"`
	Default cty.Value `hcl:"default,optional"`
	Options []string  `hcl:"options,optional"`

	Auto          bool `hcl:"auto,optional"`
	DefaultAuto   bool `hcl:"default_auto,optional"`
	Active        bool `hcl:"active,optional"`
	DefaultActive bool `hcl:"default_active,optional"`

	Calc      string   `hcl:"calc,optional"`
	Formula   string   `hcl:"formula,optional"`
	DependsOn []string `hcl:"depends_on,optional"`

	CountMin     int             `hcl:"count_min,optional"`
	CountMax     int             `hcl:"count_max,optional"`
	CountDefault int             `hcl:"count_default,optional"`
	Template     *parameterBlock `hcl:"template,block"`
}

type previewBlock struct {
	Shapes []*shapeBlock `hcl:"shape,block"`
}

// Geometry attributes accept a number or a formula string.
type shapeBlock struct {
	ID          string    `hcl:"id,label"`
	Type        string    `hcl:"type"`
	X           cty.Value `hcl:"x,optional"`
	Y           cty.Value `hcl:"y,optional"`
	Width       cty.Value `hcl:"width,optional"`
	Height      cty.Value `hcl:"height,optional"`
	Color       string    `hcl:"color,optional"`
	BorderColor string    `hcl:"border_color,optional"`
	BorderWidth int       `hcl:"border_width,optional"`
}
