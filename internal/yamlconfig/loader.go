// Package yamlconfig reads configurator definitions written in YAML and
// translates them into the format-agnostic config.Model.
//
// A file holds a `tabs` list. Field names follow the HCL format: a tab has
// `id`, `name`, `sections` and `preview`; a parameter has `key`, `kind`,
// `min`, `max`, `default`, `formula`, `template` and so on.
package yamlconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

type fileRoot struct {
	Tabs []*tabDoc `yaml:"tabs"`
}

type tabDoc struct {
	ID       string            `yaml:"id"`
	Name     map[string]string `yaml:"name"`
	Sections []*sectionDoc     `yaml:"sections"`
	Preview  []*shapeDoc       `yaml:"preview"`
}

type sectionDoc struct {
	ID          string            `yaml:"id"`
	Title       map[string]string `yaml:"title"`
	Position    string            `yaml:"position"`
	GroupedAuto *groupedAutoDoc   `yaml:"grouped_auto"`
	Parameters  []*parameterDoc   `yaml:"parameters"`
}

type groupedAutoDoc struct {
	Label         map[string]string `yaml:"label"`
	Controlled    []string          `yaml:"controlled"`
	DefaultActive bool              `yaml:"default_active"`
}

type parameterDoc struct {
	Key         string            `yaml:"key"`
	Kind        string            `yaml:"kind"`
	DisplayName map[string]string `yaml:"display_name"`
	Category    string            `yaml:"category"`
	ImagePath   string            `yaml:"image"`

	Min     *float64  `yaml:"min"`
	Max     *float64  `yaml:"max"`
	Default yaml.Node `yaml:"default"`
	Options []string  `yaml:"options"`

	Auto          bool `yaml:"auto"`
	DefaultAuto   bool `yaml:"default_auto"`
	Active        bool `yaml:"active"`
	DefaultActive bool `yaml:"default_active"`

	Calc      string   `yaml:"calc"`
	Formula   string   `yaml:"formula"`
	DependsOn []string `yaml:"depends_on"`

	CountMin     int           `yaml:"count_min"`
	CountMax     int           `yaml:"count_max"`
	CountDefault int           `yaml:"count_default"`
	Template     *parameterDoc `yaml:"template"`
}

type shapeDoc struct {
	ID          string    `yaml:"id"`
	Type        string    `yaml:"type"`
	X           yaml.Node `yaml:"x"`
	Y           yaml.Node `yaml:"y"`
	Width       yaml.Node `yaml:"width"`
	Height      yaml.Node `yaml:"height"`
	Color       string    `yaml:"color"`
	BorderColor string    `yaml:"border_color"`
	BorderWidth int       `yaml:"border_width"`
}

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .yaml and .yml file found under paths into one
// validated model. Missing paths are skipped.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(paths, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered YAML files.", "count", len(files))

	model := &config.Model{}
	seen := make(map[string]string)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		root, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
		}
		for _, td := range root.Tabs {
			if td == nil {
				continue
			}
			if prev, dup := seen[td.ID]; dup {
				return nil, fmt.Errorf("tab %q is defined in both %s and %s", td.ID, prev, file)
			}
			seen[td.ID] = file
			tab, err := translateTab(td)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Tabs = append(model.Tabs, tab)
		}
	}

	if err := config.Validate(model); err != nil {
		return nil, err
	}
	logger.Debug("YAML loading complete.", "tabs", len(model.Tabs))
	return model, nil
}

// decode rejects unknown fields so that typos do not pass silently.
func decode(data []byte) (*fileRoot, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var root fileRoot
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &root, nil
}

func translateTab(td *tabDoc) (*config.Tab, error) {
	tab := &config.Tab{ID: td.ID, Name: td.Name}
	for _, sd := range td.Sections {
		if sd == nil {
			continue
		}
		sec := &config.Section{ID: sd.ID, Title: sd.Title, Position: sd.Position}
		if g := sd.GroupedAuto; g != nil {
			sec.GroupedAuto = &config.GroupedAuto{Label: g.Label, Controlled: g.Controlled, DefaultActive: g.DefaultActive}
		}
		for _, pd := range sd.Parameters {
			if pd == nil {
				continue
			}
			p, err := translateParameter(pd)
			if err != nil {
				return nil, fmt.Errorf("tab %q: %w", td.ID, err)
			}
			sec.Parameters = append(sec.Parameters, p)
		}
		tab.Sections = append(tab.Sections, sec)
	}
	for _, sd := range td.Preview {
		if sd == nil {
			continue
		}
		shape, err := translateShape(sd)
		if err != nil {
			return nil, fmt.Errorf("tab %q: %w", td.ID, err)
		}
		tab.Preview = append(tab.Preview, shape)
	}
	return tab, nil
}

func translateParameter(pd *parameterDoc) (*config.Parameter, error) {
	p := &config.Parameter{
		Key:           pd.Key,
		DisplayName:   pd.DisplayName,
		Kind:          pd.Kind,
		Category:      pd.Category,
		ImagePath:     pd.ImagePath,
		Min:           pd.Min,
		Max:           pd.Max,
		Options:       pd.Options,
		Auto:          pd.Auto,
		DefaultAuto:   pd.DefaultAuto,
		Active:        pd.Active,
		DefaultActive: pd.DefaultActive,
		Calc:          pd.Calc,
		Formula:       pd.Formula,
		DependsOn:     pd.DependsOn,
		CountMin:      pd.CountMin,
		CountMax:      pd.CountMax,
		CountDefault:  pd.CountDefault,
	}
	def, err := scalarValue(&pd.Default)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: default: %w", pd.Key, err)
	}
	if !def.IsNull() {
		p.Default = &def
	}
	if pd.Template != nil {
		tpl, err := translateParameter(pd.Template)
		if err != nil {
			return nil, err
		}
		p.Template = tpl
	}
	return p, nil
}

func translateShape(sd *shapeDoc) (*config.Shape, error) {
	s := &config.Shape{
		ID:          sd.ID,
		Type:        sd.Type,
		Color:       sd.Color,
		BorderColor: sd.BorderColor,
		BorderWidth: sd.BorderWidth,
	}
	fields := []struct {
		name string
		node *yaml.Node
		dst  *string
	}{
		{"x", &sd.X, &s.X},
		{"y", &sd.Y, &s.Y},
		{"width", &sd.Width, &s.Width},
		{"height", &sd.Height, &s.Height},
	}
	for _, f := range fields {
		v, err := scalarValue(f.node)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %s: %w", sd.ID, f.name, err)
		}
		switch {
		case v.IsNull():
		case v.Type() == cty.Number, v.Type() == cty.String:
			*f.dst = f.node.Value
		default:
			return nil, fmt.Errorf("shape %q: %s: expected a number or a formula string", sd.ID, f.name)
		}
	}
	return s, nil
}

// scalarValue converts a YAML scalar to a cty value. An absent node or an
// explicit null yields a null value.
func scalarValue(n *yaml.Node) (cty.Value, error) {
	if n.Kind == 0 {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	if n.Kind != yaml.ScalarNode {
		return cty.NilVal, fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return cty.NullVal(cty.DynamicPseudoType), nil
	case "!!int", "!!float":
		v, err := cty.ParseNumberVal(n.Value)
		if err != nil {
			return cty.NilVal, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return cty.NilVal, err
		}
		return cty.BoolVal(b), nil
	case "!!str":
		return cty.StringVal(n.Value), nil
	}
	return cty.NilVal, fmt.Errorf("line %d: unsupported value %s", n.Line, n.ShortTag())
}
