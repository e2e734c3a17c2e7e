package hcl

import (
	"fmt"

	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func translateTab(tb *tabBlock) (*config.Tab, error) {
	tab := &config.Tab{ID: tb.ID, Name: tb.Name}
	for _, sb := range tb.Sections {
		sec := &config.Section{ID: sb.ID, Title: sb.Title, Position: sb.Position}
		if g := sb.GroupedAuto; g != nil {
			sec.GroupedAuto = &config.GroupedAuto{Label: g.Label, Controlled: g.Controlled, DefaultActive: g.DefaultActive}
		}
		for _, pb := range sb.Parameters {
			sec.Parameters = append(sec.Parameters, translateParameter(pb))
		}
		tab.Sections = append(tab.Sections, sec)
	}
	if tb.Preview != nil {
		for _, sh := range tb.Preview.Shapes {
			shape, err := translateShape(sh)
			if err != nil {
				return nil, fmt.Errorf("tab %q: %w", tb.ID, err)
			}
			tab.Preview = append(tab.Preview, shape)
		}
	}
	return tab, nil
}

func translateParameter(pb *parameterBlock) *config.Parameter {
	p := &config.Parameter{
		Key:           pb.Key,
		DisplayName:   pb.DisplayName,
		Kind:          pb.Kind,
		Category:      pb.Category,
		ImagePath:     pb.ImagePath,
		Min:           pb.Min,
		Max:           pb.Max,
		Options:       pb.Options,
		Auto:          pb.Auto,
		DefaultAuto:   pb.DefaultAuto,
		Active:        pb.Active,
		DefaultActive: pb.DefaultActive,
		Calc:          pb.Calc,
		Formula:       pb.Formula,
		DependsOn:     pb.DependsOn,
		CountMin:      pb.CountMin,
		CountMax:      pb.CountMax,
		CountDefault:  pb.CountDefault,
	}
	// An absent attribute decodes to a null value.
	if !pb.Default.IsNull() {
		v := pb.Default
		p.Default = &v
	}
	if pb.Template != nil {
		p.Template = translateParameter(pb.Template)
	}
	return p
}

func translateShape(sb *shapeBlock) (*config.Shape, error) {
	s := &config.Shape{
		ID:          sb.ID,
		Type:        sb.Type,
		Color:       sb.Color,
		BorderColor: sb.BorderColor,
		BorderWidth: sb.BorderWidth,
	}
	fields := []struct {
		name string
		val  cty.Value
		dst  *string
	}{
		{"x", sb.X, &s.X},
		{"y", sb.Y, &s.Y},
		{"width", sb.Width, &s.Width},
		{"height", sb.Height, &s.Height},
	}
	for _, f := range fields {
		text, err := geometryText(f.val)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %s: %w", sb.ID, f.name, err)
		}
		*f.dst = text
	}
	return s, nil
}

// geometryText turns a number or formula string into formula source.
func geometryText(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	if !v.IsWhollyKnown() {
		return "", fmt.Errorf("value is not known")
	}
	switch {
	case v.Type().Equals(cty.Number):
		return v.AsBigFloat().Text('f', -1), nil
	case v.Type().Equals(cty.String):
		return v.AsString(), nil
	}
	return "", fmt.Errorf("expected a number or a formula string, got %s", v.Type().FriendlyName())
}
