package session

import (
	"fmt"

	"github.com/specialistvlad/paramgrid/internal/calc"
)

// ShapeGeometry is a preview shape evaluated against the current values.
// Geometry fields that are not declared stay zero.
type ShapeGeometry struct {
	ID          string
	Type        string
	Color       string
	BorderColor string
	BorderWidth int

	X, Y, Width, Height float64
	// Err is set when a geometry formula could not be evaluated; the shape
	// should not be drawn.
	Err error
}

// Preview evaluates the geometry of every preview shape of the tab.
func (s *Session) Preview() []ShapeGeometry {
	snap := s.store.Snapshot()
	shapes := s.schema.Shapes()
	out := make([]ShapeGeometry, 0, len(shapes))
	for _, shape := range shapes {
		g := ShapeGeometry{
			ID:          shape.ID,
			Type:        shape.Type,
			Color:       shape.Color,
			BorderColor: shape.BorderColor,
			BorderWidth: shape.BorderWidth,
		}
		fields := map[string]*float64{"x": &g.X, "y": &g.Y, "width": &g.Width, "height": &g.Height}
		for _, name := range []string{"x", "y", "width", "height"} {
			f, ok := shape.Geometry[name]
			if !ok {
				continue
			}
			v, err := f.Eval(snap, calc.NoIndex)
			if err == nil {
				*fields[name], err = calc.AsNumber(v)
			}
			if err != nil {
				g.Err = fmt.Errorf("shape %q %s: %w", shape.ID, name, err)
				break
			}
		}
		out = append(out, g)
	}
	return out
}
