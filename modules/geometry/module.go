// Package geometry provides the built-in calculation rules for door and frame
// layouts. Lengths are in millimetres.
package geometry

import (
	"fmt"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/zclconf/go-cty/cty"
)

// Parameter keys read by the rules. A definition that references a rule must
// declare these keys.
const (
	KeyLength         = "L"
	KeyWidth          = "W"
	KeyHingeOffset    = "hinge_offset"
	KeyFrameThickness = "frame_thickness"
	KeyLockOffset     = "lock_offset"

	// HingesTemplate is the multi attribute whose instances hinge_position
	// computes.
	HingesTemplate = "hinges"
)

// Module implements the calc.Module interface for this package.
type Module struct{}

// Register registers the rules with the registry.
func (m *Module) Register(r *calc.Registry) {
	r.Register("half", []string{KeyLength}, Half)
	r.Register("hinge_position", []string{KeyLength, KeyHingeOffset}, HingePosition)
	r.Register("frame_inner_width", []string{KeyWidth, KeyFrameThickness}, FrameInnerWidth)
	r.Register("lock_height", []string{KeyLength, KeyLockOffset}, LockHeight)
}

// Half is L / 2.
func Half(snap calc.Snapshot, _ int) (cty.Value, error) {
	l, err := calc.Number(snap, KeyLength)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NumberFloatVal(l / 2), nil
}

// HingePosition spreads the hinges evenly between hinge_offset from the top
// and hinge_offset from the bottom edge. A single hinge sits at mid height.
func HingePosition(snap calc.Snapshot, index int) (cty.Value, error) {
	if index < 0 {
		return cty.NilVal, fmt.Errorf("hinge_position is only valid for instances of %q", HingesTemplate)
	}
	l, err := calc.Number(snap, KeyLength)
	if err != nil {
		return cty.NilVal, err
	}
	offset, err := calc.Number(snap, KeyHingeOffset)
	if err != nil {
		return cty.NilVal, err
	}
	n, ok := snap.Count(HingesTemplate)
	if !ok {
		return cty.NilVal, fmt.Errorf("multi attribute %q is not declared", HingesTemplate)
	}
	if index >= n {
		return cty.NilVal, fmt.Errorf("hinge %d is outside the %d declared hinges", index, n)
	}
	if 2*offset > l {
		return cty.NilVal, fmt.Errorf("hinge offset %g does not fit a %g door", offset, l)
	}
	if n == 1 {
		return cty.NumberFloatVal(l / 2), nil
	}
	step := (l - 2*offset) / float64(n-1)
	return cty.NumberFloatVal(offset + float64(index)*step), nil
}

// FrameInnerWidth is W minus the frame on both sides.
func FrameInnerWidth(snap calc.Snapshot, _ int) (cty.Value, error) {
	w, err := calc.Number(snap, KeyWidth)
	if err != nil {
		return cty.NilVal, err
	}
	t, err := calc.Number(snap, KeyFrameThickness)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NumberFloatVal(w - 2*t), nil
}

// LockHeight is the lock centre measured from the bottom edge: mid height
// shifted by lock_offset.
func LockHeight(snap calc.Snapshot, _ int) (cty.Value, error) {
	l, err := calc.Number(snap, KeyLength)
	if err != nil {
		return cty.NilVal, err
	}
	offset, err := calc.Number(snap, KeyLockOffset)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NumberFloatVal(l/2 + offset), nil
}
