package calc

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// NoIndex is the index passed to rules of parameters outside any template.
const NoIndex = -1

// Snapshot is a read-only view of the parameter values of one context.
type Snapshot interface {
	// Value returns the current value of key and whether the key exists.
	Value(key string) (cty.Value, bool)
	// Count returns the current instance count of a multi-attribute template.
	Count(template string) (int, bool)
}

// MapSnapshot is a Snapshot backed by plain maps, used by tests and by
// callers evaluating rules outside a live store.
type MapSnapshot struct {
	Values map[string]cty.Value
	Counts map[string]int
}

func (m MapSnapshot) Value(key string) (cty.Value, bool) {
	v, ok := m.Values[key]
	return v, ok
}

func (m MapSnapshot) Count(template string) (int, bool) {
	c, ok := m.Counts[template]
	return c, ok
}

// Number reads key as a float64.
func Number(snap Snapshot, key string) (float64, error) {
	v, err := typed(snap, key, cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// AsNumber converts a value produced by a rule or formula to a float64.
func AsNumber(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return 0, fmt.Errorf("value is not set")
	}
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := n.AsBigFloat().Float64()
	return f, nil
}

// Int reads key as an int, failing when the number has a fractional part.
func Int(snap Snapshot, key string) (int, error) {
	v, err := typed(snap, key, cty.Number)
	if err != nil {
		return 0, err
	}
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return 0, fmt.Errorf("parameter %q is not a whole number", key)
	}
	i, acc := bf.Int64()
	if acc != big.Exact {
		return 0, fmt.Errorf("parameter %q is out of integer range", key)
	}
	return int(i), nil
}

// String reads key as a string.
func String(snap Snapshot, key string) (string, error) {
	v, err := typed(snap, key, cty.String)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// Bool reads key as a bool.
func Bool(snap Snapshot, key string) (bool, error) {
	v, err := typed(snap, key, cty.Bool)
	if err != nil {
		return false, err
	}
	return v.True(), nil
}

func typed(snap Snapshot, key string, ty cty.Type) (cty.Value, error) {
	v, ok := snap.Value(key)
	if !ok {
		return cty.NilVal, fmt.Errorf("parameter %q is not available", key)
	}
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("parameter %q has no value", key)
	}
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("parameter %q: %w", key, err)
	}
	return converted, nil
}

// CheckFinite rejects infinite numbers, which division by zero produces.
func CheckFinite(v cty.Value) error {
	if v.IsKnown() && !v.IsNull() && v.Type().Equals(cty.Number) && v.AsBigFloat().IsInf() {
		return fmt.Errorf("result is not a finite number")
	}
	return nil
}
