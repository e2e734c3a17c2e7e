// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the closed set of parameter kinds and the per-kind type
// specifications attached to descriptors.
package schema

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Kind enumerates the parameter kinds.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindString
	KindBoolean
	KindEnum
	KindMulti
)

var kindNames = map[Kind]string{
	KindFloat:   "float",
	KindInt:     "int",
	KindString:  "string",
	KindBoolean: "boolean",
	KindEnum:    "enum",
	KindMulti:   "multi",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts the textual kind used in configuration. "bool" is
// accepted as an alias of "boolean".
func ParseKind(s string) (Kind, error) {
	if s == "bool" {
		return KindBoolean, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Type is the kind-specific part of a descriptor. The set of implementations
// is closed: NumberType, StringType, BoolType, EnumType and MultiType.
type Type interface {
	Kind() Kind
	// Coerce converts v to the type's value representation, rejecting values
	// the kind cannot hold.
	Coerce(v cty.Value) (cty.Value, error)
	sealed()
}

// NumberType covers the float and int kinds.
type NumberType struct {
	Integer bool
	Min     *float64
	Max     *float64
}

func (t *NumberType) Kind() Kind {
	if t.Integer {
		return KindInt
	}
	return KindFloat
}

func (t *NumberType) Coerce(v cty.Value) (cty.Value, error) {
	n, err := convertKnown(v, cty.Number)
	if err != nil {
		return cty.NilVal, err
	}
	if t.Integer && !n.AsBigFloat().IsInt() {
		return cty.NilVal, fmt.Errorf("%s is not a whole number", n.AsBigFloat().Text('g', -1))
	}
	return n, nil
}

// InBounds reports whether the number v lies within the declared bounds.
func (t *NumberType) InBounds(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() || !v.Type().Equals(cty.Number) {
		return true
	}
	bf := v.AsBigFloat()
	if t.Min != nil && bf.Cmp(big.NewFloat(*t.Min)) < 0 {
		return false
	}
	if t.Max != nil && bf.Cmp(big.NewFloat(*t.Max)) > 0 {
		return false
	}
	return true
}

func (t *NumberType) sealed() {}

// StringType is a free-form string.
type StringType struct{}

func (t *StringType) Kind() Kind { return KindString }

func (t *StringType) Coerce(v cty.Value) (cty.Value, error) { return convertKnown(v, cty.String) }

func (t *StringType) sealed() {}

// BoolType is a boolean flag.
type BoolType struct{}

func (t *BoolType) Kind() Kind { return KindBoolean }

func (t *BoolType) Coerce(v cty.Value) (cty.Value, error) { return convertKnown(v, cty.Bool) }

func (t *BoolType) sealed() {}

// EnumType is a string restricted to a set of options.
type EnumType struct {
	Options []string
}

func (t *EnumType) Kind() Kind { return KindEnum }

func (t *EnumType) Coerce(v cty.Value) (cty.Value, error) {
	s, err := convertKnown(v, cty.String)
	if err != nil {
		return cty.NilVal, err
	}
	if !slices.Contains(t.Options, s.AsString()) {
		return cty.NilVal, fmt.Errorf("%q is not one of %v", s.AsString(), t.Options)
	}
	return s, nil
}

func (t *EnumType) sealed() {}

// MultiType is a multi-attribute: a template expanded into Count instances.
type MultiType struct {
	Template     *Descriptor
	CountMin     int
	CountMax     int
	CountDefault int
}

func (t *MultiType) Kind() Kind { return KindMulti }

// Coerce accepts an instance count for the multi attribute.
func (t *MultiType) Coerce(v cty.Value) (cty.Value, error) {
	n, err := convertKnown(v, cty.Number)
	if err != nil {
		return cty.NilVal, err
	}
	if !n.AsBigFloat().IsInt() {
		return cty.NilVal, fmt.Errorf("count must be a whole number")
	}
	return n, nil
}

// ValidCount reports whether count lies within the template's count bounds.
func (t *MultiType) ValidCount(count int) bool {
	return count >= t.CountMin && count <= t.CountMax
}

func (t *MultiType) sealed() {}

func convertKnown(v cty.Value, ty cty.Type) (cty.Value, error) {
	if v.IsNull() {
		return cty.NilVal, fmt.Errorf("value is null")
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("value is unknown")
	}
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot use %s as %s: %w", v.Type().FriendlyName(), ty.FriendlyName(), err)
	}
	return converted, nil
}
