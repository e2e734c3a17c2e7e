package calc

import (
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/paramgrid/internal/paramid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// FormulaRuleID is the rule id reported for formula-based rules.
const FormulaRuleID = "formula"

// Roots of the variables a formula may reference.
const (
	paramRoot = "param"
	countRoot = "count"
	indexVar  = "index"
)

// formulaFunctions is the function table available to every formula.
var formulaFunctions = map[string]function.Function{
	"abs":   stdlib.AbsoluteFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"max":   stdlib.MaxFunc,
	"min":   stdlib.MinFunc,
	"pow":   stdlib.PowFunc,
	"round": roundFunc,
}

var roundFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "num", Type: cty.Number}},
	Type:   function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		f, _ := args[0].AsBigFloat().Float64()
		return cty.NumberFloatVal(math.Round(f)), nil
	},
})

// Formula is a rule compiled from an HCL expression such as
// `param.door_height / 2`.
type Formula struct {
	Source string
	Index  int

	expr   hcl.Expression
	reads  []string
	counts []string
}

// ParseFormula compiles src for the given instance index. Placeholders in the
// source are substituted with the index before parsing, so a template formula
// `param.hinge_#_offset * 2` reads `hinge_3_offset` for instance 3.
func ParseFormula(src string, index int) (*Formula, error) {
	text := src
	if index != NoIndex {
		text = paramid.Substitute(src, index)
	} else if paramid.HasPlaceholder(src) {
		return nil, fmt.Errorf("formula %q uses the %q placeholder outside a template", src, paramid.Placeholder)
	}
	expr, diags := hclsyntax.ParseExpression([]byte(text), "formula", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid formula %q: %s", src, diags.Error())
	}

	reads := make(map[string]struct{})
	counts := make(map[string]struct{})
	for _, traversal := range expr.Variables() {
		root := traversal.RootName()
		switch root {
		case indexVar:
			if index == NoIndex {
				return nil, fmt.Errorf("formula %q references index outside a template", src)
			}
		case paramRoot, countRoot:
			name, ok := attrName(traversal)
			if !ok {
				return nil, fmt.Errorf("formula %q: %s must be followed by an attribute name", src, root)
			}
			if root == paramRoot {
				reads[name] = struct{}{}
			} else {
				counts[name] = struct{}{}
			}
		default:
			return nil, fmt.Errorf("formula %q references unknown variable %q", src, root)
		}
	}
	if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
		if err := checkFunctions(syntaxExpr); err != nil {
			return nil, fmt.Errorf("formula %q: %w", src, err)
		}
	}

	return &Formula{
		Source: src,
		Index:  index,
		expr:   expr,
		reads:  sortedKeys(reads),
		counts: sortedKeys(counts),
	}, nil
}

// Reads returns the parameter keys referenced through `param.<key>`.
func (f *Formula) Reads() []string { return append([]string(nil), f.reads...) }

// Counts returns the template names referenced through `count.<name>`.
func (f *Formula) Counts() []string { return append([]string(nil), f.counts...) }

// Rule wraps the formula as a Rule.
func (f *Formula) Rule() *Rule {
	return &Rule{ID: FormulaRuleID, Reads: f.Reads(), Fn: f.Eval}
}

// Eval evaluates the formula against snap. The index argument is ignored in
// favour of the one the formula was compiled for.
func (f *Formula) Eval(snap Snapshot, _ int) (cty.Value, error) {
	params := make(map[string]cty.Value, len(f.reads))
	for _, key := range f.reads {
		v, ok := snap.Value(key)
		if !ok {
			return cty.NilVal, fmt.Errorf("parameter %q is not available", key)
		}
		params[key] = v
	}
	counts := make(map[string]cty.Value, len(f.counts))
	for _, name := range f.counts {
		c, ok := snap.Count(name)
		if !ok {
			return cty.NilVal, fmt.Errorf("template %q is not available", name)
		}
		counts[name] = cty.NumberIntVal(int64(c))
	}

	vars := map[string]cty.Value{
		paramRoot: cty.ObjectVal(params),
		countRoot: cty.ObjectVal(counts),
	}
	if f.Index != NoIndex {
		vars[indexVar] = cty.NumberIntVal(int64(f.Index))
	}
	evalCtx := &hcl.EvalContext{Variables: vars, Functions: formulaFunctions}

	val, diags := f.expr.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("%s", diags.Error())
	}
	if !val.IsWhollyKnown() || val.IsNull() {
		return cty.NilVal, fmt.Errorf("formula %q produced no value", f.Source)
	}
	if err := CheckFinite(val); err != nil {
		return cty.NilVal, fmt.Errorf("formula %q: %w", f.Source, err)
	}
	return val, nil
}

func attrName(traversal hcl.Traversal) (string, bool) {
	if len(traversal) < 2 {
		return "", false
	}
	switch step := traversal[1].(type) {
	case hcl.TraverseAttr:
		return step.Name, true
	case hcl.TraverseIndex:
		if step.Key.Type().Equals(cty.String) && step.Key.IsKnown() && !step.Key.IsNull() {
			return step.Key.AsString(), true
		}
	}
	return "", false
}

// checkFunctions rejects calls to functions outside the formula function table.
func checkFunctions(expr hclsyntax.Expression) error {
	var unknown []string
	diags := hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		if call, ok := node.(*hclsyntax.FunctionCallExpr); ok {
			if _, known := formulaFunctions[call.Name]; !known {
				unknown = append(unknown, call.Name)
			}
		}
		return nil
	})
	if diags.HasErrors() {
		return fmt.Errorf("%s", diags.Error())
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown function %q", unknown[0])
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
