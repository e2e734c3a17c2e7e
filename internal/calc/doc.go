// Package calc holds the calculation rules that compute auto parameters.
//
// Configuration never carries executable code. A parameter references its
// rule either by the string id of a Go function registered in a Registry at
// startup, or by a formula: an HCL expression evaluated against the current
// parameter values. Both flavours share one signature,
//
//	func(snap Snapshot, index int) (cty.Value, error)
//
// where index is the template instance index, or -1 for parameters that were
// not produced by template expansion.
//
// Rules are pure: they read through the Snapshot and return a value. The
// keys a rule reads are declared at registration time (Go rules) or found by
// static inspection of the expression (formulas); the schema loader turns
// them into dependency edges.
package calc
