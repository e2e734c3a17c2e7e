// Package engineerr defines the error taxonomy shared by the schema loader,
// the parameter store, the recalculation engine and the order resolver.
//
// Every error is a small value carrier with a stable message format. Callers
// recognise a category with errors.Is against the exported sentinels, or pull
// the details out with errors.As:
//
//	var locked *engineerr.AutoLockedError
//	if errors.As(err, &locked) {
//	    // clear auto on locked.Key first
//	}
//
// Load-time categories (ErrSchema, ErrCyclicDependency) are fatal for the
// context being built. The remaining categories are reported per operation
// and leave the context in its last known good state.
package engineerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by errors.Is.
var (
	ErrSchema           = errors.New("schema error")
	ErrCyclicDependency = errors.New("cyclic dependency")
	ErrUnknownKey       = errors.New("unknown key")
	ErrAutoLocked       = errors.New("parameter is auto-locked")
	ErrCompute          = errors.New("compute error")
	ErrOrderMismatch    = errors.New("order mismatch")
	ErrValue            = errors.New("invalid value")
	ErrCapability       = errors.New("capability not declared")
)

// SchemaError reports malformed or contradictory declarative input.
type SchemaError struct {
	// Key is the offending parameter key, empty for tab-level problems.
	Key    string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: parameter %q: %s", e.Key, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// Schemaf builds a SchemaError with a formatted reason.
func Schemaf(key, format string, args ...any) *SchemaError {
	return &SchemaError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// CyclicDependencyError names one member of a detected dependency cycle.
type CyclicDependencyError struct {
	Key string
	// Cycle lists the keys of the cycle in edge order when it could be traced.
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("cyclic dependency involving %q: %s", e.Key, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("cyclic dependency involving %q", e.Key)
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicDependency }

// UnknownKeyError is returned when a key is not part of the resolved key set.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string { return fmt.Sprintf("unknown parameter key %q", e.Key) }

func (e *UnknownKeyError) Is(target error) bool { return target == ErrUnknownKey }

// AutoLockedError rejects an external write to a parameter whose auto flag is set.
type AutoLockedError struct {
	Key string
}

func (e *AutoLockedError) Error() string {
	return fmt.Sprintf("parameter %q is computed automatically; clear auto before editing", e.Key)
}

func (e *AutoLockedError) Is(target error) bool { return target == ErrAutoLocked }

// ComputeError wraps a calculation rule failure for a single node.
type ComputeError struct {
	Key  string
	Rule string
	Err  error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("rule %q for %q failed: %v", e.Rule, e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

func (e *ComputeError) Is(target error) bool { return target == ErrCompute }

// OrderMismatchError rejects a reorder that is not a permutation of the active set.
type OrderMismatchError struct {
	Missing    []string
	Unexpected []string
	Duplicates []string
}

func (e *OrderMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "not active "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicated "+strings.Join(e.Duplicates, ", "))
	}
	return "order is not a permutation of the active set: " + strings.Join(parts, "; ")
}

func (e *OrderMismatchError) Is(target error) bool { return target == ErrOrderMismatch }

// ValueError rejects a value that does not fit the parameter's descriptor.
type ValueError struct {
	Key    string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for %q: %s", e.Key, e.Reason)
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }

// CapabilityError is returned when a flag is toggled on a parameter whose
// descriptor does not declare the capability.
type CapabilityError struct {
	Key  string
	Flag string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("parameter %q does not support %s", e.Key, e.Flag)
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }
