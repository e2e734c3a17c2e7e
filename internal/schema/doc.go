// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package schema turns the format-agnostic configuration of one tab into
// immutable, typed parameter descriptors.
//
// # Core Concepts
//
//   - Descriptor: the immutable description of one parameter. Its Type is a
//     closed variant (number, string, boolean, enum, multi) that carries only
//     the fields valid for that kind, checked at load time.
//
//   - Multi attribute: a descriptor of kind multi wraps a template descriptor
//     whose key contains the `#` placeholder. Template expansion produces one
//     concrete descriptor per index, substituting the placeholder in the key,
//     display names and dependencies and binding the rule to the index.
//
//   - Schema: the declared descriptors of a tab plus sections, grouped auto
//     toggles and preview shapes. ResolveTemplates expands it for a given set
//     of template counts into the flat, ordered list of resolved descriptors
//     that a parameter store is initialised from.
//
// Why load eagerly?
//
// Every contradiction that can be found without a running context (bounds,
// unknown rules, key collisions, dependency cycles) is reported by Load as a
// SchemaError or CyclicDependencyError, so a context that activates is known
// to be well formed.
package schema
