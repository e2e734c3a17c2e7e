// internal/paramid/doc.go

/*
Package paramid centralises the format of parameter keys.

A key is an identifier such as `door_height`. Keys declared inside a
multi-attribute template carry the placeholder `#`, e.g. `hinge_#_position`,
which template expansion replaces with the instance index to produce the
resolved keys `hinge_0_position`, `hinge_1_position`, and so on.

Resolved keys double as HCL attribute names inside formulas
(`param.hinge_0_position`), so the allowed alphabet is that of an HCL
identifier without the dash.
*/
package paramid
