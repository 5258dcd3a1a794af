// Package tagstore provides type-safe Go definitions and Redis schema patterns
// for the grove tag hierarchy. The store is the shared state system where all
// grove components (formula registry, binding resolver, template engine,
// evaluator, CLI) interact via well-defined entities stored in Redis.
//
// # Entities
//
// The store owns eight entity kinds, each persisted as a Redis hash:
//
//   - Asset: a piece of equipment; owns subgroups.
//   - Subgroup: a section of an asset; anchors root tags.
//   - Masterlist / MasterTag: the base tag catalogue ingested from files.
//   - Formula: an expression with $variable tokens; owns variables.
//   - Variable: a free variable of one formula.
//   - Tag: a node in the measurement hierarchy. A tag is anchored either to
//     a subgroup (root) or to a parent tag (child), never both. Template
//     context tags are a third, detached kind that only anchor a template's
//     default bindings and never appear in subgroup listings.
//   - Binding: "variable X, under context tag C, resolves to tag T's value".
//     At most one binding exists per (variable, context) pair; the
//     per-context hash index makes a duplicate structurally impossible.
//   - Template: a privately-owned (formula + variables + default bindings)
//     package that can be stamped onto a tag.
//
// # Schema
//
// All Redis keys are namespaced by instance name so multiple grove instances
// can safely coexist on a single Redis server:
//
//	grove:{instance}:{entity}:{uuid}
//
// Relationships are maintained as secondary indexes: sets for one-to-many
// membership (formula variables, tag children, subgroup roots) and a hash
// per context tag mapping variable ID to binding ID.
//
// # Atomicity
//
// Multi-step workflows (expression reconciliation, template creation and
// assignment, cascading deletes) read their inputs, stage every mutation in
// a WriteSet, and apply the whole set in a single MULTI/EXEC transaction.
// A failure before apply leaves the store untouched; there is no partial
// state to roll back.
package tagstore
