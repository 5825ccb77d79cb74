// Package plan decodes the JSON query plans produced by the plan generator
// into a typed model.
//
// A plan has an action and exactly one body:
//
//   - groups: each group is one or more source tables and at most one
//     relation between two of them
//   - source_tables (legacy): a single group spelled at the top level
//   - layers: explicit query objects (see queryir), one per map layer
//
// Relations are a sum type. SpatialRelation carries a PostGIS predicate and
// an optional distance; AttributeRelation carries the two equality columns.
// An attribute relation with a distance, or a spatial relation with column
// names, cannot be expressed.
//
// Parse performs the structural checks the compiler relies on and reports
// the first defect as a *PlanError naming the offending field. CheckSchema
// validates the raw JSON against an embedded CUE schema and is used where a
// second, declarative opinion is useful (strict mode, the validate command).
package plan
