// Package querysql compiles plans and query objects into PostGIS SQL.
//
// Every statement is produced in two renditions from a single walk:
//
//   - SQL: display text with literals formatted inline ('O''Brien', 1980,
//     TRUE, NULL). Shown to users, logged, stored in history.
//   - Query + Args: the same text with each literal replaced by a $n
//     placeholder. This is what is executed.
//
// Identifiers cannot be parameterized. They are checked against
// ^[A-Za-z_][A-Za-z0-9_]*$ and, when an Allowlist is configured, against the
// table catalog. Free-form expressions are screened for statement
// separators and comments, and in strict mode every bare identifier must be
// known.
//
// Output is deterministic: the same plan always yields byte-identical
// statements in the same order.
package querysql
