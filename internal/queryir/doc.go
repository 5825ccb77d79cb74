// Package queryir provides the query-object intermediate representation
// compiled by the SQL assembler.
//
// A query object is the explicit, relational form of a map layer:
//
//	[plan JSON] → [plan.Plan] → [queryir.Query] → [querysql.Statement]
//
// Three query shapes exist:
//   - Select: SELECT/AGGREGATE over one table with joins, filters, spatial
//     filters, GROUP BY, ORDER BY and LIMIT
//   - Union: several Selects combined with UNION [ALL|DISTINCT]
//   - CTE: named Selects in a WITH clause feeding a main Select
//
// SEALED INTERFACES:
//
// Query and Condition are sealed with marker methods so the assembler can
// switch exhaustively:
//
//	switch q := query.(type) {
//	case *Select:
//	    // Handle select
//	case *Union:
//	    // Handle union
//	case *CTE:
//	    // Handle cte
//	}
//
// Literal values in filters use ir.Value variants only. Identifiers are
// plain strings here; the assembler validates them.
package queryir
