// Package catalog describes the tables a plan may reference.
//
// A Catalog is loaded from YAML (the embedded Toronto default, or a file) or
// introspected from PostGIS. It serves three consumers: prompt construction
// (SelectTables, Prompt), the compiler's identifier allow-list (HasTable,
// HasColumn) and the schema listing served over HTTP (Grouped).
package catalog
