// Package store provides SQLite-backed history of answered questions.
//
// Every question the service handles is recorded once in queries, with one
// row per generation attempt in attempts:
//
//   - queries: question, final status, last SQL and error, layer count
//   - attempts: the plan text, compiled SQL and error of each attempt
//
// Listing is newest first with id as the tie-breaker, so output is stable
// when several questions share a timestamp. Writes are idempotent on the
// query id.
//
// Connections run in WAL mode with a five second busy timeout and foreign
// keys enforced. Schema upgrades are tracked in PRAGMA user_version.
//
// Plans that parse as JSON are stored in canonical form (sorted keys, NFC
// strings) via internal/ir.
package store
