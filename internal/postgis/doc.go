// Package postgis executes compiled statements against a PostGIS database.
//
// Connections come from a pgxpool.Pool that the caller owns. Every Execute
// call acquires its own connection and releases it before returning, so
// concurrent statements never share a session and nothing is held between
// requests.
package postgis
