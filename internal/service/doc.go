// Package service answers map questions end to end.
//
// A question flows through table selection, prompt construction, plan
// generation, parsing, compilation, execution and layer conversion. A
// failed attempt is fed back into the next prompt until the retry budget
// runs out, at which point the caller gets the last SQL and its error
// instead of layers.
//
// Compiled statements are cached by plan fingerprint. The statements of one
// plan run concurrently, each on its own pooled connection, and their
// layers are returned in statement order.
package service
