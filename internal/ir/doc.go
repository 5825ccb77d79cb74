// Package ir provides the literal value model shared by plans and compiled
// statements.
//
// Plans arrive as JSON produced by a language model. Every literal a plan can
// carry (filter values, distances) is decoded into one of the sealed Value
// variants so that downstream code never has to reason about interface{}
// shapes:
//
//   - Null
//   - String
//   - Number (the decimal text exactly as written)
//   - Bool
//   - List (IN / BETWEEN operands)
//
// The package also owns canonical JSON and plan fingerprints. ir imports
// nothing internal.
package ir
