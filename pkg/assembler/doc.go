// Package assembler collapses a stream of indexed tool-call fragments
// into complete, validated tool calls. It is a lazy transducer: each
// fragment updates the accumulator slot at its index, and a slot emits
// exactly once, as soon as it has a non-empty name and its accumulated
// arguments parse as JSON.
//
package assembler
