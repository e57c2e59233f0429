// Package diag defines the diagnostic model shared by all toolchain phases.
//
// Diagnostic is the central record: Severity (Info/Warning/Error), a stable
// numeric Code with a string form ("OPT5001"), a short human message, the
// primary source.Span, optional Notes with secondary spans, and optional Fix
// suggestions as structured text edits.
//
// Phases emit through the Reporter interface so producers stay decoupled from
// storage and rendering. BagReporter aggregates into a Bag, which supports a
// limit, deterministic sorting, and deduplication. DedupReporter suppresses
// repeats at the source. Rendering lives in internal/diagfmt; this package
// performs no formatting beyond the golden-file form used by tests.
//
// Code bands: 1000s lexer, 2000s parser, 3000s validation, 4000s I/O,
// 5000s optimizer, 6000s observability, 7000s formatter.
package diag
