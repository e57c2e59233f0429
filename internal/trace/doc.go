// Package trace provides a tracing subsystem for the Tarn toolchain.
//
// The trace package enables tracking of driver phases, optimization passes,
// and per-function processing to help diagnose performance issues and hangs.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	tarn opt --trace=- --trace-level=phase module.tir
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - NopTracer: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer for crash dumps
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: No tracing
//   - LevelError: Only crash dumps
//   - LevelPhase: Driver and pass boundaries
//   - LevelDetail: Per-function events
//   - LevelDebug: Everything including instruction-level events
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeDriver: Top-level CLI operations (load, run, write)
//   - ScopePass: Pipeline passes (parse, promote-memory, dce, simplify-cfg)
//   - ScopeFunc: Per-function processing inside a pass
//   - ScopeInstr: Instruction level (future)
//
// # Context Propagation
//
// Tracers are propagated through the driver via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePass, "promote-memory", parentID)
//	defer span.End("")
package trace
