package opt

import (
	"fmt"

	"tarn/internal/diag"
	"tarn/internal/layout"
	"tarn/internal/mir"
	"tarn/internal/source"
	"tarn/internal/trace"
	"tarn/internal/types"
)

// PassContext carries the shared machinery a pass may need. One context
// serves a whole pipeline run, so the layout cache warms across passes.
type PassContext struct {
	Types    *types.Interner
	Layout   *layout.Engine
	Reporter diag.Reporter
}

// Pass is one named rewrite over a single function.
type Pass struct {
	Name string
	Run  func(*PassContext, *mir.Func) error
}

// DefaultPipeline is the standard pass order: straighten the graph first
// so stale escapes in dead blocks cannot block promotion, promote, then
// sweep the values promotion orphaned.
func DefaultPipeline() []string {
	return []string{"simplify-cfg", "promote-memory", "dce"}
}

func builtinPasses() []Pass {
	return []Pass{
		{Name: "simplify-cfg", Run: func(_ *PassContext, fn *mir.Func) error {
			mir.SimplifyCFG(fn)
			return nil
		}},
		{Name: "promote-memory", Run: func(c *PassContext, fn *mir.Func) error {
			return PromoteMemory(fn, c.Types, c.Layout, c.Reporter)
		}},
		{Name: "dce", Run: func(_ *PassContext, fn *mir.Func) error {
			EliminateDeadValues(fn)
			return nil
		}},
	}
}

// LookupPass resolves a pass by name.
func LookupPass(name string) (Pass, bool) {
	for _, p := range builtinPasses() {
		if p.Name == name {
			return p, true
		}
	}
	return Pass{}, false
}

// Pipeline applies a configured pass list to whole modules. A nil Passes
// slice means DefaultPipeline.
type Pipeline struct {
	Passes   []string
	Reporter diag.Reporter

	// Tracer, when set, receives one span per pass and per function body.
	// TraceParent parents the pass spans into the caller's span tree.
	Tracer      trace.Tracer
	TraceParent uint64
}

// Run validates m, applies every pass to every function body, and
// validates the result. Malformed input is reported through the reporter
// as VAL diagnostics and skips the passes; malformed output is an internal
// error, as is any error returned by a pass.
func (p *Pipeline) Run(m *mir.Module) error {
	if m == nil {
		return nil
	}
	r := p.Reporter
	if r == nil {
		r = diag.NopReporter{}
	}

	names := p.Passes
	if names == nil {
		names = DefaultPipeline()
	}
	passes := make([]Pass, 0, len(names))
	for _, name := range names {
		pass, ok := LookupPass(name)
		if !ok {
			return fmt.Errorf("unknown pass %q", name)
		}
		passes = append(passes, pass)
	}

	if err := mir.Validate(m); err != nil {
		reportValidation(r, err)
		return nil
	}

	ctx := &PassContext{
		Types:    m.Types,
		Layout:   layout.New(m.Types),
		Reporter: r,
	}
	for _, pass := range passes {
		passSpan := trace.Begin(p.Tracer, trace.ScopePass, pass.Name, p.TraceParent)
		for _, fn := range m.Funcs {
			if fn.IsDecl() {
				continue
			}
			fnSpan := trace.Begin(p.Tracer, trace.ScopeFunc, "@"+fn.Name, passSpan.ID())
			err := pass.Run(ctx, fn)
			fnSpan.End("")
			if err != nil {
				passSpan.End("error")
				return fmt.Errorf("pass %s on @%s: %w", pass.Name, fn.Name, err)
			}
		}
		passSpan.End("")
	}

	if err := mir.Validate(m); err != nil {
		return fmt.Errorf("pass pipeline produced invalid IR: %w", err)
	}
	return nil
}

// reportValidation turns validator findings into user-facing diagnostics.
func reportValidation(r diag.Reporter, err error) {
	ves := mir.ValidationErrors(err)
	for _, ve := range ves {
		diag.ReportError(r, ve.Code, ve.Span, ve.Msg).Emit()
	}
	if len(ves) == 0 && err != nil {
		diag.ReportError(r, diag.ValInfo, source.Span{}, err.Error()).Emit()
	}
}
