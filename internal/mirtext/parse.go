// Package mirtext reads and checks the textual IR form (.tir files).
//
// Parsing is two-phase: a declaration pass registers struct types and
// function signatures for the whole file, then every function body is
// parsed with the full symbol table available. That keeps forward
// references to functions and structs working without patch lists.
package mirtext

import (
	"fmt"

	"tarn/internal/diag"
	"tarn/internal/mir"
	"tarn/internal/source"
	"tarn/internal/types"
)

// Parser turns one token stream into a mir.Module.
type Parser struct {
	file     *source.File
	toks     []Token
	pos      int
	reporter *countingReporter
	types    *types.Interner
	module   *mir.Module

	declared map[string]bool        // structs that got a real declaration
	firstUse map[string]source.Span // struct name -> earliest reference
	bodies   []fnBody
}

type fnBody struct {
	fn    *mir.Func
	start int // token index of the opening brace
}

type countingReporter struct {
	next diag.Reporter
	errs int
}

func (r *countingReporter) Report(code diag.Code, sev diag.Severity, primary source.Span, msg string, notes []diag.Note, fixes []diag.Fix) {
	if sev == diag.SevError {
		r.errs++
	}
	if r.next != nil {
		r.next.Report(code, sev, primary, msg, notes, fixes)
	}
}

// Parse reads one .tir file into a fresh module over ti. The boolean is
// false when any lex or parse error was reported.
func Parse(file *source.File, ti *types.Interner, r diag.Reporter) (*mir.Module, bool) {
	cr := &countingReporter{next: r}
	lx := NewLexer(file, cr)
	p := &Parser{
		file:     file,
		toks:     lx.Tokens(),
		reporter: cr,
		types:    ti,
		module:   mir.NewModule(ti),
		declared: make(map[string]bool),
		firstUse: make(map[string]source.Span),
	}

	p.parseDecls()
	p.checkStructsResolved()
	for _, b := range p.bodies {
		p.parseBody(b)
	}

	return p.module, cr.errs == 0
}

// ===== Token helpers =====

func (p *Parser) cur() Token {
	return p.toks[p.pos]
}

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != EOF {
		p.pos++
	}
	return t
}

func (p *Parser) at(k Kind) bool {
	return p.toks[p.pos].Kind == k
}

func (p *Parser) accept(k Kind) (Token, bool) {
	if p.at(k) {
		return p.next(), true
	}
	return p.cur(), false
}

func (p *Parser) expect(k Kind, code diag.Code) (Token, bool) {
	if p.at(k) {
		return p.next(), true
	}
	t := p.cur()
	p.errf(code, t.Span, "expected %s, found %s", k, describe(t))
	return t, false
}

func describe(t Token) string {
	switch t.Kind {
	case Ident, IntLit, Invalid:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	default:
		return t.Kind.String()
	}
}

func (p *Parser) errf(code diag.Code, sp source.Span, format string, args ...any) {
	diag.ReportError(p.reporter, code, sp, fmt.Sprintf(format, args...)).Emit()
}

// recoverTopLevel skips to the next struct or fn declaration.
func (p *Parser) recoverTopLevel() {
	for !p.at(EOF) {
		t := p.cur()
		if t.AtLineStart && (t.Kind == KwStruct || t.Kind == KwFn) {
			return
		}
		p.next()
	}
}

// recoverLine skips to the next line inside a body, stopping at '}'.
func (p *Parser) recoverLine() {
	p.next()
	for !p.at(EOF) {
		t := p.cur()
		if t.AtLineStart || t.Kind == RBrace {
			return
		}
		p.next()
	}
}

// ===== Declaration pass =====

func (p *Parser) parseDecls() {
	for !p.at(EOF) {
		switch p.cur().Kind {
		case KwStruct:
			p.parseStructDecl()
		case KwFn:
			p.parseFnDecl()
		default:
			t := p.cur()
			p.errf(diag.SynUnexpectedToken, t.Span, "expected 'struct' or 'fn' at top level, found %s", describe(t))
			p.next()
			p.recoverTopLevel()
		}
	}
}

func (p *Parser) parseStructDecl() {
	kw := p.next() // struct
	nameTok, ok := p.expect(Ident, diag.SynExpectIdentifier)
	if !ok {
		p.recoverTopLevel()
		return
	}
	name := nameTok.Text
	declSpan := kw.Span.Cover(nameTok.Span)

	if p.declared[name] {
		p.errf(diag.SynDuplicateStruct, nameTok.Span, "struct %s is already declared", name)
		p.skipStructTail()
		return
	}

	id := p.types.RegisterStruct(name, declSpan, false)

	if _, ok := p.accept(KwOpaque); ok {
		p.types.DeclareStruct(id, declSpan, true)
		p.declared[name] = true
		p.module.Structs = append(p.module.Structs, id)
		return
	}

	if _, ok := p.expect(LBrace, diag.SynUnexpectedToken); !ok {
		p.recoverTopLevel()
		return
	}
	var fields []types.StructField
	for !p.at(RBrace) && !p.at(EOF) {
		fieldTok, ok := p.expect(Ident, diag.SynExpectIdentifier)
		if !ok {
			p.recoverTopLevel()
			return
		}
		if _, ok := p.expect(Colon, diag.SynUnexpectedToken); !ok {
			p.recoverTopLevel()
			return
		}
		ft, ok := p.parseType()
		if !ok {
			p.recoverTopLevel()
			return
		}
		fields = append(fields, types.StructField{Name: fieldTok.Text, Type: ft})
		if _, ok := p.accept(Comma); !ok {
			break
		}
	}
	if _, ok := p.expect(RBrace, diag.SynUnexpectedToken); !ok {
		p.recoverTopLevel()
		return
	}

	p.types.DeclareStruct(id, declSpan, false)
	p.types.SetStructFields(id, fields)
	p.declared[name] = true
	p.module.Structs = append(p.module.Structs, id)
}

// skipStructTail consumes the remainder of a struct declaration that is
// being discarded.
func (p *Parser) skipStructTail() {
	if _, ok := p.accept(KwOpaque); ok {
		return
	}
	if _, ok := p.accept(LBrace); !ok {
		p.recoverTopLevel()
		return
	}
	for !p.at(EOF) {
		if _, ok := p.accept(RBrace); ok {
			return
		}
		p.next()
	}
}

func (p *Parser) checkStructsResolved() {
	for name, sp := range p.firstUse {
		if !p.declared[name] {
			p.errf(diag.SynUnknownType, sp, "struct %s is never declared", name)
		}
	}
}

// ===== Function signatures =====

func (p *Parser) parseFnDecl() {
	kw := p.next() // fn
	if _, ok := p.expect(At, diag.SynUnexpectedToken); !ok {
		p.recoverTopLevel()
		return
	}
	nameTok, ok := p.expect(Ident, diag.SynExpectIdentifier)
	if !ok {
		p.recoverTopLevel()
		return
	}
	name := nameTok.Text

	if _, ok := p.expect(LParen, diag.SynUnexpectedToken); !ok {
		p.recoverTopLevel()
		return
	}
	var paramNames []string
	var paramSpans []source.Span
	var paramTypes []types.TypeID
	for !p.at(RParen) && !p.at(EOF) {
		if _, ok := p.expect(Percent, diag.SynExpectOperand); !ok {
			p.recoverTopLevel()
			return
		}
		pn, ok := p.parseValueName()
		if !ok {
			p.recoverTopLevel()
			return
		}
		if _, ok := p.expect(Colon, diag.SynUnexpectedToken); !ok {
			p.recoverTopLevel()
			return
		}
		pt, ok := p.parseType()
		if !ok {
			p.recoverTopLevel()
			return
		}
		paramNames = append(paramNames, pn.Text)
		paramSpans = append(paramSpans, pn.Span)
		paramTypes = append(paramTypes, pt)
		if _, ok := p.accept(Comma); !ok {
			break
		}
	}
	if _, ok := p.expect(RParen, diag.SynUnexpectedToken); !ok {
		p.recoverTopLevel()
		return
	}

	result := p.types.Builtins().Unit
	indirect := false
	if _, ok := p.accept(Arrow); ok {
		_, indirect = p.accept(KwIndirect)
		result, ok = p.parseType()
		if !ok {
			p.recoverTopLevel()
			return
		}
	}

	sigParams := paramTypes
	if indirect {
		// The out-slot is spelled as an explicit leading parameter.
		want := p.types.Intern(types.MakeRef(result))
		if len(paramTypes) == 0 || paramTypes[0] != want {
			p.errf(diag.SynExpectType, nameTok.Span,
				"indirect function @%s must take $&%s as its first parameter",
				name, p.types.TypeString(result))
		} else {
			sigParams = paramTypes[1:]
		}
	}
	fnType := p.types.RegisterFn(sigParams, result, indirect)

	if _, exists := p.module.FuncByName(name); exists {
		p.errf(diag.SynDuplicateFn, nameTok.Span, "function @%s is already declared", name)
		p.skipFnTail()
		return
	}

	fn := mir.NewFunc(name, fnType, paramTypes, kw.Span.Cover(nameTok.Span))
	for i, v := range fn.Params {
		fn.Values[v].Name = paramNames[i]
		if n, isTemp := tempNameIndex(paramNames[i]); isTemp && n != int(v) {
			p.errf(diag.SynBadTempName, paramSpans[i],
				"temporary %%%s cannot name value %d, expected %%v%d", paramNames[i], int(v), int(v))
		}
		for j := 0; j < i; j++ {
			if paramNames[j] == paramNames[i] {
				p.errf(diag.SynDuplicateValue, paramSpans[i], "parameter %%%s is already declared", paramNames[i])
				break
			}
		}
	}
	p.module.AddFunc(fn)

	switch p.cur().Kind {
	case Semi:
		p.next()
	case LBrace:
		p.bodies = append(p.bodies, fnBody{fn: fn, start: p.pos})
		p.skipBraces()
	default:
		p.errf(diag.SynUnexpectedToken, p.cur().Span, "expected ';' or '{' after signature, found %s", describe(p.cur()))
		p.recoverTopLevel()
	}
}

// skipFnTail consumes the rest of a discarded function declaration.
func (p *Parser) skipFnTail() {
	if _, ok := p.accept(Semi); ok {
		return
	}
	if p.at(LBrace) {
		p.skipBraces()
		return
	}
	p.recoverTopLevel()
}

// skipBraces consumes a balanced brace group starting at the current '{'.
func (p *Parser) skipBraces() {
	open, _ := p.expect(LBrace, diag.SynUnexpectedToken)
	depth := 1
	for depth > 0 {
		switch p.cur().Kind {
		case LBrace:
			depth++
		case RBrace:
			depth--
		case EOF:
			p.errf(diag.SynUnterminatedBlock, open.Span, "missing '}' before end of file")
			return
		}
		p.next()
	}
}

// ===== Types =====

// parseType reads "$" tycon.
func (p *Parser) parseType() (types.TypeID, bool) {
	if _, ok := p.expect(Dollar, diag.SynExpectType); !ok {
		return types.NoTypeID, false
	}
	return p.parseTycon()
}

func (p *Parser) parseTycon() (types.TypeID, bool) {
	b := p.types.Builtins()
	t := p.cur()
	switch t.Kind {
	case Amp:
		p.next()
		elem, ok := p.parseTycon()
		if !ok {
			return types.NoTypeID, false
		}
		return p.types.Intern(types.MakeRef(elem)), true
	case Star:
		p.next()
		elem, ok := p.parseTycon()
		if !ok {
			return types.NoTypeID, false
		}
		return p.types.Intern(types.MakePtr(elem)), true
	case LParen:
		p.next()
		var elems []types.TypeID
		for !p.at(RParen) && !p.at(EOF) {
			e, ok := p.parseTycon()
			if !ok {
				return types.NoTypeID, false
			}
			elems = append(elems, e)
			if _, ok := p.accept(Comma); !ok {
				break
			}
		}
		if _, ok := p.expect(RParen, diag.SynExpectType); !ok {
			return types.NoTypeID, false
		}
		return p.types.RegisterTuple(elems), true
	case KwFn:
		p.next()
		if _, ok := p.expect(LParen, diag.SynExpectType); !ok {
			return types.NoTypeID, false
		}
		var params []types.TypeID
		for !p.at(RParen) && !p.at(EOF) {
			e, ok := p.parseTycon()
			if !ok {
				return types.NoTypeID, false
			}
			params = append(params, e)
			if _, ok := p.accept(Comma); !ok {
				break
			}
		}
		if _, ok := p.expect(RParen, diag.SynExpectType); !ok {
			return types.NoTypeID, false
		}
		if _, ok := p.expect(Arrow, diag.SynExpectType); !ok {
			return types.NoTypeID, false
		}
		_, indirect := p.accept(KwIndirect)
		result, ok := p.parseTycon()
		if !ok {
			return types.NoTypeID, false
		}
		return p.types.RegisterFn(params, result, indirect), true
	case Ident:
		p.next()
		switch t.Text {
		case "Unit":
			return b.Unit, true
		case "Bool":
			return b.Bool, true
		case "Int":
			return b.Int, true
		case "Float":
			return b.Float, true
		case "String":
			return b.String, true
		}
		// Nominal type; declaration may come later in the file.
		if _, seen := p.firstUse[t.Text]; !seen {
			p.firstUse[t.Text] = t.Span
		}
		return p.types.RegisterStruct(t.Text, t.Span, false), true
	default:
		p.errf(diag.SynExpectType, t.Span, "expected a type, found %s", describe(t))
		return types.NoTypeID, false
	}
}

// parseValueName reads the identifier after '%'. Plain numbers are
// accepted so hand-numbered values round-trip.
func (p *Parser) parseValueName() (Token, bool) {
	t := p.cur()
	if t.Kind == Ident || t.Kind == IntLit {
		p.next()
		return t, true
	}
	p.errf(diag.SynExpectIdentifier, t.Span, "expected value name after '%%', found %s", describe(t))
	return t, false
}
