package mirtext

import (
	"strconv"
	"strings"

	"fortio.org/safecast"

	"tarn/internal/diag"
	"tarn/internal/mir"
	"tarn/internal/source"
	"tarn/internal/types"
)

// parseBody fills in one function recorded during the declaration pass.
// All signatures and struct types are known by now, so forward calls and
// forward struct references type-check in a single sweep.
func (p *Parser) parseBody(b fnBody) {
	p.pos = b.start
	if _, ok := p.expect(LBrace, diag.SynUnexpectedToken); !ok {
		return
	}

	vals := make(map[string]mir.ValueID, len(b.fn.Params))
	for _, v := range b.fn.Params {
		vals[b.fn.Values[v].Name] = v
	}

	for !p.at(RBrace) && !p.at(EOF) {
		p.parseBlock(b.fn, vals)
	}
	if rb, ok := p.expect(RBrace, diag.SynUnexpectedToken); ok {
		// Widen the declaration span over the body so that a function's
		// span always contains the spans of its instructions.
		b.fn.Span = b.fn.Span.Cover(rb.Span)
	}
}

// blockLabelIndex parses "bb<N>" labels. Labels are dense and
// sequential, so the index doubles as the BlockID.
func blockLabelIndex(text string) (int, bool) {
	rest, ok := strings.CutPrefix(text, "bb")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// tempNameIndex parses machine temporary names of the form "v<N>". The
// printer spells unnamed values this way, so a temporary must sit at the
// value slot its number names or the text would not read back.
func tempNameIndex(text string) (int, bool) {
	rest, ok := strings.CutPrefix(text, "v")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (p *Parser) parseBlock(fn *mir.Func, vals map[string]mir.ValueID) {
	labTok := p.cur()
	n, isLabel := 0, false
	if labTok.Kind == Ident {
		n, isLabel = blockLabelIndex(labTok.Text)
	}
	if !isLabel {
		p.errf(diag.SynExpectBlockLabel, labTok.Span, "expected block label, found %s", describe(labTok))
		p.recoverLine()
		return
	}
	p.next()
	want := len(fn.Blocks)
	if n != want {
		if n < want {
			p.errf(diag.SynDuplicateBlock, labTok.Span, "block bb%d is already defined", n)
		} else {
			p.errf(diag.SynExpectBlockLabel, labTok.Span, "expected bb%d, found bb%d", want, n)
		}
	}
	if _, ok := p.expect(Colon, diag.SynUnexpectedToken); !ok {
		p.recoverLine()
	}
	bb := fn.AddBlock()

	for {
		t := p.cur()
		switch t.Kind {
		case KwReturn, KwGoto, KwIf, KwUnreachable:
			fn.Terminate(bb, p.parseTerminator(vals))
			return
		case RBrace, EOF:
			p.errf(diag.SynUnterminatedBlock, t.Span, "block bb%d has no terminator", int(bb))
			return
		case Ident:
			// A fresh label means the previous block never terminated.
			if t.AtLineStart && p.toks[p.pos+1].Kind == Colon {
				if _, lbl := blockLabelIndex(t.Text); lbl {
					p.errf(diag.SynUnterminatedBlock, t.Span, "block bb%d has no terminator", int(bb))
					return
				}
			}
			p.parseInstr(fn, bb, vals)
		case Percent:
			p.parseInstr(fn, bb, vals)
		default:
			p.errf(diag.SynUnexpectedToken, t.Span, "expected an instruction, found %s", describe(t))
			p.recoverLine()
		}
	}
}

// ===== Instructions =====

func (p *Parser) parseInstr(fn *mir.Func, bb mir.BlockID, vals map[string]mir.ValueID) {
	lineStart := p.cur()

	var bindTok Token
	hasBind := false
	if p.at(Percent) {
		p.next()
		nameTok, ok := p.parseValueName()
		if !ok {
			p.recoverLine()
			return
		}
		if _, ok := p.expect(Eq, diag.SynUnexpectedToken); !ok {
			p.recoverLine()
			return
		}
		bindTok = nameTok
		hasBind = true
	}

	opTok := p.cur()
	if opTok.Kind != Ident {
		p.errf(diag.SynExpectIdentifier, opTok.Span, "expected an instruction, found %s", describe(opTok))
		p.recoverLine()
		return
	}
	p.next()

	in, resType, ok := p.parseInstrArgs(fn, vals, opTok)
	if !ok {
		p.recoverLine()
		return
	}
	in.Span = lineStart.Span.Cover(p.toks[p.pos-1].Span)

	if !in.Kind.HasResult() {
		if hasBind {
			p.errf(diag.SynUnexpectedToken, bindTok.Span, "%s produces no value", opTok.Text)
		}
		in.Result = mir.NoValueID
		fn.Append(bb, in)
		return
	}

	v := fn.NewValue(resType)
	if hasBind {
		if n, isTemp := tempNameIndex(bindTok.Text); isTemp && n != int(v) {
			p.errf(diag.SynBadTempName, bindTok.Span,
				"temporary %%%s cannot name value %d, expected %%v%d", bindTok.Text, int(v), int(v))
		}
		if _, dup := vals[bindTok.Text]; dup {
			p.errf(diag.SynDuplicateValue, bindTok.Span, "%%%s is already defined", bindTok.Text)
		} else {
			vals[bindTok.Text] = v
			fn.Values[v].Name = bindTok.Text
		}
	}
	in.Result = v
	fn.Append(bb, in)
}

// parseInstrArgs consumes everything after the mnemonic and computes the
// result type. Shape errors that block typing are reported here; whole
// module checks stay in mir.Validate.
func (p *Parser) parseInstrArgs(fn *mir.Func, vals map[string]mir.ValueID, opTok Token) (mir.Instr, types.TypeID, bool) {
	none := types.NoTypeID
	switch opTok.Text {
	case "alloc":
		t, ok := p.parseType()
		if !ok {
			return mir.Instr{}, none, false
		}
		res := p.types.Intern(types.MakeRef(t))
		return mir.Instr{Kind: mir.OpAlloc, Alloc: mir.AllocInstr{Elem: t}}, res, true

	case "dealloc":
		v, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		return mir.Instr{Kind: mir.OpDealloc, Dealloc: mir.DeallocInstr{Box: v}}, none, true

	case "retain":
		v, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		return mir.Instr{Kind: mir.OpRetain, Retain: mir.RetainInstr{Box: v}}, none, true

	case "release":
		v, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		return mir.Instr{Kind: mir.OpRelease, Release: mir.ReleaseInstr{Box: v}}, none, true

	case "load":
		srcTok := p.cur()
		src, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		res := p.pointeeOf(fn, src, srcTok, "load")
		return mir.Instr{Kind: mir.OpLoad, Load: mir.LoadInstr{Src: src}}, res, true

	case "store":
		src, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		if _, ok := p.expect(KwTo, diag.SynUnexpectedToken); !ok {
			return mir.Instr{}, none, false
		}
		dst, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		return mir.Instr{Kind: mir.OpStore, Store: mir.StoreInstr{Src: src, Dst: dst}}, none, true

	case "elem_addr":
		srcTok := p.cur()
		src, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		if _, ok := p.expect(Comma, diag.SynUnexpectedToken); !ok {
			return mir.Instr{}, none, false
		}
		idxTok, idx, ok := p.parseIndex()
		if !ok {
			return mir.Instr{}, none, false
		}
		agg := p.pointeeOf(fn, src, srcTok, "elem_addr")
		field := p.elemTypeOf(agg, int(idx), idxTok.Span)
		res := none
		if field != types.NoTypeID {
			res = p.types.Intern(types.MakeRef(field))
		}
		return mir.Instr{Kind: mir.OpElemAddr, ElemAddr: mir.ElemAddrInstr{Src: src, Index: idx}}, res, true

	case "copy_addr":
		src, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		if _, ok := p.expect(KwTo, diag.SynUnexpectedToken); !ok {
			return mir.Instr{}, none, false
		}
		dst, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		return mir.Instr{Kind: mir.OpCopyAddr, CopyAddr: mir.CopyAddrInstr{Src: src, Dst: dst}}, none, true

	case "apply", "partial_apply":
		calleeTok := p.cur()
		callee, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		args, ok := p.parseArgList(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		info := p.fnInfoOf(fn, callee, calleeTok, opTok.Text)
		if opTok.Text == "apply" {
			res := none
			if info != nil {
				res = info.Result
				if info.IndirectResult {
					res = p.types.Builtins().Unit
				}
			}
			return mir.Instr{Kind: mir.OpApply, Apply: mir.ApplyInstr{Callee: callee, Args: args}}, res, true
		}
		res := none
		if info != nil {
			remaining := info.Params
			if len(args) <= len(remaining) {
				remaining = remaining[:len(remaining)-len(args)]
			} else {
				remaining = nil
			}
			res = p.types.RegisterFn(remaining, info.Result, info.IndirectResult)
		}
		return mir.Instr{Kind: mir.OpPartialApply, PartialApply: mir.PartialApplyInstr{Callee: callee, Args: args}}, res, true

	case "tuple":
		args, ok := p.parseArgList(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		elems := make([]types.TypeID, len(args))
		for i, a := range args {
			elems[i] = fn.ValueType(a)
		}
		return mir.Instr{Kind: mir.OpTuple, Tuple: mir.TupleInstr{Elems: args}}, p.types.RegisterTuple(elems), true

	case "extract":
		srcTok := p.cur()
		src, ok := p.parseOperand(vals)
		if !ok {
			return mir.Instr{}, none, false
		}
		if _, ok := p.expect(Comma, diag.SynUnexpectedToken); !ok {
			return mir.Instr{}, none, false
		}
		idxTok, idx, ok := p.parseIndex()
		if !ok {
			return mir.Instr{}, none, false
		}
		agg := types.NoTypeID
		if src != mir.NoValueID {
			agg = fn.ValueType(src)
			if tt, ok := p.types.Lookup(agg); !ok || (tt.Kind != types.KindTuple && tt.Kind != types.KindStruct) {
				p.errf(diag.SynExpectOperand, srcTok.Span, "extract needs a tuple or struct operand")
				agg = types.NoTypeID
			}
		}
		res := p.elemTypeOf(agg, int(idx), idxTok.Span)
		return mir.Instr{Kind: mir.OpExtract, Extract: mir.ExtractInstr{Src: src, Index: idx}}, res, true

	case "func_ref":
		if _, ok := p.expect(At, diag.SynUnexpectedToken); !ok {
			return mir.Instr{}, none, false
		}
		nameTok, ok := p.expect(Ident, diag.SynExpectIdentifier)
		if !ok {
			return mir.Instr{}, none, false
		}
		id, exists := p.module.FuncByName(nameTok.Text)
		if !exists {
			p.errf(diag.SynUnknownFn, nameTok.Span, "function @%s is not declared", nameTok.Text)
			return mir.Instr{Kind: mir.OpFuncRef, FuncRef: mir.FuncRefInstr{Fn: mir.NoFuncID}}, none, true
		}
		return mir.Instr{Kind: mir.OpFuncRef, FuncRef: mir.FuncRefInstr{Fn: id}}, p.module.Func(id).Type, true

	case "const":
		return p.parseConst()

	default:
		p.errf(diag.SynUnknownInstr, opTok.Span, "unknown instruction %q", opTok.Text)
		return mir.Instr{}, none, false
	}
}

func (p *Parser) parseConst() (mir.Instr, types.TypeID, bool) {
	b := p.types.Builtins()
	litTok := p.cur()
	var val mir.ConstValue
	switch litTok.Kind {
	case IntLit:
		p.next()
		n, err := strconv.ParseInt(litTok.Text, 10, 64)
		if err != nil {
			p.errf(diag.SynBadLiteral, litTok.Span, "integer literal %s is out of range", litTok.Text)
		}
		val = mir.ConstValue{Kind: mir.ConstInt, Int: n}
	case KwTrue, KwFalse:
		p.next()
		val = mir.ConstValue{Kind: mir.ConstBool, Bool: litTok.Kind == KwTrue}
	default:
		p.errf(diag.SynBadLiteral, litTok.Span, "expected a literal, found %s", describe(litTok))
		return mir.Instr{}, types.NoTypeID, false
	}

	if _, ok := p.expect(Colon, diag.SynUnexpectedToken); !ok {
		return mir.Instr{}, types.NoTypeID, false
	}
	typeTok := p.cur()
	t, ok := p.parseType()
	if !ok {
		return mir.Instr{}, types.NoTypeID, false
	}
	switch val.Kind {
	case mir.ConstInt:
		if t != b.Int {
			p.errf(diag.SynBadLiteral, typeTok.Span, "integer literal needs type $Int, found $%s", p.types.TypeString(t))
		}
	case mir.ConstBool:
		if t != b.Bool {
			p.errf(diag.SynBadLiteral, typeTok.Span, "boolean literal needs type $Bool, found $%s", p.types.TypeString(t))
		}
	}
	return mir.Instr{Kind: mir.OpConst, Const: mir.ConstInstr{Value: val, Type: t}}, t, true
}

// ===== Operand helpers =====

// parseOperand reads "%name" and resolves it. An undefined name is
// reported but parsing continues with NoValueID so the rest of the line
// is still checked.
func (p *Parser) parseOperand(vals map[string]mir.ValueID) (mir.ValueID, bool) {
	if _, ok := p.expect(Percent, diag.SynExpectOperand); !ok {
		return mir.NoValueID, false
	}
	nameTok, ok := p.parseValueName()
	if !ok {
		return mir.NoValueID, false
	}
	v, defined := vals[nameTok.Text]
	if !defined {
		p.errf(diag.SynUnknownValue, nameTok.Span, "%%%s is not defined", nameTok.Text)
		return mir.NoValueID, true
	}
	return v, true
}

func (p *Parser) parseArgList(vals map[string]mir.ValueID) ([]mir.ValueID, bool) {
	if _, ok := p.expect(LParen, diag.SynUnexpectedToken); !ok {
		return nil, false
	}
	var args []mir.ValueID
	for !p.at(RParen) && !p.at(EOF) {
		a, ok := p.parseOperand(vals)
		if !ok {
			return nil, false
		}
		args = append(args, a)
		if _, ok := p.accept(Comma); !ok {
			break
		}
	}
	if _, ok := p.expect(RParen, diag.SynUnexpectedToken); !ok {
		return nil, false
	}
	return args, true
}

func (p *Parser) parseIndex() (Token, int32, bool) {
	t, ok := p.expect(IntLit, diag.SynBadFieldIndex)
	if !ok {
		return t, 0, false
	}
	n, err := strconv.ParseInt(t.Text, 10, 32)
	if err != nil || n < 0 {
		p.errf(diag.SynBadFieldIndex, t.Span, "bad element index %s", t.Text)
		return t, 0, true
	}
	idx, cerr := safecast.Conv[int32](n)
	if cerr != nil {
		p.errf(diag.SynBadFieldIndex, t.Span, "bad element index %s", t.Text)
		return t, 0, true
	}
	return t, idx, true
}

// pointeeOf resolves the element type behind an address operand.
// NoValueID operands were already reported, so they stay silent here.
func (p *Parser) pointeeOf(fn *mir.Func, v mir.ValueID, tok Token, what string) types.TypeID {
	if v == mir.NoValueID {
		return types.NoTypeID
	}
	tt, ok := p.types.Lookup(fn.ValueType(v))
	if !ok || !tt.Kind.IsAddress() {
		p.errf(diag.SynExpectOperand, tok.Span, "%s needs an address operand", what)
		return types.NoTypeID
	}
	return tt.Elem
}

// elemTypeOf resolves element idx of a tuple or struct type. Errors use
// sp, the span of the index literal.
func (p *Parser) elemTypeOf(agg types.TypeID, idx int, sp source.Span) types.TypeID {
	if agg == types.NoTypeID {
		return types.NoTypeID
	}
	tt, ok := p.types.Lookup(agg)
	if !ok {
		return types.NoTypeID
	}
	switch tt.Kind {
	case types.KindTuple:
		info, ok := p.types.TupleInfo(agg)
		if !ok || idx >= len(info.Elems) {
			p.errf(diag.SynBadFieldIndex, sp, "element index %d out of range for %s", idx, p.types.TypeString(agg))
			return types.NoTypeID
		}
		return info.Elems[idx]
	case types.KindStruct:
		info, ok := p.types.StructInfo(agg)
		if !ok {
			return types.NoTypeID
		}
		if info.Opaque {
			p.errf(diag.SynBadFieldIndex, sp, "struct %s is opaque", info.Name)
			return types.NoTypeID
		}
		if idx >= len(info.Fields) {
			p.errf(diag.SynBadFieldIndex, sp, "element index %d out of range for %s", idx, info.Name)
			return types.NoTypeID
		}
		return info.Fields[idx].Type
	default:
		p.errf(diag.SynExpectOperand, sp, "%s has no elements", p.types.TypeString(agg))
		return types.NoTypeID
	}
}

// fnInfoOf resolves the signature behind a call operand.
func (p *Parser) fnInfoOf(fn *mir.Func, v mir.ValueID, tok Token, what string) *types.FnInfo {
	if v == mir.NoValueID {
		return nil
	}
	info, ok := p.types.FnInfo(fn.ValueType(v))
	if !ok {
		p.errf(diag.SynExpectOperand, tok.Span, "%s needs a function operand", what)
		return nil
	}
	return info
}

// ===== Terminators =====

func (p *Parser) parseTerminator(vals map[string]mir.ValueID) mir.Terminator {
	t := p.next()
	term := mir.Terminator{Span: t.Span}
	switch t.Kind {
	case KwReturn:
		term.Kind = mir.TermReturn
		if p.at(Percent) {
			v, ok := p.parseOperand(vals)
			if ok {
				term.Return = mir.ReturnTerm{HasValue: true, Value: v}
			}
		}
	case KwGoto:
		term.Kind = mir.TermGoto
		term.Goto = mir.GotoTerm{Target: p.parseBlockRef()}
	case KwIf:
		term.Kind = mir.TermIf
		cond, _ := p.parseOperand(vals)
		p.expect(KwThen, diag.SynUnexpectedToken)
		then := p.parseBlockRef()
		p.expect(KwElse, diag.SynUnexpectedToken)
		els := p.parseBlockRef()
		term.If = mir.IfTerm{Cond: cond, Then: then, Else: els}
	case KwUnreachable:
		term.Kind = mir.TermUnreachable
	}
	term.Span = t.Span.Cover(p.toks[p.pos-1].Span)
	return term
}

// parseBlockRef reads a "bbN" target. Targets may point forward; range
// checking happens during validation.
func (p *Parser) parseBlockRef() mir.BlockID {
	t := p.cur()
	if t.Kind != Ident {
		p.errf(diag.SynExpectBlockLabel, t.Span, "expected block label, found %s", describe(t))
		return mir.NoBlockID
	}
	n, ok := blockLabelIndex(t.Text)
	if !ok {
		p.errf(diag.SynExpectBlockLabel, t.Span, "expected block label, found %s", describe(t))
		return mir.NoBlockID
	}
	p.next()
	id, err := safecast.Conv[int32](n)
	if err != nil {
		p.errf(diag.SynExpectBlockLabel, t.Span, "block label %s out of range", t.Text)
		return mir.NoBlockID
	}
	return mir.BlockID(id)
}
