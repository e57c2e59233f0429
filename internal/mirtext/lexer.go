package mirtext

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"tarn/internal/diag"
	"tarn/internal/source"
)

const utf8RuneSelf = 0x80

// maxIdentLen bounds identifier length so a corrupt input cannot balloon
// the token table.
const maxIdentLen = 1024

// Lexer splits a .tir file into tokens. Whitespace and // comments are
// consumed between tokens; the first token after a newline carries
// AtLineStart.
type Lexer struct {
	file     *source.File
	cursor   cursor
	reporter diag.Reporter

	atLineStart bool
}

// NewLexer builds a lexer over file, reporting lex errors to r.
func NewLexer(file *source.File, r diag.Reporter) *Lexer {
	return &Lexer{
		file:        file,
		cursor:      newCursor(file),
		reporter:    r,
		atLineStart: true,
	}
}

// Next returns the next significant token. After EOF it always returns EOF.
func (lx *Lexer) Next() Token {
	lx.skipTrivia()

	if lx.cursor.eof() {
		return Token{Kind: EOF, Span: lx.emptySpan(), AtLineStart: lx.atLineStart}
	}

	lineStart := lx.atLineStart
	lx.atLineStart = false

	ch := lx.cursor.peek()
	var tok Token
	switch {
	case isIdentStartByte(ch) || ch >= utf8RuneSelf:
		tok = lx.scanIdentOrKeyword()
	case isDec(ch):
		tok = lx.scanNumber(false)
	case ch == '-':
		tok = lx.scanArrowOrNumber()
	default:
		tok = lx.scanPunct()
	}
	tok.AtLineStart = lineStart
	return tok
}

// Tokens lexes the whole file. The slice always ends with one EOF token.
func (lx *Lexer) Tokens() []Token {
	var out []Token
	for {
		t := lx.Next()
		out = append(out, t)
		if t.Kind == EOF {
			return out
		}
	}
}

// skipTrivia съедает пробелы и // комментарии до следующего токена
func (lx *Lexer) skipTrivia() {
	for !lx.cursor.eof() {
		switch lx.cursor.peek() {
		case ' ', '\t', '\r':
			lx.cursor.bump()
		case '\n':
			lx.cursor.bump()
			lx.atLineStart = true
		case '/':
			if b0, b1, ok := lx.cursor.peek2(); ok && b0 == '/' && b1 == '/' {
				for !lx.cursor.eof() && lx.cursor.peek() != '\n' {
					lx.cursor.bump()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func (lx *Lexer) scanIdentOrKeyword() Token {
	start := lx.cursor.mark()

	r, sz := lx.peekRune()
	if sz == 0 || !isIdentStartRune(r) {
		return lx.scanPunct()
	}
	lx.bumpRune()
	for {
		r2, sz2 := lx.peekRune()
		if sz2 == 0 || !isIdentContinueRune(r2) {
			break
		}
		lx.bumpRune()
	}

	sp := lx.cursor.spanFrom(start)
	raw := lx.file.Content[sp.Start:sp.End]
	if len(raw) > maxIdentLen {
		diag.ReportError(lx.reporter, diag.LexTokenTooLong, sp,
			fmt.Sprintf("identifier longer than %d bytes", maxIdentLen)).Emit()
		return Token{Kind: Invalid, Span: sp, Text: string(raw[:maxIdentLen])}
	}

	// Identifiers compare NFC-normalized so visually identical names
	// resolve to one value.
	text := string(raw)
	if !isASCII(raw) {
		text = norm.NFC.String(text)
	}

	if k, ok := LookupKeyword(text); ok {
		return Token{Kind: k, Span: sp, Text: text}
	}
	return Token{Kind: Ident, Span: sp, Text: text}
}

func (lx *Lexer) scanNumber(neg bool) Token {
	start := lx.cursor.mark()
	if neg {
		lx.cursor.bump() // '-'
	}
	for isDec(lx.cursor.peek()) {
		lx.cursor.bump()
	}
	sp := lx.cursor.spanFrom(start)

	// Цифры, к которым прилип идентификатор, это не число.
	if r, sz := lx.peekRune(); sz > 0 && isIdentContinueRune(r) {
		for {
			r2, sz2 := lx.peekRune()
			if sz2 == 0 || !isIdentContinueRune(r2) {
				break
			}
			lx.bumpRune()
		}
		sp = lx.cursor.spanFrom(start)
		tokText := string(lx.file.Content[sp.Start:sp.End])
		diag.ReportError(lx.reporter, diag.LexBadNumber, sp,
			fmt.Sprintf("malformed number %q", tokText)).Emit()
		return Token{Kind: Invalid, Span: sp, Text: tokText}
	}

	return Token{Kind: IntLit, Span: sp, Text: string(lx.file.Content[sp.Start:sp.End])}
}

// scanArrowOrNumber разбирает '-': либо '->', либо отрицательный литерал
func (lx *Lexer) scanArrowOrNumber() Token {
	if b0, b1, ok := lx.cursor.peek2(); ok && b0 == '-' {
		if b1 == '>' {
			start := lx.cursor.mark()
			lx.cursor.bump()
			lx.cursor.bump()
			return Token{Kind: Arrow, Span: lx.cursor.spanFrom(start), Text: "->"}
		}
		if isDec(b1) {
			return lx.scanNumber(true)
		}
	}
	return lx.scanPunct()
}

func (lx *Lexer) scanPunct() Token {
	start := lx.cursor.mark()
	b := lx.cursor.bump()
	sp := lx.cursor.spanFrom(start)

	var k Kind
	switch b {
	case '@':
		k = At
	case '%':
		k = Percent
	case '$':
		k = Dollar
	case '&':
		k = Amp
	case '*':
		k = Star
	case '(':
		k = LParen
	case ')':
		k = RParen
	case '{':
		k = LBrace
	case '}':
		k = RBrace
	case ':':
		k = Colon
	case ',':
		k = Comma
	case ';':
		k = Semi
	case '=':
		k = Eq
	default:
		diag.ReportError(lx.reporter, diag.LexUnknownChar, sp,
			fmt.Sprintf("unexpected character %q", rune(b))).Emit()
		return Token{Kind: Invalid, Span: sp, Text: string(rune(b))}
	}
	return Token{Kind: k, Span: sp, Text: string(rune(b))}
}

func (lx *Lexer) emptySpan() source.Span {
	return source.Span{File: lx.file.ID, Start: lx.cursor.off, End: lx.cursor.off}
}

// peekRune читает текущий байт как руну
func (lx *Lexer) peekRune() (r rune, size int) {
	if lx.cursor.eof() {
		return utf8.RuneError, 0
	}
	b := lx.cursor.peek()
	if b < utf8.RuneSelf { // fast-path ASCII
		return rune(b), 1
	}
	r, sz := utf8.DecodeRune(lx.file.Content[lx.cursor.off:])
	return r, sz
}

// bumpRune перемещает курсор на размер текущей руны
func (lx *Lexer) bumpRune() {
	_, sz := lx.peekRune()
	if sz == 0 {
		return
	}
	usz, err := safecast.Conv[uint32](sz)
	if err != nil {
		panic(fmt.Errorf("bumpRune overflow: %w", err))
	}
	lx.cursor.off += usz
}

func isIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentStartRune(r rune) bool {
	if r < utf8RuneSelf {
		return isIdentStartByte(byte(r))
	}
	return unicode.IsLetter(r)
}

func isIdentContinueRune(r rune) bool {
	if r < utf8RuneSelf {
		return isIdentStartByte(byte(r)) || isDec(byte(r))
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDec(b byte) bool { return b >= '0' && b <= '9' }

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8RuneSelf {
			return false
		}
	}
	return true
}
