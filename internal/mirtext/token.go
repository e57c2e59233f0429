package mirtext

import "tarn/internal/source"

// Kind enumerates token kinds of the textual IR.
type Kind uint8

const (
	EOF Kind = iota
	Invalid

	Ident
	IntLit

	At      // @
	Percent // %
	Dollar  // $
	Amp     // &
	Star    // *
	LParen  // (
	RParen  // )
	LBrace  // {
	RBrace  // }
	Colon   // :
	Comma   // ,
	Semi    // ;
	Eq      // =
	Arrow   // ->

	KwStruct
	KwOpaque
	KwFn
	KwIndirect
	KwTo
	KwThen
	KwElse
	KwIf
	KwGoto
	KwReturn
	KwUnreachable
	KwTrue
	KwFalse
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "eof"
	case Invalid:
		return "invalid"
	case Ident:
		return "identifier"
	case IntLit:
		return "integer"
	case At:
		return "'@'"
	case Percent:
		return "'%'"
	case Dollar:
		return "'$'"
	case Amp:
		return "'&'"
	case Star:
		return "'*'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case LBrace:
		return "'{'"
	case RBrace:
		return "'}'"
	case Colon:
		return "':'"
	case Comma:
		return "','"
	case Semi:
		return "';'"
	case Eq:
		return "'='"
	case Arrow:
		return "'->'"
	case KwStruct:
		return "'struct'"
	case KwOpaque:
		return "'opaque'"
	case KwFn:
		return "'fn'"
	case KwIndirect:
		return "'indirect'"
	case KwTo:
		return "'to'"
	case KwThen:
		return "'then'"
	case KwElse:
		return "'else'"
	case KwIf:
		return "'if'"
	case KwGoto:
		return "'goto'"
	case KwReturn:
		return "'return'"
	case KwUnreachable:
		return "'unreachable'"
	case KwTrue:
		return "'true'"
	case KwFalse:
		return "'false'"
	default:
		return "token?"
	}
}

var keywords = map[string]Kind{
	"struct":      KwStruct,
	"opaque":      KwOpaque,
	"fn":          KwFn,
	"indirect":    KwIndirect,
	"to":          KwTo,
	"then":        KwThen,
	"else":        KwElse,
	"if":          KwIf,
	"goto":        KwGoto,
	"return":      KwReturn,
	"unreachable": KwUnreachable,
	"true":        KwTrue,
	"false":       KwFalse,
}

// LookupKeyword maps reserved words onto their token kinds.
// Keywords are case sensitive.
func LookupKeyword(text string) (Kind, bool) {
	k, ok := keywords[text]
	return k, ok
}

// Token is a single lexed token. AtLineStart marks the first token after
// a newline; the parser uses it to resync after errors.
type Token struct {
	Kind        Kind
	Span        source.Span
	Text        string
	AtLineStart bool
}

// IsKeyword reports whether the token is a reserved word.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwStruct && t.Kind <= KwFalse
}
