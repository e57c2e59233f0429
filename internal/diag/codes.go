package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Лексические (текстовый MIR)
	LexInfo         Code = 1000
	LexUnknownChar  Code = 1001
	LexBadNumber    Code = 1002
	LexTokenTooLong Code = 1003

	// Парсерные
	SynInfo              Code = 2000
	SynUnexpectedToken   Code = 2001
	SynExpectIdentifier  Code = 2002
	SynExpectType        Code = 2003
	SynExpectOperand     Code = 2004
	SynExpectBlockLabel  Code = 2005
	SynUnknownInstr      Code = 2006
	SynUnterminatedBlock Code = 2007
	SynDuplicateStruct   Code = 2008
	SynDuplicateFn       Code = 2009
	SynDuplicateBlock    Code = 2010
	SynDuplicateValue    Code = 2011
	SynBadLiteral        Code = 2012
	SynUnknownType       Code = 2013
	SynUnknownValue      Code = 2014
	SynUnknownFn         Code = 2015
	SynBadFieldIndex     Code = 2016
	SynBadTempName       Code = 2017

	// Валидация модуля
	ValInfo              Code = 3000
	ValUnterminatedBlock Code = 3001
	ValBadBlockTarget    Code = 3002
	ValUndefinedValue    Code = 3003
	ValTypeMismatch      Code = 3004
	ValBadElemIndex      Code = 3005
	ValBadApply          Code = 3006
	ValMissingEntry      Code = 3007

	// I/O
	IOLoadFileError  Code = 4001
	IOWriteFileError Code = 4002

	// Оптимизация
	OptInfo          Code = 5000
	OptUseBeforeInit Code = 5001
	OptMaybeUninit   Code = 5002

	// Наблюдаемость
	ObsInfo    Code = 6000
	ObsTimings Code = 6001

	// Форматирование
	FmtInfo         Code = 7000
	FmtNotCanonical Code = 7001
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	LexInfo:              "Lexical information",
	LexUnknownChar:       "Unknown character",
	LexBadNumber:         "Malformed numeric literal",
	LexTokenTooLong:      "Token too long",
	SynInfo:              "Parser information",
	SynUnexpectedToken:   "Unexpected token",
	SynExpectIdentifier:  "Expected identifier",
	SynExpectType:        "Expected type",
	SynExpectOperand:     "Expected operand",
	SynExpectBlockLabel:  "Expected block label",
	SynUnknownInstr:      "Unknown instruction",
	SynUnterminatedBlock: "Block has no terminator",
	SynDuplicateStruct:   "Duplicate struct declaration",
	SynDuplicateFn:       "Duplicate function declaration",
	SynDuplicateBlock:    "Duplicate block label",
	SynDuplicateValue:    "Duplicate value name",
	SynBadLiteral:        "Malformed literal",
	SynUnknownType:       "Unknown type name",
	SynUnknownValue:      "Unknown value name",
	SynUnknownFn:         "Unknown function name",
	SynBadFieldIndex:     "Field index out of range",
	SynBadTempName:       "Misnumbered temporary name",
	ValInfo:              "Validation information",
	ValUnterminatedBlock: "Block has no terminator",
	ValBadBlockTarget:    "Branch target does not exist",
	ValUndefinedValue:    "Use of undefined value",
	ValTypeMismatch:      "Operand type mismatch",
	ValBadElemIndex:      "Element index out of range",
	ValBadApply:          "Malformed call",
	ValMissingEntry:      "Function has no entry block",
	IOLoadFileError:      "I/O load file error",
	IOWriteFileError:     "I/O write file error",
	OptInfo:              "Optimizer information",
	OptUseBeforeInit:     "Use of uninitialized value",
	OptMaybeUninit:       "Use of possibly-uninitialized value",
	ObsInfo:              "Observability information",
	ObsTimings:           "Pipeline timings",
	FmtInfo:              "Formatter information",
	FmtNotCanonical:      "File is not canonically formatted",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("VAL%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("OPT%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("FMT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
