// Package fuzztests houses Go fuzz harnesses that exercise the textual IR
// front half (source -> lexer -> parser -> printer). Its goal is to smoke
// test robustness and guard against panics or hangs on arbitrary inputs,
// and to hold the printer to its round-trip contract on everything that
// parses.
//
// Назначение: запускать fuzz-обработчики, которые загружают байты в FileSet
// и прогоняют их через лексер/парсер/принтер.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
//
// Зависимости: internal/source, internal/mirtext, internal/mir,
// internal/diag, internal/types.
package fuzztests
