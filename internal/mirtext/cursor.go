package mirtext

import (
	"fmt"

	"fortio.org/safecast"

	"tarn/internal/source"
)

// cursor представляет собой позицию в файле
type cursor struct {
	file *source.File
	off  uint32
}

func newCursor(f *source.File) cursor {
	// проверяем, что файл адресуется 32-битным смещением
	if _, err := safecast.Conv[uint32](len(f.Content)); err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return cursor{file: f}
}

func (c *cursor) eof() bool {
	return int(c.off) >= len(c.file.Content)
}

// peek читает текущий байт, если есть, иначе возвращает 0
func (c *cursor) peek() byte {
	if c.eof() {
		return 0
	}
	return c.file.Content[c.off]
}

// peek2 читает текущий и следующий байт, если есть
func (c *cursor) peek2() (b0, b1 byte, ok bool) {
	if int(c.off)+1 >= len(c.file.Content) {
		return 0, 0, false
	}
	return c.file.Content[c.off], c.file.Content[c.off+1], true
}

// bump перемещает курсор на один байт вперед и возвращает прочитанный байт
func (c *cursor) bump() byte {
	if c.eof() {
		return 0
	}
	b := c.file.Content[c.off]
	c.off++
	return b
}

func (c *cursor) eat(b byte) bool {
	if !c.eof() && c.file.Content[c.off] == b {
		c.off++
		return true
	}
	return false
}

// mark это метка, что бы быстро получать Span читаемого фрагмента
type mark uint32

func (c *cursor) mark() mark {
	return mark(c.off)
}

func (c *cursor) spanFrom(m mark) source.Span {
	return source.Span{
		File:  c.file.ID,
		Start: uint32(m),
		End:   c.off,
	}
}
