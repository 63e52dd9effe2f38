// Package char provides the foundational value types shared by every
// layer of the regex engine: a sentinel-aware code point, byte spans,
// and interval/interval-set arithmetic over code points.
package char

import "unicode/utf8"

// Char is a 32-bit code point. Values 0..=0x10FFFF encode Unicode
// scalars. INPUT_BOUND is a sentinel meaning "before position 0" or
// "after the last byte" and never equals any real code point.
type Char uint32

// InputBound is the virtual character surrounding the subject.
const InputBound Char = 0xFFFFFFFF

// MaxRune is the largest valid Unicode scalar value.
const MaxRune Char = 0x10FFFF

// All returns the range matching every possible Char, including the
// sentinel.
func All() (Char, Char) {
	return 0, InputBound
}

// AllValid returns the range matching every valid Unicode scalar.
func AllValid() (Char, Char) {
	return 0, MaxRune
}

// FromRune converts a decoded rune into a Char.
func FromRune(r rune) Char {
	return Char(uint32(r))
}

// DecodeRune decodes the UTF-8 encoded code point at the start of b,
// returning the Char and the number of bytes consumed. It returns
// (InputBound, 0) for an empty slice.
func DecodeRune(b []byte) (Char, int) {
	if len(b) == 0 {
		return InputBound, 0
	}
	r, size := utf8.DecodeRune(b)
	return Char(uint32(r)), size
}

// RuneLen reports the number of UTF-8 bytes a code point encodes to.
func RuneLen(c Char) int {
	return utf8.RuneLen(rune(c))
}

// PrevChar returns the code point immediately preceding byte offset
// pos in subject, decoding backward from pos, or InputBound if pos is
// 0. A search starting mid-subject (a nonzero Input.Span.From) still
// needs the real surrounding byte for anchor assertions like Start to
// correctly fail instead of treating the span boundary as the
// beginning of the subject.
func PrevChar(subject string, pos int) Char {
	if pos == 0 {
		return InputBound
	}
	r, _ := utf8.DecodeLastRuneInString(subject[:pos])
	return Char(uint32(r))
}
