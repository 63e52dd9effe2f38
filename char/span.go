package char

// Span is a half-open byte range over a subject string.
type Span struct {
	From int
	To   int
}

// InvalidSpan is the canonical invalid span.
func InvalidSpan() Span {
	return Span{From: int(^uint(0) >> 1), To: 0}
}

// Empty reports whether the span has zero width.
func (s Span) Empty() bool {
	return s.From == s.To
}

// Valid reports whether the span is well-formed (from <= to).
func (s Span) Valid() bool {
	return s.From <= s.To
}

// Input bundles a subject with search parameters. Anchored forbids
// advancing the start position; FirstMatch allows the engine to
// return as soon as any accepting state is reached, without searching
// for the leftmost/longest alternative.
type Input struct {
	Subject    string
	Span       Span
	Anchored   bool
	FirstMatch bool
}

// NewInput builds an Input defaulted to span = 0..len(subject).
func NewInput(subject string) Input {
	return Input{Subject: subject, Span: Span{From: 0, To: len(subject)}}
}

// WithFirstMatch returns a copy of in with FirstMatch set.
func (in Input) WithFirstMatch(v bool) Input {
	in.FirstMatch = v
	return in
}

// WithAnchored returns a copy of in with Anchored set.
func (in Input) WithAnchored(v bool) Input {
	in.Anchored = v
	return in
}

// WithSpan returns a copy of in restricted to span.
func (in Input) WithSpan(span Span) Input {
	in.Span = span
	return in
}

// Valid reports whether the input's span lies within the subject and
// lands on UTF-8 boundaries.
func (in Input) Valid() bool {
	if !in.Span.Valid() {
		return false
	}
	if in.Span.From < 0 || in.Span.To > len(in.Subject) {
		return false
	}
	return isCharBoundary(in.Subject, in.Span.From) && isCharBoundary(in.Subject, in.Span.To)
}

func isCharBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	// A byte is a UTF-8 continuation byte iff its top two bits are 10.
	return s[i]&0xC0 != 0x80
}

// Match is a validated span over a subject: the overall bounds of a
// successful, non-capturing search.
type Match struct {
	Subject string
	Span    Span
}

// Slice returns the matched substring.
func (m Match) Slice() string {
	return m.Subject[m.Span.From:m.Span.To]
}

// NextMatchStart returns the byte index where the next non-overlapping
// match could start. Empty matches advance by one code point; once
// the span reaches the end of the subject, advancing moves one past
// the end so that iteration terminates.
func (m Match) NextMatchStart() int {
	if !m.Span.Empty() {
		return m.Span.To
	}
	if m.Span.From >= len(m.Subject) {
		return m.Span.From + 1
	}
	_, size := DecodeRune([]byte(m.Subject[m.Span.From:]))
	return m.Span.From + size
}

// Captures holds the bounds of every capture group in a successful
// match, including the implicit group 0 (the overall match).
type Captures struct {
	Subject string
	Spans   []Span
}

// Get returns the match for capture group index, or false if the
// group did not participate.
func (c Captures) Get(index int) (Match, bool) {
	if index < 0 || index >= len(c.Spans) {
		return Match{}, false
	}
	span := c.Spans[index]
	if !span.Valid() {
		return Match{}, false
	}
	return Match{Subject: c.Subject, Span: span}, true
}

// Group0 returns the overall match. Index 0 is always set for a
// successful Captures value.
func (c Captures) Group0() Match {
	m, _ := c.Get(0)
	return m
}

// GroupLen reports the number of capture slots, including group 0.
func (c Captures) GroupLen() int {
	return len(c.Spans)
}
