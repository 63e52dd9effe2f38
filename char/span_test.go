package char

import "testing"

func TestInvalidSpan(t *testing.T) {
	s := InvalidSpan()
	if s.Valid() {
		t.Fatalf("InvalidSpan() reported valid: %+v", s)
	}
}

func TestSpanEmpty(t *testing.T) {
	if !(Span{From: 3, To: 3}).Empty() {
		t.Error("Span{3,3} should be empty")
	}
	if (Span{From: 3, To: 4}).Empty() {
		t.Error("Span{3,4} should not be empty")
	}
}

func TestInputValidRejectsOutOfBounds(t *testing.T) {
	in := NewInput("hello")
	in.Span = Span{From: -1, To: 5}
	if in.Valid() {
		t.Fatal("negative From should be invalid")
	}
	in.Span = Span{From: 0, To: 6}
	if in.Valid() {
		t.Fatal("To past subject length should be invalid")
	}
}

func TestInputValidRejectsNonCharBoundary(t *testing.T) {
	// "é" is encoded as two bytes; index 1 is a continuation byte.
	in := NewInput("é")
	in.Span = Span{From: 1, To: 2}
	if in.Valid() {
		t.Fatal("span starting mid-rune should be invalid")
	}
}

func TestWithFirstMatchAndAnchoredAreCopies(t *testing.T) {
	base := NewInput("x")
	fm := base.WithFirstMatch(true)
	if base.FirstMatch {
		t.Fatal("WithFirstMatch mutated the receiver")
	}
	if !fm.FirstMatch {
		t.Fatal("WithFirstMatch did not set the copy")
	}
	an := base.WithAnchored(true)
	if base.Anchored || !an.Anchored {
		t.Fatal("WithAnchored should not mutate the receiver")
	}
}

func TestMatchNextMatchStartNonEmpty(t *testing.T) {
	m := Match{Subject: "abcdef", Span: Span{From: 1, To: 3}}
	if got := m.NextMatchStart(); got != 3 {
		t.Fatalf("NextMatchStart() = %d, want 3", got)
	}
}

func TestMatchNextMatchStartEmptyAdvancesOneRune(t *testing.T) {
	m := Match{Subject: "aébc", Span: Span{From: 1, To: 1}}
	// byte 1 is the start of 'é', a 2-byte rune.
	if got := m.NextMatchStart(); got != 3 {
		t.Fatalf("NextMatchStart() = %d, want 3", got)
	}
}

func TestMatchNextMatchStartEmptyAtEndOfSubject(t *testing.T) {
	m := Match{Subject: "abc", Span: Span{From: 3, To: 3}}
	if got := m.NextMatchStart(); got != 4 {
		t.Fatalf("NextMatchStart() = %d, want len+1=4 so iteration terminates", got)
	}
}

func TestCapturesGet(t *testing.T) {
	caps := Captures{
		Subject: "hello world",
		Spans:   []Span{{From: 0, To: 11}, InvalidSpan(), {From: 6, To: 11}},
	}
	if m, ok := caps.Get(0); !ok || m.Slice() != "hello world" {
		t.Fatalf("Get(0) = (%v, %v)", m, ok)
	}
	if _, ok := caps.Get(1); ok {
		t.Fatal("Get(1) should report no participation for an invalid span")
	}
	if m, ok := caps.Get(2); !ok || m.Slice() != "world" {
		t.Fatalf("Get(2) = (%v, %v)", m, ok)
	}
	if _, ok := caps.Get(99); ok {
		t.Fatal("Get out of range should report false")
	}
}

func TestCapturesGroup0AndLen(t *testing.T) {
	caps := Captures{Subject: "ab", Spans: []Span{{From: 0, To: 2}}}
	if caps.Group0().Slice() != "ab" {
		t.Fatalf("Group0() = %q", caps.Group0().Slice())
	}
	if caps.GroupLen() != 1 {
		t.Fatalf("GroupLen() = %d, want 1", caps.GroupLen())
	}
}
