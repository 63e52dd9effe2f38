package pikevm

import (
	"testing"

	"github.com/coregx/pikeregex/bytecode"
	"github.com/coregx/pikeregex/capture"
	"github.com/coregx/pikeregex/char"
)

func compileVM(t *testing.T, pattern string) *PikeVM {
	t.Helper()
	bc, err := bytecode.Compile(pattern, bytecode.DefaultCompilerConfig())
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", pattern, err)
	}
	return New(bc, func() capture.Strategy { return capture.New(capture.KindCOW, bc.RegisterCount) })
}

func mustFind(t *testing.T, vm *PikeVM, subject string) char.Match {
	t.Helper()
	m, ok := vm.Find(char.NewInput(subject))
	if !ok {
		t.Fatalf("Find(%q): no match", subject)
	}
	return m
}

func TestFindLiteral(t *testing.T) {
	vm := compileVM(t, "abc")
	m := mustFind(t, vm, "xxabcyy")
	if m.Slice() != "abc" {
		t.Errorf("got %q, want abc", m.Slice())
	}
}

func TestFindNoMatch(t *testing.T) {
	vm := compileVM(t, "abc")
	if _, ok := vm.Find(char.NewInput("xyz")); ok {
		t.Error("expected no match")
	}
}

func TestFindAlternation(t *testing.T) {
	vm := compileVM(t, "cat|dog|bird")
	for _, subject := range []string{"I have a cat", "a dog barks", "bird song"} {
		if _, ok := vm.Find(char.NewInput(subject)); !ok {
			t.Errorf("expected match in %q", subject)
		}
	}
}

func TestFindStarIsLeftmostLongest(t *testing.T) {
	vm := compileVM(t, "a*")
	m := mustFind(t, vm, "aaab")
	if m.Slice() != "aaa" {
		t.Errorf("got %q, want aaa (greedy star takes longest)", m.Slice())
	}
}

func TestFindNonGreedyStarIsShortest(t *testing.T) {
	vm := compileVM(t, "a*?")
	input := char.NewInput("aaab").WithAnchored(true)
	caps, ok := vm.FindCaptures(input)
	if !ok {
		t.Fatal("expected match")
	}
	if caps.Group0().Slice() != "" {
		t.Errorf("got %q, want empty (non-greedy star prefers zero reps)", caps.Group0().Slice())
	}
}

func TestFindAnchoredRejectsLaterMatch(t *testing.T) {
	vm := compileVM(t, "abc")
	input := char.NewInput("xabc").WithAnchored(true)
	if _, ok := vm.FindCaptures(input); ok {
		t.Error("anchored search should not match when abc is not at span start")
	}
}

// TestFindBeginTextAnchorRejectsNonzeroSpanStart is the regression
// case for prevChar: a search whose span starts mid-subject must look
// at the real byte before the span, not treat the span boundary as
// the beginning of the subject.
func TestFindBeginTextAnchorRejectsNonzeroSpanStart(t *testing.T) {
	vm := compileVM(t, "^abc")
	subject := "xabc"
	input := char.Input{Subject: subject, Span: char.Span{From: 1, To: len(subject)}}
	if _, ok := vm.FindCaptures(input); ok {
		t.Error("^ should not match at a span start with real content before it")
	}
}

func TestFindBeginTextAnchorAcceptsSpanStartAtSubjectStart(t *testing.T) {
	vm := compileVM(t, "^abc")
	subject := "abcx"
	input := char.Input{Subject: subject, Span: char.Span{From: 0, To: len(subject)}}
	if _, ok := vm.FindCaptures(input); !ok {
		t.Error("^ should match when the span genuinely starts at byte 0")
	}
}

func TestFindBeginLineAnchorSeesRealPrecedingNewline(t *testing.T) {
	vm := compileVM(t, "(?m)^abc")
	subject := "xx\nabc"
	input := char.Input{Subject: subject, Span: char.Span{From: 3, To: len(subject)}}
	if _, ok := vm.FindCaptures(input); !ok {
		t.Error("(?m)^ should match when the byte before the span is a real newline")
	}

	noNewline := "xxxabc"
	input2 := char.Input{Subject: noNewline, Span: char.Span{From: 3, To: len(noNewline)}}
	if _, ok := vm.FindCaptures(input2); ok {
		t.Error("(?m)^ should not match when the byte before the span is not a newline")
	}
}

func TestFindUnanchoredFindsLaterMatch(t *testing.T) {
	vm := compileVM(t, "abc")
	input := char.NewInput("xabc")
	m, ok := vm.Find(input)
	if !ok {
		t.Fatal("expected match")
	}
	if m.Span.From != 1 {
		t.Errorf("match started at %d, want 1", m.Span.From)
	}
}

func TestFindCapturesGroups(t *testing.T) {
	vm := compileVM(t, `(\w+)@(\w+)\.com`)
	caps, ok := vm.FindCaptures(char.NewInput("mail me at user@example.com today"))
	if !ok {
		t.Fatal("expected match")
	}
	g1, ok := caps.Get(1)
	if !ok || g1.Slice() != "user" {
		t.Errorf("group 1 = %v, want user", g1)
	}
	g2, ok := caps.Get(2)
	if !ok || g2.Slice() != "example" {
		t.Errorf("group 2 = %v, want example", g2)
	}
}

func TestFindCapturesOptionalGroupNotParticipating(t *testing.T) {
	vm := compileVM(t, `a(b)?c`)
	caps, ok := vm.FindCaptures(char.NewInput("ac"))
	if !ok {
		t.Fatal("expected match")
	}
	if _, ok := caps.Get(1); ok {
		t.Error("group 1 should not have participated")
	}
}

func TestIsMatchStopsAtFirstAccept(t *testing.T) {
	vm := compileVM(t, "a+")
	if !vm.IsMatch(char.NewInput("aaaaaaaaaa")) {
		t.Error("expected match")
	}
	if vm.IsMatch(char.NewInput("bbb")) {
		t.Error("expected no match")
	}
	caps, ok := vm.FindCaptures(char.NewInput("aaaaaaaaaa").WithFirstMatch(true))
	if !ok || caps.Group0().Slice() != "a" {
		t.Errorf("first-match search = %q, want %q (the first accepting prefix)", caps.Group0().Slice(), "a")
	}
}

func TestFindEmptyMatchAtEndOfSubject(t *testing.T) {
	vm := compileVM(t, "x*")
	m := mustFind(t, vm, "")
	if m.Span.From != 0 || m.Span.To != 0 {
		t.Errorf("got %v, want empty match at 0", m.Span)
	}
}

func TestConcurrentSearchesDoNotShareScratchState(t *testing.T) {
	vm := compileVM(t, "(a+)(b+)")
	done := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		go func() {
			caps, ok := vm.FindCaptures(char.NewInput("aaabbb"))
			done <- ok && caps.Group0().Slice() == "aaabbb"
		}()
	}
	for i := 0; i < 4; i++ {
		if !<-done {
			t.Error("concurrent search produced wrong result")
		}
	}
}

func TestFindAnyCharNotNLExcludesNewline(t *testing.T) {
	vm := compileVM(t, ".")
	if _, ok := vm.Find(char.NewInput("\n")); ok {
		t.Error("'.' should not match a newline")
	}
	if _, ok := vm.Find(char.NewInput("x")); !ok {
		t.Error("'.' should match any non-newline rune")
	}
}

func TestFindBeginEndTextAnchors(t *testing.T) {
	vm := compileVM(t, "^abc$")
	if _, ok := vm.Find(char.NewInput("abc")); !ok {
		t.Error("expected match on exact subject")
	}
	if _, ok := vm.Find(char.NewInput("xabc")); ok {
		t.Error("^ should reject a match not at the start")
	}
	if _, ok := vm.Find(char.NewInput("abcx")); ok {
		t.Error("$ should reject a match not at the end")
	}
}

func TestFindMultibyteRuneClass(t *testing.T) {
	vm := compileVM(t, `\p{Han}+`)
	m := mustFind(t, vm, "hello 漢字 world")
	if m.Slice() != "漢字" {
		t.Errorf("got %q, want 漢字", m.Slice())
	}
}
