package pikeregex

import (
	"runtime"
	"testing"

	"github.com/coregx/pikeregex/bytecode"
	"github.com/coregx/pikeregex/capture"
)

func TestMustCompileLiteral(t *testing.T) {
	re := MustCompile("hello")
	if re.String() != "hello" {
		t.Errorf("String() = %q, want hello", re.String())
	}
	if re.Native() {
		t.Error("Compile should bind the interpreter, not native")
	}
}

func TestMustCompilePanicsOnBadPattern(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on invalid pattern")
		}
	}()
	MustCompile("(unclosed")
}

func TestIsMatchFindFindString(t *testing.T) {
	re := MustCompile(`(\w+)@(\w+)\.(\w+)`)
	if !re.IsMatch("user@example.com") {
		t.Fatal("expected match")
	}
	if got := re.FindString("contact user@example.com please"); got != "user@example.com" {
		t.Errorf("FindString = %q", got)
	}
}

func TestFindIndexReturnsByteOffsets(t *testing.T) {
	re := MustCompile("bc")
	idx := re.FindIndex("abcd")
	if idx == nil || idx[0] != 1 || idx[1] != 3 {
		t.Errorf("FindIndex = %v, want [1 3]", idx)
	}
}

func TestFindIndexNilOnNoMatch(t *testing.T) {
	re := MustCompile("xyz")
	if idx := re.FindIndex("abc"); idx != nil {
		t.Errorf("FindIndex = %v, want nil", idx)
	}
}

func TestFindSubmatchIncludesWholeMatchAndGroups(t *testing.T) {
	re := MustCompile(`(\d+)-(\d+)`)
	got := re.FindSubmatch("range 10-20 here")
	want := []string{"10-20", "10", "20"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("group %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindSubmatchNonParticipatingGroupIsEmptyString(t *testing.T) {
	re := MustCompile(`a(b)?c`)
	got := re.FindSubmatch("ac")
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 groups", got)
	}
	if got[1] != "" {
		t.Errorf("non-participating group = %q, want empty string", got[1])
	}
}

func TestNumSubexp(t *testing.T) {
	re := MustCompile(`(a)(b)(c)`)
	if re.NumSubexp() != 3 {
		t.Errorf("NumSubexp() = %d, want 3", re.NumSubexp())
	}
	re2 := MustCompile("abc")
	if re2.NumSubexp() != 0 {
		t.Errorf("NumSubexp() = %d, want 0", re2.NumSubexp())
	}
}

func TestMatchesIteratorFindsAllNonOverlapping(t *testing.T) {
	re := MustCompile(`\d+`)
	it := re.Matches("a1 b22 c333")
	var got []string
	for {
		m, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, m.Slice())
	}
	want := []string{"1", "22", "333"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatchesIteratorAdvancesPastEmptyMatches(t *testing.T) {
	re := MustCompile(`x*`)
	it := re.Matches("xxbxx")
	count := 0
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		count++
		if count > 20 {
			t.Fatal("iterator did not terminate")
		}
	}
	if count == 0 {
		t.Error("expected at least one match")
	}
}

func TestCapturesIteratorYieldsAbsoluteSpans(t *testing.T) {
	re := MustCompile(`(\w)=(\d)`)
	it := re.Captures("a=1 b=2")
	m1, ok := it.Next()
	if !ok {
		t.Fatal("expected first match")
	}
	if g1, _ := m1.Get(1); g1.Slice() != "a" {
		t.Errorf("first match group 1 = %q, want a", g1.Slice())
	}
	m2, ok := it.Next()
	if !ok {
		t.Fatal("expected second match")
	}
	if g1, _ := m2.Get(1); g1.Slice() != "b" {
		t.Errorf("second match group 1 = %q, want b", g1.Slice())
	}
	if _, ok := it.Next(); ok {
		t.Error("expected iterator to be exhausted")
	}
}

// TestCompileInterpreterAndCompileNativeAgree is the cross-engine
// oracle: interpreter and JIT output must match for every capture
// strategy, not just the default one. Patterns with no explicit
// groups keep regCount<=2, which forces the register-only strategy
// regardless of the requested Kind (capture.New's override), so that
// pairing is exercised with group-free patterns; the other three
// kinds need patterns with explicit groups for their Kind selection
// to actually take effect.
func TestCompileInterpreterAndCompileNativeAgree(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("native backend only targets amd64")
	}

	registerPatterns := []string{"abc", "a+b*c?", "x*", "^abc$"}
	groupPatterns := []string{
		"(cat|dog|bird)", `(\w+)@(\w+)\.(\w+)`, "a(b)?c", `(\d+)-(\d+)`,
	}
	subjects := []string{"abc", "xabcy", "I have a dog", "user@example.com", "ac", "abcd", "10-20"}

	cases := []struct {
		kind     capture.Kind
		patterns []string
	}{
		{capture.KindRegister, registerPatterns},
		{capture.KindArray, groupPatterns},
		{capture.KindCOW, groupPatterns},
		{capture.KindTree, groupPatterns},
	}

	for _, tc := range cases {
		config := Config{Capture: tc.kind, Compiler: bytecode.DefaultCompilerConfig()}
		for _, pattern := range tc.patterns {
			interp, err := CompileInterpreter(pattern, config)
			if err != nil {
				t.Fatalf("CompileInterpreter(%q): %v", pattern, err)
			}
			native, err := CompileNative(pattern, config)
			if err != nil {
				t.Fatalf("CompileNative(%q): %v", pattern, err)
			}

			for _, subject := range subjects {
				wantCaps, wantOK := interp.FindCaptures(subject)
				gotCaps, gotOK := native.FindCaptures(subject)
				if wantOK != gotOK {
					t.Errorf("kind=%v %q on %q: interpreter ok=%v, native ok=%v",
						tc.kind, pattern, subject, wantOK, gotOK)
					continue
				}
				if !wantOK {
					continue
				}
				if len(wantCaps.Spans) != len(gotCaps.Spans) {
					t.Errorf("kind=%v %q on %q: span count differs", tc.kind, pattern, subject)
					continue
				}
				for i := range wantCaps.Spans {
					if wantCaps.Spans[i] != gotCaps.Spans[i] {
						t.Errorf("kind=%v %q on %q: group %d interpreter=%v native=%v",
							tc.kind, pattern, subject, i, wantCaps.Spans[i], gotCaps.Spans[i])
					}
				}
			}
		}
	}
}

func TestCompileNativeUnsupportedArchError(t *testing.T) {
	if runtime.GOARCH == "amd64" {
		t.Skip("only meaningful off amd64")
	}
	if _, err := CompileNative("abc", DefaultConfig()); err == nil {
		t.Error("expected an error compiling native on a non-amd64 target")
	}
}
