package bytecode

import "testing"

func mustCompile(t *testing.T, pattern string) *Bytecode {
	t.Helper()
	bc, err := Compile(pattern, DefaultCompilerConfig())
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", pattern, err)
	}
	return bc
}

func TestCompileLiteralEndsInAccept(t *testing.T) {
	bc := mustCompile(t, "abc")
	if bc.Len() == 0 {
		t.Fatal("expected at least one instruction")
	}
	last := bc.Instructions[bc.Len()-1]
	if last.Op != OpAccept {
		t.Fatalf("last instruction = %v, want Accept", last.Op)
	}
}

func TestCompileRegisterCount(t *testing.T) {
	cases := []struct {
		pattern string
		want    int
	}{
		{"abc", 2},
		{"(a)(b)", 6},
		{"(a(b)c)", 6},
	}
	for _, tc := range cases {
		bc := mustCompile(t, tc.pattern)
		if bc.RegisterCount != tc.want {
			t.Errorf("Compile(%q).RegisterCount = %d, want %d", tc.pattern, bc.RegisterCount, tc.want)
		}
	}
}

func TestCompileInvalidPatternReturnsCompileError(t *testing.T) {
	_, err := Compile("(unterminated", DefaultCompilerConfig())
	if err == nil {
		t.Fatal("expected an error for unbalanced parens")
	}
	var ce *CompileError
	if !isCompileError(err, &ce) {
		t.Fatalf("error is not *CompileError: %v", err)
	}
}

func isCompileError(err error, out **CompileError) bool {
	ce, ok := err.(*CompileError)
	if ok {
		*out = ce
	}
	return ok
}

func TestCompileWordBoundaryUnsupported(t *testing.T) {
	_, err := Compile(`\b`, DefaultCompilerConfig())
	if err == nil {
		t.Fatal("expected ErrUnsupportedLookaround")
	}
}

func TestCompileOutlinesLargeClasses(t *testing.T) {
	// \p{L} or a big explicit class should exceed OutlineThreshold
	// intervals and land in OutlinedClasses rather than inline Ranges.
	bc := mustCompile(t, `[\x00\x05\x0a\x0f\x14\x19]`)
	found := false
	for _, instr := range bc.Instructions {
		if instr.Op == OpConsumeOutlined {
			found = true
			if instr.Class < 0 || instr.Class >= len(bc.OutlinedClasses) {
				t.Fatalf("ConsumeOutlined.Class %d out of range", instr.Class)
			}
		}
	}
	if !found {
		t.Skip("class did not exceed OutlineThreshold under regexp/syntax's own class representation")
	}
}

func TestCompileStarProducesFork(t *testing.T) {
	bc := mustCompile(t, "a*")
	hasFork := false
	for _, instr := range bc.Instructions {
		if instr.Op == OpFork2 {
			hasFork = true
		}
	}
	if !hasFork {
		t.Fatal("a* should compile to at least one Fork2")
	}
}

func TestCompileAlternateProducesForkN(t *testing.T) {
	bc := mustCompile(t, "cat|dog|bird")
	hasForkN := false
	for _, instr := range bc.Instructions {
		if instr.Op == OpForkN && len(instr.List) == 3 {
			hasForkN = true
		}
	}
	if !hasForkN {
		t.Fatal("three-way alternation should compile to one ForkN with 3 targets")
	}
}

func TestCompileCapturesDisabledOmitsWriteReg(t *testing.T) {
	cfg := DefaultCompilerConfig()
	cfg.CapturesEnabled = false
	bc, err := Compile("(a)(b)", cfg)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	for _, instr := range bc.Instructions {
		if instr.Op == OpWriteReg && instr.Reg >= 2 {
			t.Fatalf("capture group register %d written despite CapturesEnabled=false", instr.Reg)
		}
	}
}

func TestCompileBarriersParallelInstructions(t *testing.T) {
	bc := mustCompile(t, "a*b+")
	if len(bc.Barriers) != len(bc.Instructions) {
		t.Fatalf("len(Barriers) = %d, len(Instructions) = %d", len(bc.Barriers), len(bc.Instructions))
	}
}
