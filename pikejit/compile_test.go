package pikejit

import (
	"runtime"
	"testing"

	"github.com/coregx/pikeregex/bytecode"
)

// These tests exercise Compile's code generation and region-sizing
// logic structurally: they check the layout and buffer Compile
// produces without ever invoking the generated routine, since running
// it is equivalent to running the toolchain's own test binary on
// whatever this process is already running under.

func compileBC(t *testing.T, pattern string) *bytecode.Bytecode {
	t.Helper()
	bc, err := bytecode.Compile(pattern, bytecode.DefaultCompilerConfig())
	if err != nil {
		t.Fatalf("bytecode.Compile(%q): %v", pattern, err)
	}
	return bc
}

func TestCompileProducesExecutableRoutine(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("pikejit only targets amd64")
	}
	bc := compileBC(t, "a+b*")
	j, err := Compile(bc, CaptureCOW)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer j.Close()
	if j.codeAddr == 0 {
		t.Error("codeAddr is zero")
	}
	if j.regCount != bc.RegisterCount {
		t.Errorf("regCount = %d, want %d", j.regCount, bc.RegisterCount)
	}
}

func TestCompileRejectsNonAmd64(t *testing.T) {
	if runtime.GOARCH == "amd64" {
		t.Skip("only meaningful off amd64")
	}
	bc := compileBC(t, "a")
	if _, err := Compile(bc, CaptureRegister); err != ErrUnsupportedArch {
		t.Errorf("got %v, want ErrUnsupportedArch", err)
	}
}

func TestMaxLiveThreadsBoundsInstructionCountPlusOne(t *testing.T) {
	bc := compileBC(t, "(a|b|c)(d|e|f)+")
	if got, want := maxLiveThreads(bc), bc.Len()+1; got != want {
		t.Errorf("maxLiveThreads = %d, want %d", got, want)
	}
}

func TestLayoutRegionOrdersSectionsWithoutOverlap(t *testing.T) {
	bc := compileBC(t, `(\w+)@(\w+)`)
	cg := newCG(CaptureArray, bc.RegisterCount, maxLiveThreads(bc))
	layout := layoutRegion(bc.Len(), cg)

	sections := []struct {
		name string
		off  int32
	}{
		{"engine", layout.engineOff},
		{"visited", layout.visitedOff},
		{"activeHeader", layout.activeHeaderOff},
		{"activeArray", layout.activeArrayOff},
		{"nextHeader", layout.nextHeaderOff},
		{"nextArray", layout.nextArrayOff},
		{"capture", layout.captureOff},
	}
	for i := 1; i < len(sections); i++ {
		if sections[i].off <= sections[i-1].off {
			t.Errorf("%s (off %d) does not follow %s (off %d)",
				sections[i].name, sections[i].off, sections[i-1].name, sections[i-1].off)
		}
	}
	if int64(layout.captureOff)+int64(cg.InitMemSize()) != layout.totalSize {
		t.Errorf("totalSize = %d, want captureOff+InitMemSize = %d",
			layout.totalSize, int64(layout.captureOff)+int64(cg.InitMemSize()))
	}
}

func TestNewCGForcesRegisterWhenNoExplicitGroups(t *testing.T) {
	for _, kind := range []CaptureKind{CaptureRegister, CaptureArray, CaptureCOW, CaptureTree} {
		cg := newCG(kind, 2, 10)
		if _, ok := cg.(*RegisterCG); !ok {
			t.Errorf("newCG(%v, 2, _) = %T, want *RegisterCG", kind, cg)
		}
	}
}

func TestNewCGHonorsKindForMultiGroupPatterns(t *testing.T) {
	if _, ok := newCG(CaptureArray, 6, 10).(*ArrayCG); !ok {
		t.Error("newCG(CaptureArray, 6, _) did not return *ArrayCG")
	}
	if _, ok := newCG(CaptureCOW, 6, 10).(*CowCG); !ok {
		t.Error("newCG(CaptureCOW, 6, _) did not return *CowCG")
	}
	if _, ok := newCG(CaptureTree, 6, 10).(*TreeCG); !ok {
		t.Error("newCG(CaptureTree, 6, _) did not return *TreeCG")
	}
}

func TestCompileEmitsNonEmptyCodeForEveryCaptureKind(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("pikejit only targets amd64")
	}
	bc := compileBC(t, "(a+)(b+)?")
	for _, kind := range []CaptureKind{CaptureRegister, CaptureArray, CaptureCOW, CaptureTree} {
		j, err := Compile(bc, kind)
		if err != nil {
			t.Fatalf("Compile(%v): %v", kind, err)
		}
		j.Close()
	}
}
