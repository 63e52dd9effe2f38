// Package pikeregex provides a Thompson-NFA regex engine with two
// interchangeable backends sharing one bytecode program: a Pike-VM
// interpreter (always available, the correctness reference) and an
// x86-64 JIT (amd64 only, ErrUnsupportedArch elsewhere).
//
// Basic usage:
//
//	re, err := pikeregex.Compile(`(\w+)@(\w+)\.(\w+)`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if re.IsMatch("user@example.com") {
//	    fmt.Println(re.FindString("user@example.com"))
//	}
package pikeregex

import (
	"github.com/coregx/pikeregex/bytecode"
	"github.com/coregx/pikeregex/capture"
	"github.com/coregx/pikeregex/char"
	"github.com/coregx/pikeregex/pikejit"
	"github.com/coregx/pikeregex/pikevm"
)

// engine is the small interface both backends satisfy; Regex dispatches
// through it rather than branching on which one is present at every
// call.
type engine interface {
	FindCaptures(input char.Input) (char.Captures, bool)
	Find(input char.Input) (char.Match, bool)
	IsMatch(input char.Input) bool
}

// Config controls compilation: which capture-recording strategy the
// compiled program uses and how the pattern's AST is lowered.
type Config struct {
	Capture  capture.Kind
	Compiler bytecode.CompilerConfig
}

// DefaultConfig returns KindCOW (the general-purpose default strategy)
// and bytecode.DefaultCompilerConfig.
func DefaultConfig() Config {
	return Config{
		Capture:  capture.KindCOW,
		Compiler: bytecode.DefaultCompilerConfig(),
	}
}

// Regex is a compiled pattern bound to one backend (interpreter or
// native). Safe for concurrent use: the bytecode and capture strategy
// factory are read-only, and each search borrows its own scratch state
// (see pikevm.PikeVM and pikejit.Jitted).
type Regex struct {
	eng     engine
	pattern string
	bc      *bytecode.Bytecode
	native  bool
}

// Compile compiles pattern into the Pike-VM interpreter with
// DefaultConfig. This is the backend to reach for unless a caller has
// already measured that native code is worth its compile-time cost.
func Compile(pattern string) (*Regex, error) {
	return CompileInterpreter(pattern, DefaultConfig())
}

// MustCompile compiles pattern and panics on error.
func MustCompile(pattern string) *Regex {
	re, err := Compile(pattern)
	if err != nil {
		panic("pikeregex: Compile(" + pattern + "): " + err.Error())
	}
	return re
}

// CompileInterpreter compiles pattern to bytecode and binds it to the
// Pike-VM interpreter.
func CompileInterpreter(pattern string, config Config) (*Regex, error) {
	bc, err := bytecode.Compile(pattern, config.Compiler)
	if err != nil {
		return nil, err
	}
	vm := pikevm.New(bc, func() capture.Strategy { return capture.New(config.Capture, bc.RegisterCount) })
	return &Regex{eng: vm, pattern: pattern, bc: bc}, nil
}

// CompileNative compiles pattern to bytecode and JIT-compiles it to a
// native x86-64 routine. Returns pikejit.ErrUnsupportedArch on any
// other GOARCH.
func CompileNative(pattern string, config Config) (*Regex, error) {
	bc, err := bytecode.Compile(pattern, config.Compiler)
	if err != nil {
		return nil, err
	}
	kind := pikejit.CaptureKind(config.Capture)
	jitted, err := pikejit.Compile(bc, kind)
	if err != nil {
		return nil, err
	}
	return &Regex{eng: jitted, pattern: pattern, bc: bc, native: true}, nil
}

// String returns the source pattern.
func (r *Regex) String() string {
	return r.pattern
}

// Native reports whether r runs on the JIT backend rather than the
// interpreter.
func (r *Regex) Native() bool {
	return r.native
}

// NumSubexp returns the number of capture groups, not counting group 0
// (0 when the pattern was compiled with captures disabled).
func (r *Regex) NumSubexp() int {
	return r.bc.RegisterCount/2 - 1
}

// IsMatch reports whether subject contains a match, without computing
// spans beyond what is needed to stop at the first accepting thread.
func (r *Regex) IsMatch(subject string) bool {
	return r.eng.IsMatch(char.NewInput(subject))
}

// Find returns the overall match span, or false if subject does not
// match.
func (r *Regex) Find(subject string) (char.Match, bool) {
	return r.eng.Find(char.NewInput(subject))
}

// FindString returns the matched substring, or "" if subject does not
// match. Indistinguishable from an empty match; use Find to tell them
// apart.
func (r *Regex) FindString(subject string) string {
	m, ok := r.Find(subject)
	if !ok {
		return ""
	}
	return m.Slice()
}

// FindIndex returns the [start, end) byte offsets of the overall
// match, or nil if subject does not match.
func (r *Regex) FindIndex(subject string) []int {
	m, ok := r.Find(subject)
	if !ok {
		return nil
	}
	return []int{m.Span.From, m.Span.To}
}

// FindCaptures returns every capture group's span (group 0 is the
// overall match), or false if subject does not match.
func (r *Regex) FindCaptures(subject string) (char.Captures, bool) {
	return r.eng.FindCaptures(char.NewInput(subject))
}

// FindSubmatch returns the matched text of the overall match and every
// capture group, an empty string for groups that did not participate. Returns nil
// if subject does not match.
func (r *Regex) FindSubmatch(subject string) []string {
	caps, ok := r.FindCaptures(subject)
	if !ok {
		return nil
	}
	out := make([]string, caps.GroupLen())
	for i := range out {
		if m, ok := caps.Get(i); ok {
			out[i] = m.Slice()
		}
	}
	return out
}

// MatchIterator walks successive non-overlapping matches of a Regex
// over one Input, calling Find in a loop and advancing past each
// result via Match.NextMatchStart — the same generic iterator shape as
// the reference implementation's FindAll, specialized here to *Regex
// since Go has no object-safety constraint forcing it to stay generic
// over the engine trait.
type MatchIterator struct {
	re    *Regex
	input char.Input
	done  bool
}

// Matches returns an iterator over every non-overlapping match of r in
// subject.
func (r *Regex) Matches(subject string) *MatchIterator {
	return &MatchIterator{re: r, input: char.NewInput(subject)}
}

// Next advances the iterator and returns the next match, or false once
// the subject is exhausted.
func (it *MatchIterator) Next() (char.Match, bool) {
	if it.done || !it.input.Span.Valid() {
		return char.Match{}, false
	}
	// The engine searches the whole subject restricted to the input's
	// span, so spans come back absolute and anchors see the real
	// character before the span start.
	abs, ok := it.re.eng.Find(it.input)
	if !ok {
		it.done = true
		return char.Match{}, false
	}
	next := abs.NextMatchStart()
	if next > len(it.input.Subject) {
		it.done = true
	}
	it.input.Span.From = next
	return abs, true
}

// CaptureIterator is MatchIterator's capture-recording counterpart.
type CaptureIterator struct {
	re    *Regex
	input char.Input
	done  bool
}

// Captures returns an iterator over every non-overlapping match of r in
// subject, yielding each match's full capture set.
func (r *Regex) Captures(subject string) *CaptureIterator {
	return &CaptureIterator{re: r, input: char.NewInput(subject)}
}

// Next advances the iterator and returns the next capture set, or
// false once the subject is exhausted.
func (it *CaptureIterator) Next() (char.Captures, bool) {
	if it.done || !it.input.Span.Valid() {
		return char.Captures{}, false
	}
	abs, ok := it.re.eng.FindCaptures(it.input)
	if !ok {
		it.done = true
		return char.Captures{}, false
	}
	next := abs.Group0().NextMatchStart()
	if next > len(it.input.Subject) {
		it.done = true
	}
	it.input.Span.From = next
	return abs, true
}
