package bytecode

import (
	"fmt"
	"regexp/syntax"
	"sort"
	"strings"
	"unicode"

	"github.com/coregx/pikeregex/char"
)

// OutlineThreshold is the interval-count above which a character
// class is placed in the outlined-classes table and referenced by
// ConsumeOutlined, instead of being inlined via ConsumeClass. 4
// matches the reference implementation's `class.len() > 4` check.
const OutlineThreshold = 4

// CompilerConfig controls how the parsed AST is lowered to bytecode.
type CompilerConfig struct {
	// Unicode interprets classes as Unicode property sets; when false,
	// the parser adapter is expected to have already restricted itself
	// to byte-level/ASCII classes. The compiler itself always operates
	// rune-level regardless of this flag.
	Unicode bool
	// CaseInsensitive is applied by the parser adapter; the compiler
	// only needs to fold literal runes it is handed if the parser left
	// FoldCase set on a node (regexp/syntax does this for some Perl
	// patterns rather than pre-expanding the class itself).
	CaseInsensitive bool
	// CapturesEnabled, when false, makes the compiler omit WriteReg
	// for explicit groups; only the overall match (registers 0/1) is
	// recorded.
	CapturesEnabled bool
	// MaxRecursionDepth bounds the compiler's recursion over the AST.
	MaxRecursionDepth int
}

// DefaultCompilerConfig returns the default configuration: Unicode
// classes, case-sensitive, captures enabled.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Unicode:           true,
		CaseInsensitive:   false,
		CapturesEnabled:   true,
		MaxRecursionDepth: 100,
	}
}

// Compiler lowers a regexp/syntax AST into Bytecode. One Compiler
// compiles exactly one pattern; construct a fresh one per Compile call.
type Compiler struct {
	bc       Bytecode
	outlined map[string]int
	config   CompilerConfig
	depth    int
	captures int
}

// Compile parses pattern with regexp/syntax and lowers it to
// Bytecode. It rejects patterns using look-around beyond the six
// anchor kinds; non-UTF-8-representable class members are rejected by
// construction since regexp/syntax always yields valid runes.
func Compile(pattern string, config CompilerConfig) (bc *Bytecode, err error) {
	// Unicode-vs-ASCII class interpretation is a parser-adapter
	// concern (regexp/syntax's UnicodeGroups flag, already part of
	// syntax.Perl); the compiler itself is rune-level either way.
	flags := syntax.Perl
	if config.CaseInsensitive {
		flags |= syntax.FoldCase
	}
	re, err := syntax.Parse(pattern, flags)
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Err: err}
	}

	c := &Compiler{
		config:   config,
		outlined: make(map[string]int),
	}
	c.captures = countCaptures(re)

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*CompileError)
			if !ok {
				panic(r)
			}
			if ce.Pattern == "" {
				ce.Pattern = pattern
			}
			bc, err = nil, ce
		}
	}()

	barrier := c.compileRegexp(re, true)
	c.push(Instruction{Op: OpAccept}, barrier)

	c.bc.RegisterCount = 2
	if config.CapturesEnabled {
		c.bc.RegisterCount = 2 * (c.captures + 1)
	}
	return &c.bc, nil
}

func countCaptures(re *syntax.Regexp) int {
	max := 0
	var walk func(*syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		if r.Op == syntax.OpCapture && r.Cap > max {
			max = r.Cap
		}
		for _, sub := range r.Sub {
			walk(sub)
		}
	}
	walk(re)
	return max
}

func (c *Compiler) currentPC() int {
	return len(c.bc.Instructions)
}

func (c *Compiler) push(instr Instruction, barrier bool) {
	c.bc.Instructions = append(c.bc.Instructions, instr)
	c.bc.Barriers = append(c.bc.Barriers, barrier)
}

func fork2(a, b int, greedy bool) Instruction {
	if greedy {
		return Instruction{Op: OpFork2, A: a, B: b}
	}
	return Instruction{Op: OpFork2, A: b, B: a}
}

// compileRegexp compiles re, taking whether the first emitted
// instruction needs a barrier, and returning whether the instruction
// following it needs one.
func (c *Compiler) compileRegexp(re *syntax.Regexp, barrier bool) bool {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > c.config.MaxRecursionDepth {
		panic(&CompileError{Err: ErrTooComplex})
	}

	switch re.Op {
	case syntax.OpEmptyMatch:
		return barrier
	case syntax.OpNoMatch:
		// An unmatchable expression: an empty ConsumeClass, which no
		// character satisfies, so it never lets a thread through.
		c.push(Instruction{Op: OpConsumeClass}, barrier)
		return false
	case syntax.OpLiteral:
		return c.compileLiteral(re, barrier)
	case syntax.OpCharClass:
		return c.compileClass(runesToIntervals(re.Rune), barrier)
	case syntax.OpAnyChar:
		lo, hi := char.AllValidInterval().From, char.AllValidInterval().To
		return c.compileClass([]char.Interval{{From: lo, To: hi}}, barrier)
	case syntax.OpAnyCharNotNL:
		nl := char.FromRune('\n')
		return c.compileClass([]char.Interval{
			{From: 0, To: nl - 1},
			{From: nl + 1, To: char.MaxRune},
		}, barrier)
	case syntax.OpBeginLine:
		c.push(Instruction{Op: OpAssertion, Look: LookStartLF}, barrier)
		return false
	case syntax.OpEndLine:
		c.push(Instruction{Op: OpAssertion, Look: LookEndLF}, barrier)
		return false
	case syntax.OpBeginText:
		c.push(Instruction{Op: OpAssertion, Look: LookStart}, barrier)
		return false
	case syntax.OpEndText:
		c.push(Instruction{Op: OpAssertion, Look: LookEnd}, barrier)
		return false
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		panic(&CompileError{Err: ErrUnsupportedLookaround})
	case syntax.OpCapture:
		return c.compileCapture(re, barrier)
	case syntax.OpStar:
		return c.compileRepeat(re.Sub[0], 0, -1, !nonGreedy(re), barrier)
	case syntax.OpPlus:
		return c.compileRepeat(re.Sub[0], 1, -1, !nonGreedy(re), barrier)
	case syntax.OpQuest:
		return c.compileRepeat(re.Sub[0], 0, 1, !nonGreedy(re), barrier)
	case syntax.OpRepeat:
		max := re.Max
		return c.compileRepeat(re.Sub[0], re.Min, max, !nonGreedy(re), barrier)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			barrier = c.compileRegexp(sub, barrier)
		}
		return barrier
	case syntax.OpAlternate:
		return c.compileAlternate(re.Sub, barrier)
	default:
		panic(&CompileError{Err: fmt.Errorf("unsupported AST node: %v", re.Op)})
	}
}

func nonGreedy(re *syntax.Regexp) bool {
	return re.Flags&syntax.NonGreedy != 0
}

func (c *Compiler) compileLiteral(re *syntax.Regexp, barrier bool) bool {
	for _, r := range re.Rune {
		if re.Flags&syntax.FoldCase != 0 {
			barrier = c.compileClass(foldedRanges(r), barrier)
			continue
		}
		c.push(Instruction{Op: OpConsume, Char: char.FromRune(r)}, barrier)
		barrier = false
	}
	return barrier
}

func foldedRanges(r rune) []char.Interval {
	variants := []rune{r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		variants = append(variants, f)
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i] < variants[j] })
	out := make([]char.Interval, 0, len(variants))
	for _, v := range variants {
		out = append(out, char.Interval{From: char.FromRune(v), To: char.FromRune(v)})
	}
	return out
}

func runesToIntervals(runes []rune) []char.Interval {
	out := make([]char.Interval, 0, len(runes)/2)
	for i := 0; i+1 < len(runes); i += 2 {
		out = append(out, char.Interval{From: char.FromRune(runes[i]), To: char.FromRune(runes[i+1])})
	}
	return out
}

func (c *Compiler) compileClass(ranges []char.Interval, barrier bool) bool {
	if len(ranges) == 0 {
		// An empty class can never match; compiled as an empty
		// ConsumeClass, same treatment as OpNoMatch.
		c.push(Instruction{Op: OpConsumeClass}, barrier)
		return false
	}
	if len(ranges) > OutlineThreshold {
		key := classKey(ranges)
		id, ok := c.outlined[key]
		if !ok {
			id = len(c.bc.OutlinedClasses)
			c.outlined[key] = id
			c.bc.OutlinedClasses = append(c.bc.OutlinedClasses, ranges)
		}
		c.push(Instruction{Op: OpConsumeOutlined, Class: id}, barrier)
	} else {
		c.push(Instruction{Op: OpConsumeClass, Ranges: ranges}, barrier)
	}
	return false
}

func classKey(ranges []char.Interval) string {
	var b strings.Builder
	for _, r := range ranges {
		fmt.Fprintf(&b, "%d-%d,", r.From, r.To)
	}
	return b.String()
}

func (c *Compiler) compileCapture(re *syntax.Regexp, barrier bool) bool {
	if !c.config.CapturesEnabled {
		return c.compileRegexp(re.Sub[0], barrier)
	}
	index := re.Cap
	c.push(Instruction{Op: OpWriteReg, Reg: uint32(index * 2)}, barrier)
	inner := c.compileRegexp(re.Sub[0], false)
	c.push(Instruction{Op: OpWriteReg, Reg: uint32(index*2 + 1)}, inner)
	return false
}

// compileRepeat implements the repetition lowering rules,
// using a backpatching scheme:
// mandatory copies are emitted min times, then either a single
// back-branching Fork2 (unbounded) or (max-min) placeholder Fork2s
// each followed by a copy (bounded), backpatched once their common
// end is known.
func (c *Compiler) compileRepeat(sub *syntax.Regexp, min int, max int, greedy bool, barrier bool) bool {
	var lastIterStart int
	haveLastIterStart := false
	for i := 0; i < min; i++ {
		if i == min-1 {
			lastIterStart = c.currentPC()
			haveLastIterStart = true
		}
		barrier = c.compileRegexp(sub, barrier)
	}

	if max >= 0 {
		diff := max - min
		forkPCs := make([]int, 0, diff)
		for i := 0; i < diff; i++ {
			forkPCs = append(forkPCs, c.currentPC())
			c.push(Instruction{Op: OpFork2}, barrier)
			barrier = c.compileRegexp(sub, false)
		}
		endPC := c.currentPC()
		for _, pc := range forkPCs {
			c.bc.Instructions[pc] = fork2(pc+1, endPC, greedy)
		}
		return true
	}

	// max == -1: unbounded.
	if haveLastIterStart {
		c.push(fork2(lastIterStart, c.currentPC()+1, greedy), barrier)
		c.bc.Barriers[lastIterStart] = true
		return false
	}

	forkPC := c.currentPC()
	c.push(Instruction{Op: OpFork2}, true)
	barrier = c.compileRegexp(sub, false)
	c.push(Instruction{Op: OpJmp, Target: forkPC}, barrier)
	c.bc.Instructions[forkPC] = fork2(forkPC+1, c.currentPC(), greedy)
	return false
}

func (c *Compiler) compileAlternate(subs []*syntax.Regexp, barrier bool) bool {
	forkPC := c.currentPC()
	c.push(Instruction{Op: OpForkN}, barrier) // placeholder, patched below
	targets := make([]int, 0, len(subs))
	jmps := make([]int, 0, len(subs)-1)
	for i, sub := range subs {
		targets = append(targets, c.currentPC())
		branchBarrier := c.compileRegexp(sub, false)
		if i < len(subs)-1 {
			jmps = append(jmps, c.currentPC())
			c.push(Instruction{Op: OpJmp}, branchBarrier) // target patched below
		}
	}
	c.bc.Instructions[forkPC] = Instruction{Op: OpForkN, List: targets}
	end := c.currentPC()
	for _, pc := range jmps {
		c.bc.Instructions[pc].Target = end
	}
	return true
}
