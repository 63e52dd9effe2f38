package pikejit

import (
	"runtime"
	"unsafe"

	"github.com/coregx/pikeregex/char"
)

// Jitted wraps one compiled native routine: an executable buffer plus
// the scratch-region layout and register count Compile derived from
// the source Bytecode, the fields FindCaptures needs to build each search's
// CallFrame and scratch allocation.
type Jitted struct {
	buf       *execBuf
	codeAddr  uintptr
	layout    regionLayout
	regCount  int
}

func newJitted(code []byte, layout regionLayout, cg CGImpl, regCount int) (*Jitted, error) {
	buf, err := newExecBuf(len(code))
	if err != nil {
		return nil, err
	}
	if err := buf.write(code); err != nil {
		buf.close()
		return nil, err
	}
	if err := buf.makeExecutable(); err != nil {
		buf.close()
		return nil, err
	}
	return &Jitted{buf: buf, codeAddr: buf.addr(), layout: layout, regCount: regCount}, nil
}

// Close releases the executable mapping. A Jitted must not be used
// after Close.
func (j *Jitted) Close() error {
	return j.buf.close()
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// FindCaptures runs one search, allocating a fresh scratch region
// sized by the layout Compile computed. Unlike pikevm.PikeVM, which
// pools runState across searches, each call here allocates anew: the
// scratch region's size depends on the generous maxLiveThreads/
// maxNodes bounds baked in at Compile time, so pooling would need a
// sync.Pool keyed by Jitted the way PikeVM pools by Bytecode — left
// as a follow-on since correctness, not allocation reuse, is this
// package's contract.
func (j *Jitted) FindCaptures(input char.Input) (char.Captures, bool) {
	if !input.Valid() {
		return char.Captures{}, false
	}

	region := make([]byte, j.layout.totalSize)
	spans := make([]char.Span, j.regCount/2)
	for i := range spans {
		spans[i] = char.InvalidSpan() // TreeCG leaves never-written registers as-is
	}

	frame := &CallFrame{
		SubjectPtr:    uintptr(unsafe.Pointer(unsafe.StringData(input.Subject))),
		SubjectLen:    int64(len(input.Subject)),
		OutSpansPtr:   uintptr(unsafe.Pointer(&spans[0])),
		OutSpansCount: int64(len(spans)),
		StatePtr:      uintptr(unsafe.Pointer(&region[0])),
		SpanFrom:      int64(input.Span.From),
		SpanTo:        int64(input.Span.To),
		FirstMatch:    boolToInt64(input.FirstMatch),
		Anchored:      boolToInt64(input.Anchored),
		PrevChar:      uint64(char.PrevChar(input.Subject, input.Span.From)),
	}

	matched := callJIT(j.codeAddr, frame)
	runtime.KeepAlive(region)
	runtime.KeepAlive(input.Subject)

	if !matched {
		return char.Captures{}, false
	}
	return char.Captures{Subject: input.Subject, Spans: spans}, true
}

// Find returns only the overall match span.
func (j *Jitted) Find(input char.Input) (char.Match, bool) {
	caps, ok := j.FindCaptures(input)
	if !ok {
		return char.Match{}, false
	}
	return caps.Group0(), true
}

// IsMatch reports whether input matches.
func (j *Jitted) IsMatch(input char.Input) bool {
	_, ok := j.FindCaptures(input.WithFirstMatch(true))
	return ok
}
