package pikevm

import "github.com/coregx/pikeregex/char"

// FindCaptures runs a full search and returns
// every capture group's span, or false if the pattern does not match
// within input's span.
func (vm *PikeVM) FindCaptures(input char.Input) (char.Captures, bool) {
	if !input.Valid() {
		return char.Captures{}, false
	}

	rs := vm.pool.Get().(*runState)
	defer func() { rs.reset(); vm.pool.Put(rs) }()
	strategy := rs.strategy
	strategy.Initialize()

	from, to := input.Span.From, input.Span.To
	subject := input.Subject

	pos := from
	prevChar := char.PrevChar(subject, from)
	var best *result

	// Seed the very first thread: subsequent iterations only inject
	// threads for positions *after* the one they are processing (see
	// step 4 below), so position `from` itself needs an initial thread
	// pushed before the loop starts.
	seed := strategy.WriteReg(strategy.AllocThread(), 0, from)
	rs.active.PushBack(thread{pc: 0, cap: seed})

	for {
		var currChar char.Char
		var width int
		if pos < to {
			currChar, width = char.DecodeRune([]byte(subject[pos:to]))
		} else {
			currChar, width = char.InputBound, 0
		}

		best = rs.step(pos, prevChar, currChar, best)

		if best != nil && rs.next.Empty() {
			break
		}
		if best != nil && input.FirstMatch {
			break
		}
		if best == nil && !input.Anchored {
			seed := strategy.WriteReg(strategy.AllocThread(), 0, pos+width)
			rs.next.PushBack(thread{pc: 0, cap: seed})
		}
		if best == nil && rs.active.Empty() && rs.next.Empty() {
			// No live thread anywhere and none will ever be injected
			// again (anchored, or injection above did not fire because
			// it only runs when best == nil — it always does here — so
			// this can only trip for an anchored search whose single
			// lineage has died out).
			return char.Captures{}, false
		}

		if pos >= to {
			break
		}

		rs.active, rs.next = rs.next, rs.active
		pos += width
		prevChar = currChar
	}

	if best == nil {
		return char.Captures{}, false
	}

	spans := make([]char.Span, strategy.RegisterCount()/2)
	strategy.WriteResult(best.h, spans)
	strategy.Free(best.h)
	return char.Captures{Subject: subject, Spans: spans}, true
}

// Find returns only the overall match span.
func (vm *PikeVM) Find(input char.Input) (char.Match, bool) {
	caps, ok := vm.FindCaptures(input)
	if !ok {
		return char.Match{}, false
	}
	return caps.Group0(), true
}

// IsMatch reports whether input matches, without computing spans
// beyond what is needed to stop at the first accepting state.
func (vm *PikeVM) IsMatch(input char.Input) bool {
	_, ok := vm.FindCaptures(input.WithFirstMatch(true))
	return ok
}
