package capture

import "github.com/coregx/pikeregex/char"

// sharedSlots is a reference-counted register array, shared by every
// thread that cloned from a common ancestor without yet diverging.
type sharedSlots struct {
	slots []int
	refs  int
}

// cowHandle is a thread's view onto a (possibly shared) sharedSlots.
type cowHandle struct {
	shared *sharedSlots
}

// COW is the copy-on-write array strategy: Clone increments a
// reference count instead of copying; WriteReg deep-copies lazily,
// only when the slots it is about to mutate are still shared. This is
// the discipline the original cowCaptures/sharedCaptures implements
// for byte-level registers, adapted here to rune-level register
// numbering.
type COW struct {
	regCount int
	free     []*sharedSlots
}

// NewCOW constructs the copy-on-write strategy for regCount registers.
func NewCOW(regCount int) *COW {
	return &COW{regCount: regCount}
}

func (s *COW) Initialize() {
	s.free = s.free[:0]
}

func (s *COW) newShared() *sharedSlots {
	if n := len(s.free); n > 0 {
		sh := s.free[n-1]
		s.free = s.free[:n-1]
		for i := range sh.slots {
			sh.slots[i] = -1
		}
		sh.refs = 1
		return sh
	}
	slots := make([]int, s.regCount)
	for i := range slots {
		slots[i] = -1
	}
	return &sharedSlots{slots: slots, refs: 1}
}

func (s *COW) AllocThread() Handle {
	return cowHandle{shared: s.newShared()}
}

func (s *COW) Free(h Handle) {
	ch := h.(cowHandle)
	ch.shared.refs--
	if ch.shared.refs == 0 {
		s.free = append(s.free, ch.shared)
	}
}

func (s *COW) Clone(h Handle) Handle {
	ch := h.(cowHandle)
	ch.shared.refs++
	return ch
}

func (s *COW) WriteReg(h Handle, reg uint32, pos int) Handle {
	ch := h.(cowHandle)
	if ch.shared.refs > 1 {
		ch.shared.refs--
		fresh := s.newShared()
		copy(fresh.slots, ch.shared.slots)
		ch = cowHandle{shared: fresh}
	}
	ch.shared.slots[reg] = pos
	return ch
}

func (s *COW) Accept(h Handle, pos int) Handle {
	return s.WriteReg(h, 1, pos)
}

func (s *COW) WriteResult(h Handle, out []char.Span) {
	ch := h.(cowHandle)
	for i := range out {
		from, to := ch.shared.slots[2*i], ch.shared.slots[2*i+1]
		if from == -1 || to == -1 {
			out[i] = char.InvalidSpan()
			continue
		}
		out[i] = char.Span{From: from, To: to}
	}
}

func (s *COW) InitMemSize() int { return s.regCount }

func (s *COW) RegisterCount() int { return s.regCount }
