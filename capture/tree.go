package capture

import "github.com/coregx/pikeregex/char"

// treeNode is one entry in the append-only write arena: a WriteReg
// call allocates a node pointing at the previous node a thread had,
// so a chain of nodes is a persistent (immutable, shareable) history
// of every register write that led to it.
type treeNode struct {
	prev int // index of the previous node, or -1
	pos  int
	reg  uint32
}

// treeHandle is the offset of a thread's most recent write, or -1 if
// it has written nothing yet.
type treeHandle struct {
	node int
}

// Tree is the persistent-tree strategy: Clone is O(1) (copy
// the offset), Free is a no-op, and WriteResult walks the chain
// backwards filling each register with the first (i.e. most recent)
// write it encounters per register.
type Tree struct {
	regCount int
	arena    []treeNode
}

// NewTree constructs the persistent-tree strategy for regCount
// registers.
func NewTree(regCount int) *Tree {
	return &Tree{regCount: regCount}
}

func (s *Tree) Initialize() {
	s.arena = s.arena[:0]
}

func (s *Tree) AllocThread() Handle {
	return treeHandle{node: -1}
}

func (s *Tree) Free(Handle) {}

func (s *Tree) Clone(h Handle) Handle {
	return h // copying the offset is the whole clone.
}

func (s *Tree) WriteReg(h Handle, reg uint32, pos int) Handle {
	th := h.(treeHandle)
	s.arena = append(s.arena, treeNode{prev: th.node, pos: pos, reg: reg})
	return treeHandle{node: len(s.arena) - 1}
}

func (s *Tree) Accept(h Handle, pos int) Handle {
	return s.WriteReg(h, 1, pos)
}

func (s *Tree) WriteResult(h Handle, out []char.Span) {
	th := h.(treeHandle)
	seen := make([]bool, len(out)*2)
	froms := make([]int, len(out))
	tos := make([]int, len(out))
	for i := th.node; i >= 0; i = s.arena[i].prev {
		n := s.arena[i]
		if seen[n.reg] {
			continue
		}
		seen[n.reg] = true
		if n.reg%2 == 0 {
			froms[n.reg/2] = n.pos
		} else {
			tos[n.reg/2] = n.pos
		}
	}
	for i := range out {
		from, to := char.InvalidSpan().From, char.InvalidSpan().To
		if seen[2*i] {
			from = froms[i]
		}
		if seen[2*i+1] {
			to = tos[i]
		}
		out[i] = char.Span{From: from, To: to}
	}
}

func (s *Tree) InitMemSize() int { return len(s.arena) }

func (s *Tree) RegisterCount() int { return s.regCount }
