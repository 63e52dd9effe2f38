//go:build !amd64

package pikejit

// callJIT has no implementation outside amd64: the encoder in asm.go
// only ever emits x86-64. Compile returns ErrUnsupportedArch before
// any code reaches here on other architectures.
func callJIT(codeAddr uintptr, frame *CallFrame) bool {
	panic("pikejit: native execution is amd64-only")
}
