//go:build amd64

package pikejit

import "unsafe"

// callJIT invokes the native routine at codeAddr with frame as its
// single argument, following the System-V convention (first integer
// argument in RDI) the generated prologue expects, and returns the
// byte its RAX-returning `ret` left behind as a bool. Implemented in
// call_amd64.s: Go's own ABI0/ABIInternal calling convention cannot
// call through a bare code address directly, so this short
// trampoline is the bridge.
func callJIT(codeAddr uintptr, frame *CallFrame) bool {
	return callJITAsm(codeAddr, unsafe.Pointer(frame)) != 0
}

// callJITAsm is implemented in call_amd64.s.
func callJITAsm(codeAddr uintptr, frame unsafe.Pointer) byte
