// Package wasmtest provides guest modules for tests, written in the
// WebAssembly text format.
package wasmtest

import (
	"fmt"

	"github.com/wippyai/wasm-runtime/wat"
)

// MustCompile compiles WAT source and panics on error.
func MustCompile(source string) []byte {
	wasm, err := wat.Compile(source)
	if err != nil {
		panic(fmt.Sprintf("wasmtest: %v", err))
	}
	return wasm
}
