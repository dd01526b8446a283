package wasmtest

import (
	"fmt"
	"strings"
)

// CounterElement is the element the boxed Counter renders.
const CounterElement = `{"tag":"div","props":{"class":"counter"},"text":"counter"}`

// elementAt is where CounterElement sits in guest memory.
const elementAt = 16

// counterWAT implements the wasmui guest ABI. Allocation bumps a heap
// pointer starting at 1024 and never frees; $live counts boxed components
// and states not yet freed.
const counterWAT = `(module
  (memory (export "memory") 1)
  (global $heap (mut i32) (i32.const 1024))
  (global $live (mut i32) (i32.const 0))
  (data (i32.const %[1]d) "%[2]s")

  (func $alloc (export "wasmui_alloc") (param $size i32) (result i32)
    (global.get $heap)
    (global.set $heap (i32.add (global.get $heap) (local.get $size))))
  (func (export "wasmui_dealloc") (param i32 i32))

  ;; Renders the props JSON as the element: the output is the input range.
  (func (export "render_Echo") (param $ptr i32) (param $len i32) (result i64)
    (i64.or
      (i64.shl (i64.extend_i32_u (local.get $ptr)) (i64.const 32))
      (i64.extend_i32_u (local.get $len))))

  (func $cell (result i32) (local $p i32)
    (local.set $p (call $alloc (i32.const 4)))
    (i32.store (local.get $p) (i32.const 0))
    (global.set $live (i32.add (global.get $live) (i32.const 1)))
    (local.get $p))
  (func $release
    (global.set $live (i32.sub (global.get $live) (i32.const 1))))

  (func (export "boxed_Counter_new") (param i32 i32) (result i32)
    (call $cell))
  (func (export "boxed_Counter_render") (param i32) (result i64)
    (i64.const %[3]d))
  (func (export "boxed_Counter_free") (param i32)
    (call $release))

  (func (export "state_Counter_new") (result i32)
    (call $cell))
  (func (export "state_Counter_increment") (param $h i32)
    (i32.store (local.get $h) (i32.add (i32.load (local.get $h)) (i32.const 1))))
  (func (export "state_Counter_get") (param $h i32) (result i32)
    (i32.load (local.get $h)))
  (func (export "state_Counter_free") (param i32)
    (call $release))

  (func (export "wasmui_live") (result i32)
    (global.get $live))
)`

// CounterSource returns the WAT source of CounterGuest.
func CounterSource() string {
	packed := uint64(elementAt)<<32 | uint64(len(CounterElement))
	return fmt.Sprintf(counterWAT, elementAt, strings.ReplaceAll(CounterElement, `"`, `\"`), packed)
}

// CounterGuest returns a module implementing the wasmui guest ABI with:
//
//   - plain component "Echo", which renders its props JSON as the element
//   - boxed component "Counter", which renders CounterElement
//   - bridged state "Counter" with an "increment" mutator and a getter
//   - wasmui_live, the number of boxed components and states not yet freed
func CounterGuest() []byte {
	return MustCompile(CounterSource())
}

// BareGuest exports memory but no allocator.
func BareGuest() []byte {
	return MustCompile(`(module (memory (export "memory") 1))`)
}
