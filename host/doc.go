// Package host is a small retained-mode renderer implementing
// [bridge.Adapter].
//
// Components are mounted as instances that own an ordered list of hook
// slots. A re-render keeps an instance, and its slots, only when the
// component value at the same position (or key) is identical to the one
// that produced it; otherwise the old instance is unmounted and a new one is
// mounted. Effects run after each commit, their cleanups run before a
// re-run and on unmount.
//
// A Renderer is not safe for concurrent use.
package host
