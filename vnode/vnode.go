// Package vnode defines the element tree exchanged between guest components,
// the bridge and the host renderer.
package vnode

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement   Kind = iota // <div>, <span>, etc.
	KindText                  // Plain text node
	KindFragment              // Grouping without wrapper
	KindComponent             // Nested component, resolved by the host
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// Component is anything the host can mount as a component node.
// The host compares components by identity, never by name.
type Component interface {
	Name() string
}

// Node is a single element tree node.
type Node struct {
	Kind     Kind
	Tag      string         // Element tag name
	Text     string         // For KindText
	Key      string         // Reconciliation key
	Props    map[string]any // Element attributes
	Children []*Node
	Comp     Component // For KindComponent
	Input    any       // Props handed to Comp, passed through untouched
}

// Element creates an element node.
func Element(tag string, props map[string]any, children ...*Node) *Node {
	return &Node{Kind: KindElement, Tag: tag, Props: props, Children: children}
}

// Text creates a text node.
func Text(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// Fragment groups children without a wrapping element.
func Fragment(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: children}
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// String returns a compact, deterministic rendering for logs and tests.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	switch n.Kind {
	case KindText:
		b.WriteString(n.Text)
		return
	case KindComponent:
		name := "?"
		if n.Comp != nil {
			name = n.Comp.Name()
		}
		fmt.Fprintf(b, "<%s/>", name)
		return
	case KindFragment:
		for _, c := range n.Children {
			c.write(b)
		}
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Tag)
	keys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, n.Props[k])
	}
	b.WriteByte('>')
	for _, c := range n.Children {
		c.write(b)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}
