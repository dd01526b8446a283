package vnode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidNode is returned when a JSON element cannot be decoded.
var ErrInvalidNode = errors.New("invalid node")

// wireNode is the JSON form guests produce:
//
//	{"tag":"div","key":"k","props":{...},"children":[...]}
//	{"text":"hello"}  or  "hello"
type wireNode struct {
	Tag       string            `json:"tag,omitempty"`
	Text      string            `json:"text,omitempty"`
	Key       string            `json:"key,omitempty"`
	Props     map[string]any    `json:"props,omitempty"`
	Children  []json.RawMessage `json:"children,omitempty"`
	Component string            `json:"component,omitempty"`
}

// Decode parses a guest-encoded element. JSON null decodes to a nil node.
func Decode(data []byte) (*Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidNode)
	}

	switch data[0] {
	case 'n':
		if string(data) == "null" {
			return nil, nil
		}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
		}
		return Text(s), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
		}
		children, err := decodeAll(items)
		if err != nil {
			return nil, err
		}
		return Fragment(children...), nil
	}

	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}

	children, err := decodeAll(w.Children)
	if err != nil {
		return nil, err
	}

	switch {
	case w.Component != "":
		return nil, fmt.Errorf("%w: component %q cannot be decoded", ErrInvalidNode, w.Component)
	case w.Tag == "" && len(children) == 0:
		n := Text(w.Text)
		n.Key = w.Key
		return n, nil
	case w.Tag == "":
		n := Fragment(children...)
		n.Key = w.Key
		return n, nil
	}

	if w.Text != "" {
		children = append([]*Node{Text(w.Text)}, children...)
	}
	n := Element(w.Tag, w.Props, children...)
	n.Key = w.Key
	return n, nil
}

func decodeAll(items []json.RawMessage) ([]*Node, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]*Node, 0, len(items))
	for i, raw := range items {
		c, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// MarshalJSON encodes n in the same shape Decode accepts. Component nodes
// that were never resolved encode as {"component":"Name"}.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.wire())
}

func (n *Node) wire() any {
	switch n.Kind {
	case KindText:
		if n.Key == "" {
			return n.Text
		}
		return wireOut{Text: n.Text, Key: n.Key}
	case KindComponent:
		name := ""
		if n.Comp != nil {
			name = n.Comp.Name()
		}
		return wireOut{Component: name, Key: n.Key}
	}

	w := wireOut{Tag: n.Tag, Key: n.Key, Props: n.Props}
	for _, c := range n.Children {
		if c != nil {
			w.Children = append(w.Children, c.wire())
		}
	}
	return w
}

type wireOut struct {
	Tag       string         `json:"tag,omitempty"`
	Text      string         `json:"text,omitempty"`
	Key       string         `json:"key,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
	Children  []any          `json:"children,omitempty"`
	Component string         `json:"component,omitempty"`
}
