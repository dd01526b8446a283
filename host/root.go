package host

import (
	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/vnode"
)

// Root is a mounted tree.
type Root struct {
	r    *Renderer
	top  *rootComponent
	inst *instance
}

type rootComponent struct {
	el *vnode.Node
}

func (c *rootComponent) Name() string { return "#root" }

func (c *rootComponent) Render(bridge.Props) (*vnode.Node, error) { return c.el, nil }

// Mount renders el and commits its effects. If rendering fails, whatever
// did render is committed and unmounted again so no cleanup is lost.
func (r *Renderer) Mount(el *vnode.Node) (*Root, error) {
	top := &rootComponent{el: el}
	inst := r.newInstance(top, bridge.Props{})
	if err := r.render(inst); err != nil {
		r.commit()
		r.unmount(inst)
		return nil, err
	}
	r.commit()
	return &Root{r: r, top: top, inst: inst}, nil
}

// Update re-renders the root with a new element.
func (root *Root) Update(el *vnode.Node) error {
	if root.inst.unmounted {
		return ErrUnmounted
	}
	root.top.el = el
	err := root.r.render(root.inst)
	root.r.commit()
	return err
}

// Act runs fn and flushes the resulting updates.
func (root *Root) Act(fn func()) error {
	if root.inst.unmounted {
		return ErrUnmounted
	}
	return root.r.Act(fn)
}

// Unmount tears the tree down, running every pending cleanup once.
func (root *Root) Unmount() {
	root.r.unmount(root.inst)
}

// Mounted reports whether the root is still mounted.
func (root *Root) Mounted() bool {
	return !root.inst.unmounted
}

// Tree returns the rendered tree with every component node replaced by its
// output.
func (root *Root) Tree() *vnode.Node {
	if root.inst.unmounted {
		return nil
	}
	return root.inst.resolve()
}
