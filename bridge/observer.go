package bridge

import "sync/atomic"

// Observer receives lifecycle events from the bridge, typically to export
// metrics.
type Observer interface {
	WrapperRegistered(name string)
	Rendered(name string, boxed bool)
	BoxedReleased(name string)
	StateCreated()
	StateFreed()
}

type nopObserver struct{}

func (nopObserver) WrapperRegistered(string) {}
func (nopObserver) Rendered(string, bool)    {}
func (nopObserver) BoxedReleased(string)     {}
func (nopObserver) StateCreated()            {}
func (nopObserver) StateFreed()              {}

type observerSlot struct {
	o Observer
}

var obs atomic.Pointer[observerSlot]

// SetObserver installs o. A nil o restores the no-op observer.
func SetObserver(o Observer) {
	if o == nil {
		obs.Store(nil)
		return
	}
	obs.Store(&observerSlot{o: o})
}

func observer() Observer {
	if s := obs.Load(); s != nil {
		return s.o
	}
	return nopObserver{}
}
