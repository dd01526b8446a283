package bridge

// lease is the bridge's claim on a foreign resource. The bridge is the only
// party allowed to release it, and only through the host lifetime it is
// bound to.
type lease struct {
	release func()
}

func newLease(release func()) lease {
	return lease{release: release}
}

// bind makes the release the cleanup of an effect keyed on deps. With
// []any{owner} it runs when owner is superseded or the instance unmounts;
// with an empty slice it runs on unmount only.
func (l lease) bind(a Adapter, deps []any) {
	a.UseEffect(func() func() {
		return l.release
	}, deps)
}
