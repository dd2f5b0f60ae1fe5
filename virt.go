package joycond

// VirtCtlr is the capability set every virtual wrapper offers the pairing
// manager. Passthrough wrappers release the grab and expose the physical
// device itself; the Pro relay and the combined wrapper publish a uinput
// device and relay events through it.
type VirtCtlr interface {
	// PhysCtlrs returns the physical controllers currently owned.
	PhysCtlrs() []*PhysCtlr

	// ContainsFd reports whether fd belongs to this wrapper (a member
	// physical's fd or the wrapper's own uinput fd).
	ContainsFd(fd int) bool

	// HandleEvents services readiness on one of the wrapper's fds.
	HandleEvents(fd int)

	// SupportsHotplug reports whether members may be swapped at runtime
	// (transport switches, Joy-Con reconnects).
	SupportsHotplug() bool

	// NeedsModel returns the model this wrapper is currently missing, or
	// ModelUnknown when it is complete.
	NeedsModel() Model

	// NoCtlrsLeft reports whether all member physicals have gone away.
	NoCtlrsLeft() bool

	// SetPlayerLEDsToPlayer propagates the slot's player number onto the
	// wrapper's own LED surface.
	SetPlayerLEDsToPlayer(player int) bool

	// MACBelongs reports whether the given hardware address identifies
	// one of this wrapper's members (used for stale re-binding).
	MACBelongs(mac string) bool

	// AddPhysCtlr and RemovePhysCtlr swap members on hotplug-capable
	// wrappers.
	AddPhysCtlr(phys *PhysCtlr)
	RemovePhysCtlr(phys *PhysCtlr)

	// Close tears the wrapper down, releasing its uinput device and any
	// event-loop registration it made for itself.
	Close()
}
