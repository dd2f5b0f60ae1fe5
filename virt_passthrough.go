package joycond

import (
	"github.com/rs/zerolog/log"
)

// VirtPassthrough exposes the physical device itself: pairing releases the
// grab and opens the node back up, and no events are rewritten. Used for
// lone generic controllers and sideways Joy-Cons.
type VirtPassthrough struct {
	phys *PhysCtlr
	mac  string
}

// NewVirtPassthrough releases the controller to the rest of the system.
func NewVirtPassthrough(phys *PhysCtlr) *VirtPassthrough {
	if err := phys.Device().Ungrab(); err != nil {
		log.Error().Err(err).Str("devnode", phys.Devnode()).Msg("failed to ungrab device")
	}
	if err := phys.Device().Chmod(0o644); err != nil {
		log.Error().Err(err).Str("devnode", phys.Devnode()).Msg("failed to restore device permissions")
	}
	return &VirtPassthrough{phys: phys, mac: phys.MAC()}
}

// PhysCtlrs implements VirtCtlr.
func (v *VirtPassthrough) PhysCtlrs() []*PhysCtlr {
	if v.phys == nil {
		return nil
	}
	return []*PhysCtlr{v.phys}
}

// ContainsFd implements VirtCtlr.
func (v *VirtPassthrough) ContainsFd(fd int) bool {
	return v.phys != nil && v.phys.Fd() == fd
}

// HandleEvents implements VirtCtlr. The stream still has to be drained so
// the fd does not stay permanently ready; the events go to the shoulder
// state tracker and nowhere else.
func (v *VirtPassthrough) HandleEvents(fd int) {
	if v.phys == nil || fd != v.phys.Fd() {
		log.Error().Int("fd", fd).Msg("fd does not belong to this passthrough controller")
		return
	}
	v.phys.HandleEvents()
}

// SupportsHotplug implements VirtCtlr; a passthrough dies with its device.
func (v *VirtPassthrough) SupportsHotplug() bool { return false }

// NeedsModel implements VirtCtlr.
func (v *VirtPassthrough) NeedsModel() Model { return ModelUnknown }

// NoCtlrsLeft implements VirtCtlr. A passthrough cannot outlive its only
// member, so a removal sweep that reaches it always tears it down.
func (v *VirtPassthrough) NoCtlrsLeft() bool { return true }

// MACBelongs implements VirtCtlr.
func (v *VirtPassthrough) MACBelongs(mac string) bool {
	return mac != "" && mac == v.mac
}

// AddPhysCtlr implements VirtCtlr; not supported on passthrough.
func (v *VirtPassthrough) AddPhysCtlr(phys *PhysCtlr) {
	log.Error().Msg("cannot add controllers to a passthrough wrapper")
}

// RemovePhysCtlr implements VirtCtlr; not supported on passthrough.
func (v *VirtPassthrough) RemovePhysCtlr(phys *PhysCtlr) {
	log.Error().Msg("cannot remove controllers from a passthrough wrapper")
}

// SetPlayerLEDsToPlayer implements VirtCtlr; the physical LEDs are the
// only surface a passthrough has.
func (v *VirtPassthrough) SetPlayerLEDsToPlayer(player int) bool {
	if v.phys == nil {
		return false
	}
	return v.phys.SetPlayerLEDsToPlayer(player)
}

// Close implements VirtCtlr.
func (v *VirtPassthrough) Close() {
	if v.phys != nil {
		v.phys.Close()
		v.phys = nil
	}
}
