package joycond

import (
	"github.com/rs/zerolog/log"

	"github.com/joycond-linux/go-joycond/pkg/evloop"
)

// VirtProcon wraps one physical controller behind a Pro-shaped virtual
// device with a mutating relay: key layout, hat emulation, analog
// triggers, the stick-driven mouse, and the force-feedback proxy.
type VirtProcon struct {
	phys  *PhysCtlr
	loop  *evloop.Loop
	sub   *evloop.Subscriber
	relay *proRelay
	mouse *VirtMouse
	mac   string

	withLEDs bool
}

// NewVirtProcon publishes the virtual Pro device and registers its uinput
// fd with the event loop. The physical fd stays registered under the
// pairing manager, which routes its readiness here via ContainsFd.
func NewVirtProcon(phys *PhysCtlr, loop *evloop.Loop, mapping *Mapping, opts Options) (*VirtProcon, error) {
	mouse, err := NewVirtMouse(opts.UinputPath, opts.mouseTuning())
	if err != nil {
		return nil, err
	}

	withLEDs := phys.Model() != ModelSio
	udev, err := newProDevice(opts.UinputPath, "Nintendo Switch Virtual Pro Controller",
		mapping.Analog.Load(), withLEDs)
	if err != nil {
		mouse.Close()
		return nil, err
	}

	v := &VirtProcon{
		phys:     phys,
		loop:     loop,
		relay:    newProRelay(udev, mapping, mouse),
		mouse:    mouse,
		mac:      phys.MAC(),
		withLEDs: withLEDs,
	}
	v.sub = evloop.NewSubscriber([]int{udev.Fd()}, v.HandleEvents)
	loop.AddSubscriber(v.sub)
	return v, nil
}

// PhysCtlrs implements VirtCtlr.
func (v *VirtProcon) PhysCtlrs() []*PhysCtlr {
	if v.phys == nil {
		return nil
	}
	return []*PhysCtlr{v.phys}
}

// ContainsFd implements VirtCtlr.
func (v *VirtProcon) ContainsFd(fd int) bool {
	if v.phys != nil && v.phys.Fd() == fd {
		return true
	}
	return v.relay.udev.Fd() == fd
}

// HandleEvents implements VirtCtlr.
func (v *VirtProcon) HandleEvents(fd int) {
	switch {
	case v.phys != nil && fd == v.phys.Fd():
		v.relay.relayPhys(v.phys)
	case fd == v.relay.udev.Fd():
		v.relay.handleUinput(v.PhysCtlrs())
	default:
		log.Error().Int("fd", fd).Msg("fd does not belong to this virtual pro controller")
	}
}

// SupportsHotplug implements VirtCtlr; the backing pad may switch
// transports at runtime.
func (v *VirtProcon) SupportsHotplug() bool { return true }

// NeedsModel implements VirtCtlr. A Pro wrapper re-attaches by MAC or by
// emptiness, never by model.
func (v *VirtProcon) NeedsModel() Model { return ModelUnknown }

// NoCtlrsLeft implements VirtCtlr.
func (v *VirtProcon) NoCtlrsLeft() bool { return v.phys == nil }

// MACBelongs implements VirtCtlr.
func (v *VirtProcon) MACBelongs(mac string) bool {
	return mac != "" && mac == v.mac
}

// AddPhysCtlr implements VirtCtlr.
func (v *VirtProcon) AddPhysCtlr(phys *PhysCtlr) {
	if v.phys != nil {
		log.Error().Msg("virtual pro controller already has a physical controller")
		return
	}
	v.phys = phys
	if phys.MAC() != "" {
		v.mac = phys.MAC()
	}
}

// RemovePhysCtlr implements VirtCtlr.
func (v *VirtProcon) RemovePhysCtlr(phys *PhysCtlr) {
	if v.phys != phys {
		log.Error().Msg("physical controller does not belong to this virtual pro controller")
		return
	}
	v.relay.dropEffectsFor(phys)
	v.phys = nil
}

// SetPlayerLEDsToPlayer implements VirtCtlr, mirroring the slot onto the
// virtual device's LED codes.
func (v *VirtProcon) SetPlayerLEDsToPlayer(player int) bool {
	if !v.withLEDs {
		return false
	}
	return v.relay.setVirtPlayerLEDs(player)
}

// Close implements VirtCtlr.
func (v *VirtProcon) Close() {
	v.loop.RemoveSubscriber(v.sub)
	v.mouse.Close()
	if err := v.relay.udev.Close(); err != nil {
		log.Error().Err(err).Msg("failed to destroy virtual pro device")
	}
	if v.phys != nil {
		v.phys.Close()
		v.phys = nil
	}
}
