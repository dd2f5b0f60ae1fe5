package joycond

import (
	"github.com/rs/zerolog/log"

	"github.com/joycond-linux/go-joycond/pkg/evloop"
)

// VirtCombined merges a Left and a Right Joy-Con into one dual-stick
// virtual controller. Members may come and go at runtime: either side can
// disconnect and be replaced by MAC or by model without the virtual device
// ever disappearing.
type VirtCombined struct {
	left, right       *PhysCtlr
	leftMAC, rightMAC string

	loop  *evloop.Loop
	sub   *evloop.Subscriber
	relay *proRelay
	mouse *VirtMouse
}

// NewVirtCombined publishes the combined device for the given pair.
func NewVirtCombined(left, right *PhysCtlr, loop *evloop.Loop, mapping *Mapping, opts Options) (*VirtCombined, error) {
	mouse, err := NewVirtMouse(opts.UinputPath, opts.mouseTuning())
	if err != nil {
		return nil, err
	}
	udev, err := newProDevice(opts.UinputPath, "Nintendo Switch Combined Joy-Cons",
		mapping.Analog.Load(), true)
	if err != nil {
		mouse.Close()
		return nil, err
	}

	v := &VirtCombined{
		left:     left,
		right:    right,
		leftMAC:  left.MAC(),
		rightMAC: right.MAC(),
		loop:     loop,
		relay:    newProRelay(udev, mapping, mouse),
		mouse:    mouse,
	}
	v.sub = evloop.NewSubscriber([]int{udev.Fd()}, v.HandleEvents)
	loop.AddSubscriber(v.sub)
	return v, nil
}

// PhysCtlrs implements VirtCtlr.
func (v *VirtCombined) PhysCtlrs() []*PhysCtlr {
	var ctlrs []*PhysCtlr
	if v.left != nil {
		ctlrs = append(ctlrs, v.left)
	}
	if v.right != nil {
		ctlrs = append(ctlrs, v.right)
	}
	return ctlrs
}

// ContainsFd implements VirtCtlr.
func (v *VirtCombined) ContainsFd(fd int) bool {
	if v.left != nil && v.left.Fd() == fd {
		return true
	}
	if v.right != nil && v.right.Fd() == fd {
		return true
	}
	return v.relay.udev.Fd() == fd
}

// HandleEvents implements VirtCtlr.
func (v *VirtCombined) HandleEvents(fd int) {
	switch {
	case v.left != nil && fd == v.left.Fd():
		v.relay.relayPhys(v.left)
	case v.right != nil && fd == v.right.Fd():
		v.relay.relayPhys(v.right)
	case fd == v.relay.udev.Fd():
		v.relay.handleUinput(v.PhysCtlrs())
	default:
		log.Error().Int("fd", fd).Msg("fd does not belong to this combined controller")
	}
}

// SupportsHotplug implements VirtCtlr.
func (v *VirtCombined) SupportsHotplug() bool { return true }

// NeedsModel implements VirtCtlr: the side currently missing, left first.
func (v *VirtCombined) NeedsModel() Model {
	if v.left == nil {
		return ModelLeftJoycon
	}
	if v.right == nil {
		return ModelRightJoycon
	}
	return ModelUnknown
}

// NoCtlrsLeft implements VirtCtlr.
func (v *VirtCombined) NoCtlrsLeft() bool { return v.left == nil && v.right == nil }

// MACBelongs implements VirtCtlr. The MACs of both halves are remembered
// even while a half is disconnected so a reconnect finds its way home.
func (v *VirtCombined) MACBelongs(mac string) bool {
	return mac != "" && (mac == v.leftMAC || mac == v.rightMAC)
}

// AddPhysCtlr implements VirtCtlr, slotting the controller into its side.
func (v *VirtCombined) AddPhysCtlr(phys *PhysCtlr) {
	switch phys.Model() {
	case ModelLeftJoycon:
		if v.left != nil {
			log.Error().Msg("combined controller already has a left joy-con")
			return
		}
		v.left = phys
		if phys.MAC() != "" {
			v.leftMAC = phys.MAC()
		}
	case ModelRightJoycon:
		if v.right != nil {
			log.Error().Msg("combined controller already has a right joy-con")
			return
		}
		v.right = phys
		if phys.MAC() != "" {
			v.rightMAC = phys.MAC()
		}
	default:
		log.Error().Stringer("model", phys.Model()).Msg("combined controller cannot hold this model")
	}
}

// RemovePhysCtlr implements VirtCtlr.
func (v *VirtCombined) RemovePhysCtlr(phys *PhysCtlr) {
	v.relay.dropEffectsFor(phys)
	switch phys {
	case v.left:
		v.left = nil
	case v.right:
		v.right = nil
	default:
		log.Error().Msg("physical controller does not belong to this combined controller")
	}
}

// SetPlayerLEDsToPlayer implements VirtCtlr.
func (v *VirtCombined) SetPlayerLEDsToPlayer(player int) bool {
	return v.relay.setVirtPlayerLEDs(player)
}

// Close implements VirtCtlr.
func (v *VirtCombined) Close() {
	v.loop.RemoveSubscriber(v.sub)
	v.mouse.Close()
	if err := v.relay.udev.Close(); err != nil {
		log.Error().Err(err).Msg("failed to destroy combined device")
	}
	if v.left != nil {
		v.left.Close()
		v.left = nil
	}
	if v.right != nil {
		v.right.Close()
		v.right = nil
	}
}
