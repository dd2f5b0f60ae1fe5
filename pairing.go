package joycond

import (
	"github.com/rs/zerolog/log"

	"github.com/joycond-linux/go-joycond/pkg/evloop"
)

// Manager owns every controller the daemon knows about: unpaired physicals
// waiting on a pairing decision, the slot vector of live wrappers, and
// stale wrappers kept alive for re-binding. All methods run on the event
// loop thread.
type Manager struct {
	loop    *evloop.Loop
	mapping *Mapping
	opts    Options

	unpaired    map[string]*PhysCtlr
	subscribers map[string]*evloop.Subscriber

	// paired is the slot vector; a nil entry is an empty slot. A wrapper
	// keeps its slot for its whole lifetime.
	paired []VirtCtlr

	// stale holds wrappers whose physicals have all gone away but whose
	// identity should survive until a same-MAC reconnect.
	stale []VirtCtlr

	// left and right hold the pending halves of a combined pair under
	// construction; both always live in unpaired too.
	left, right *PhysCtlr
}

// NewManager creates an empty pairing manager.
func NewManager(loop *evloop.Loop, mapping *Mapping, opts Options) *Manager {
	return &Manager{
		loop:        loop,
		mapping:     mapping,
		opts:        opts,
		unpaired:    make(map[string]*PhysCtlr),
		subscribers: make(map[string]*evloop.Subscriber),
	}
}

// playerForSlot maps a slot index to the player LED pattern its members
// display.
func playerForSlot(slot int) int { return slot%4 + 1 }

// assignSlot stores the wrapper in the lowest empty slot, appending when
// the vector is full, and returns the slot index.
func (m *Manager) assignSlot(virt VirtCtlr) int {
	for i, existing := range m.paired {
		if existing == nil {
			m.paired[i] = virt
			return i
		}
	}
	m.paired = append(m.paired, virt)
	return len(m.paired) - 1
}

// AddCtlr admits a newly discovered device: it creates the physical
// wrapper, then tries, in order, stale re-binding by MAC, transport-switch
// replacement, Joy-Con reconnection, and finally a fresh pairing decision.
func (m *Manager) AddCtlr(devpath, devname string) {
	if _, ok := m.unpaired[devpath]; ok {
		log.Error().Str("devpath", devpath).Msg("controller is already being paired")
		return
	}

	log.Info().Str("devnode", devname).Msg("creating physical controller")
	phys, err := NewPhysCtlr(devpath, devname)
	if err != nil {
		log.Fatal().Err(err).Str("devnode", devname).Msg("failed to build evdev device")
	}
	m.unpaired[devpath] = phys
	if err := phys.BlinkPlayerLEDs(); err != nil {
		log.Error().Err(err).Msg("pairing without led blink")
	}
	sub := evloop.NewSubscriber([]int{phys.Fd()}, m.dispatch)
	m.subscribers[devpath] = sub
	m.loop.AddSubscriber(sub)

	if m.rebindStale(phys) {
		return
	}
	if m.replaceByMAC(phys) {
		return
	}
	if m.reattach(phys) {
		return
	}

	// Pro-likes need no button press to decide; give the device an
	// immediate dispatch so they wrap at once.
	if _, ok := m.unpaired[devpath]; ok {
		m.dispatch(phys.Fd())
	}
}

// rebindStale restores a stale wrapper whose MAC matches the new device,
// handing the device straight to it.
func (m *Manager) rebindStale(phys *PhysCtlr) bool {
	for i, virt := range m.stale {
		if virt == nil || !virt.MACBelongs(phys.MAC()) {
			continue
		}
		log.Info().Str("mac", phys.MAC()).Msg("re-pairing stale controller")
		slot := m.assignSlot(virt)
		m.stale = append(m.stale[:i], m.stale[i+1:]...)

		virt.AddPhysCtlr(phys)
		phys.SetPlayerLEDsToPlayer(playerForSlot(slot))
		virt.SetPlayerLEDsToPlayer(playerForSlot(slot))
		delete(m.unpaired, phys.Devpath())
		return true
	}
	return false
}

// replaceByMAC swaps the new device in for a paired member with the same
// hardware address; this is what a wireless-to-wired transport switch
// looks like.
func (m *Manager) replaceByMAC(phys *PhysCtlr) bool {
	if phys.MAC() == "" {
		return false
	}
	for i, virt := range m.paired {
		if virt == nil || !virt.SupportsHotplug() {
			continue
		}
		for _, member := range virt.PhysCtlrs() {
			if member.MAC() != phys.MAC() {
				continue
			}
			log.Info().Str("mac", phys.MAC()).Msg("replacing controller (likely a transport switch)")
			if sub, ok := m.subscribers[member.Devpath()]; ok {
				m.loop.RemoveSubscriber(sub)
				delete(m.subscribers, member.Devpath())
			}
			virt.RemovePhysCtlr(member)
			member.Close()

			phys.SetPlayerLEDsToPlayer(playerForSlot(i))
			virt.AddPhysCtlr(phys)
			delete(m.unpaired, phys.Devpath())
			return true
		}
	}
	return false
}

// reattach hands a reconnecting Joy-Con back to a wrapper that is missing
// its model, or to an emptied hotplug-capable wrapper.
func (m *Manager) reattach(phys *PhysCtlr) bool {
	for i, virt := range m.paired {
		if virt == nil || !virt.SupportsHotplug() {
			continue
		}
		modelMatch := virt.NeedsModel() == phys.Model() && phys.Model() != ModelUnknown
		if !modelMatch && !virt.NoCtlrsLeft() {
			continue
		}
		log.Info().Stringer("model", phys.Model()).Msg("detected reconnected controller")
		phys.SetPlayerLEDsToPlayer(playerForSlot(i))
		virt.AddPhysCtlr(phys)
		delete(m.unpaired, phys.Devpath())
		return true
	}
	return false
}

// dispatch is the event-loop callback for every physical fd the manager
// registered. For unpaired devices it drains the stream and re-reads the
// pairing decision; for paired devices it routes to the owning wrapper.
func (m *Manager) dispatch(fd int) {
	for devpath, phys := range m.unpaired {
		if fd != phys.Fd() {
			continue
		}
		phys.HandleEvents()
		switch state := phys.PairingState(m.mapping.Combined.Load()); state {
		case StateLone, StateHorizontal:
			log.Info().Stringer("state", state).Msg("controller paired as passthrough")
			m.addPassthrough(devpath, phys)
		case StateVirtProcon:
			log.Info().Msg("controller paired as virtual pro")
			m.addVirtProcon(devpath, phys)
		case StateWaiting:
			m.stashWaiting(phys)
		default:
			if m.left == phys {
				m.left = nil
			}
			if m.right == phys {
				m.right = nil
			}
		}
		break
	}

	for _, virt := range m.paired {
		if virt != nil && virt.ContainsFd(fd) {
			virt.HandleEvents(fd)
		}
	}
}

// stashWaiting parks a Joy-Con on its side of the pending pair; when both
// sides are present the combined wrapper is built and the slots cleared.
func (m *Manager) stashWaiting(phys *PhysCtlr) {
	if phys.Model() == ModelLeftJoycon {
		if m.left == nil {
			log.Info().Msg("found left joy-con for combined pair")
			m.left = phys
		}
	} else {
		if m.right == nil {
			log.Info().Msg("found right joy-con for combined pair")
			m.right = phys
		}
	}
	if m.left != nil && m.right != nil {
		m.addCombined()
	}
}

func (m *Manager) addPassthrough(devpath string, phys *PhysCtlr) {
	if m.left == phys {
		m.left = nil
	}
	if m.right == phys {
		m.right = nil
	}
	virt := NewVirtPassthrough(phys)
	slot := m.assignSlot(virt)
	phys.SetPlayerLEDsToPlayer(playerForSlot(slot))
	delete(m.unpaired, devpath)
}

func (m *Manager) addVirtProcon(devpath string, phys *PhysCtlr) {
	virt, err := NewVirtProcon(phys, m.loop, m.mapping, m.opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create virtual pro controller")
	}
	slot := m.assignSlot(virt)
	phys.SetPlayerLEDsToPlayer(playerForSlot(slot))
	virt.SetPlayerLEDsToPlayer(playerForSlot(slot))
	delete(m.unpaired, devpath)
}

func (m *Manager) addCombined() {
	left, right := m.left, m.right
	log.Info().Msg("creating combined joy-con input")
	virt, err := NewVirtCombined(left, right, m.loop, m.mapping, m.opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create combined controller")
	}
	slot := m.assignSlot(virt)
	left.SetPlayerLEDsToPlayer(playerForSlot(slot))
	right.SetPlayerLEDsToPlayer(playerForSlot(slot))
	virt.SetPlayerLEDsToPlayer(playerForSlot(slot))
	delete(m.unpaired, left.Devpath())
	delete(m.unpaired, right.Devpath())
	m.left = nil
	m.right = nil
}

// RemoveCtlr handles a device disappearing: its subscriber is dropped
// first so the loop can never dispatch to a dead fd, then the device is
// detached from whichever table holds it.
func (m *Manager) RemoveCtlr(devpath string) {
	if sub, ok := m.subscribers[devpath]; ok {
		m.loop.RemoveSubscriber(sub)
		delete(m.subscribers, devpath)
	}

	if phys, ok := m.unpaired[devpath]; ok {
		log.Info().Str("devpath", devpath).Msg("removing controller from unpaired list")
		if m.left == phys {
			m.left = nil
		}
		if m.right == phys {
			m.right = nil
		}
		phys.Close()
		delete(m.unpaired, devpath)
	}

	for i, virt := range m.paired {
		if virt == nil {
			continue
		}
		found := false
		for _, member := range virt.PhysCtlrs() {
			if member.Devpath() != devpath {
				continue
			}
			serial := member.IsSerial()
			if virt.SupportsHotplug() {
				virt.RemovePhysCtlr(member)
				member.Close()
			}
			if virt.NoCtlrsLeft() {
				if serial && virt.SupportsHotplug() {
					log.Info().Msg("serial controller disconnected; keeping wrapper for re-bind")
					m.stale = append(m.stale, virt)
				} else {
					log.Info().Msg("unpairing controller")
					virt.Close()
				}
				m.paired[i] = nil
			}
			found = true
			break
		}
		if found {
			break
		}
	}
}

// Close tears down every wrapper and unpaired controller; used on daemon
// shutdown.
func (m *Manager) Close() {
	for devpath, sub := range m.subscribers {
		m.loop.RemoveSubscriber(sub)
		delete(m.subscribers, devpath)
	}
	for devpath, phys := range m.unpaired {
		phys.Close()
		delete(m.unpaired, devpath)
	}
	m.left = nil
	m.right = nil
	for i, virt := range m.paired {
		if virt != nil {
			virt.Close()
			m.paired[i] = nil
		}
	}
	for i, virt := range m.stale {
		if virt != nil {
			virt.Close()
		}
		m.stale[i] = nil
	}
	m.stale = nil
}
