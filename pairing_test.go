package joycond

import (
	"testing"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
	"github.com/joycond-linux/go-joycond/pkg/evloop"
)

// fakeVirt is a scriptable VirtCtlr for exercising the pairing tables
// without touching uinput.
type fakeVirt struct {
	phys    []*PhysCtlr
	hotplug bool
	needs   Model
	macs    []string
	closed  bool
	player  int
}

func (v *fakeVirt) PhysCtlrs() []*PhysCtlr { return v.phys }

func (v *fakeVirt) ContainsFd(fd int) bool {
	for _, phys := range v.phys {
		if phys.Fd() == fd {
			return true
		}
	}
	return false
}

func (v *fakeVirt) HandleEvents(fd int)   {}
func (v *fakeVirt) SupportsHotplug() bool { return v.hotplug }
func (v *fakeVirt) NeedsModel() Model     { return v.needs }
func (v *fakeVirt) NoCtlrsLeft() bool     { return len(v.phys) == 0 }

func (v *fakeVirt) SetPlayerLEDsToPlayer(player int) bool {
	v.player = player
	return true
}

func (v *fakeVirt) MACBelongs(mac string) bool {
	if mac == "" {
		return false
	}
	for _, m := range v.macs {
		if m == mac {
			return true
		}
	}
	return false
}

func (v *fakeVirt) AddPhysCtlr(phys *PhysCtlr) { v.phys = append(v.phys, phys) }

func (v *fakeVirt) RemovePhysCtlr(phys *PhysCtlr) {
	for i, p := range v.phys {
		if p == phys {
			v.phys = append(v.phys[:i], v.phys[i+1:]...)
			return
		}
	}
}

func (v *fakeVirt) Close() { v.closed = true }

func testPhys(devpath, mac string, model Model, serial bool) *PhysCtlr {
	return &PhysCtlr{
		devpath:  devpath,
		devnode:  "/dev/input/" + devpath,
		dev:      evdev.FromFd(-1, devpath),
		model:    model,
		mac:      mac,
		isSerial: serial,
	}
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	loop := evloop.New()
	t.Cleanup(loop.Close)
	return NewManager(loop, NewMapping(), Options{})
}

func TestAssignSlotTakesLowestEmpty(t *testing.T) {
	m := testManager(t)
	a, b, c := &fakeVirt{}, &fakeVirt{}, &fakeVirt{}

	if slot := m.assignSlot(a); slot != 0 {
		t.Fatalf("first wrapper got slot %d, want 0", slot)
	}
	if slot := m.assignSlot(b); slot != 1 {
		t.Fatalf("second wrapper got slot %d, want 1", slot)
	}

	m.paired[0] = nil
	if slot := m.assignSlot(c); slot != 0 {
		t.Fatalf("freed slot not reused: got %d, want 0", slot)
	}
	if m.paired[1] != VirtCtlr(b) {
		t.Error("existing wrapper must keep its slot")
	}
}

func TestPlayerForSlot(t *testing.T) {
	for slot, want := range []int{1, 2, 3, 4, 1, 2} {
		if got := playerForSlot(slot); got != want {
			t.Errorf("playerForSlot(%d) = %d, want %d", slot, got, want)
		}
	}
}

func TestRebindStaleByMAC(t *testing.T) {
	m := testManager(t)
	stale := &fakeVirt{hotplug: true, macs: []string{"AA:BB"}}
	m.stale = append(m.stale, stale)

	phys := testPhys("event7", "AA:BB", ModelRightJoycon, true)
	m.unpaired[phys.Devpath()] = phys

	if !m.rebindStale(phys) {
		t.Fatal("expected stale wrapper to re-bind by MAC")
	}
	if len(m.stale) != 0 {
		t.Error("stale table should be empty after re-bind")
	}
	if len(m.paired) != 1 || m.paired[0] != VirtCtlr(stale) {
		t.Error("wrapper should occupy slot 0")
	}
	if len(stale.phys) != 1 || stale.phys[0] != phys {
		t.Error("physical controller should be owned by the restored wrapper")
	}
	if _, ok := m.unpaired[phys.Devpath()]; ok {
		t.Error("physical controller must leave the unpaired table")
	}
}

func TestRebindStaleIgnoresForeignMAC(t *testing.T) {
	m := testManager(t)
	m.stale = append(m.stale, &fakeVirt{hotplug: true, macs: []string{"AA:BB"}})

	phys := testPhys("event7", "CC:DD", ModelRightJoycon, true)
	if m.rebindStale(phys) {
		t.Fatal("wrapper must not re-bind a different MAC")
	}
	if len(m.stale) != 1 {
		t.Error("stale table must be untouched")
	}
}

func TestReattachByModel(t *testing.T) {
	m := testManager(t)
	virt := &fakeVirt{hotplug: true, needs: ModelRightJoycon}
	m.paired = append(m.paired, virt)

	phys := testPhys("event9", "EE:FF", ModelRightJoycon, false)
	m.unpaired[phys.Devpath()] = phys

	if !m.reattach(phys) {
		t.Fatal("expected reconnecting joy-con to re-attach by model")
	}
	if len(virt.phys) != 1 || virt.phys[0] != phys {
		t.Error("wrapper should own the reconnected controller")
	}
	if _, ok := m.unpaired[phys.Devpath()]; ok {
		t.Error("reconnected controller must leave the unpaired table")
	}
}

func TestReattachSkipsUnknownModel(t *testing.T) {
	m := testManager(t)
	virt := &fakeVirt{hotplug: true, needs: ModelUnknown, phys: []*PhysCtlr{testPhys("event1", "", ModelProcon, false)}}
	m.paired = append(m.paired, virt)

	phys := testPhys("event9", "", ModelUnknown, false)
	if m.reattach(phys) {
		t.Fatal("an unknown model must not match NeedsModel() == Unknown")
	}
}

func TestReattachToEmptiedWrapper(t *testing.T) {
	m := testManager(t)
	virt := &fakeVirt{hotplug: true, needs: ModelUnknown}
	m.paired = append(m.paired, virt)

	phys := testPhys("event9", "AA:11", ModelProcon, false)
	m.unpaired[phys.Devpath()] = phys

	if !m.reattach(phys) {
		t.Fatal("an emptied hotplug wrapper should accept any controller back")
	}
}

func TestReplaceByMACSwapsTransport(t *testing.T) {
	m := testManager(t)
	old := testPhys("event3", "AA:BB", ModelRightJoycon, false)
	virt := &fakeVirt{hotplug: true, phys: []*PhysCtlr{old}}
	m.paired = append(m.paired, virt)

	fresh := testPhys("event12", "AA:BB", ModelRightJoycon, true)
	m.unpaired[fresh.Devpath()] = fresh

	if !m.replaceByMAC(fresh) {
		t.Fatal("expected same-MAC device to replace the paired member")
	}
	if len(virt.phys) != 1 || virt.phys[0] != fresh {
		t.Errorf("wrapper members = %v, want only the fresh device", virt.phys)
	}
	if _, ok := m.unpaired[fresh.Devpath()]; ok {
		t.Error("fresh device must leave the unpaired table")
	}
}

func TestReplaceByMACIgnoresEmptyMAC(t *testing.T) {
	m := testManager(t)
	virt := &fakeVirt{hotplug: true, phys: []*PhysCtlr{testPhys("event3", "", ModelProcon, false)}}
	m.paired = append(m.paired, virt)

	if m.replaceByMAC(testPhys("event12", "", ModelProcon, false)) {
		t.Fatal("empty MACs must never match each other")
	}
}

func TestRemoveCtlrClearsPendingPair(t *testing.T) {
	m := testManager(t)
	phys := testPhys("event5", "AA:22", ModelLeftJoycon, false)
	m.unpaired[phys.Devpath()] = phys
	m.left = phys

	m.RemoveCtlr(phys.Devpath())

	if m.left != nil {
		t.Error("pending left slot must clear with its controller")
	}
	if len(m.unpaired) != 0 {
		t.Error("unpaired table must be empty")
	}
}

func TestRemoveCtlrStashesSerialWrapper(t *testing.T) {
	m := testManager(t)
	phys := testPhys("event5", "AA:33", ModelLeftJoycon, true)
	virt := &fakeVirt{hotplug: true, phys: []*PhysCtlr{phys}, macs: []string{"AA:33"}}
	m.paired = append(m.paired, virt)

	m.RemoveCtlr(phys.Devpath())

	if len(m.stale) != 1 || m.stale[0] != VirtCtlr(virt) {
		t.Fatal("serial wrapper should move to the stale table")
	}
	if m.paired[0] != nil {
		t.Error("slot must be emptied")
	}
	if virt.closed {
		t.Error("stale wrapper must stay alive for re-binding")
	}
}

func TestRemoveCtlrDestroysWirelessWrapper(t *testing.T) {
	m := testManager(t)
	phys := testPhys("event5", "AA:44", ModelProcon, false)
	virt := &fakeVirt{hotplug: true, phys: []*PhysCtlr{phys}}
	m.paired = append(m.paired, virt)

	m.RemoveCtlr(phys.Devpath())

	if len(m.stale) != 0 {
		t.Error("wireless wrapper must not go stale")
	}
	if !virt.closed {
		t.Error("emptied wireless wrapper must be destroyed")
	}
	if m.paired[0] != nil {
		t.Error("slot must be emptied")
	}
}

func TestRemoveCtlrKeepsPartialCombined(t *testing.T) {
	m := testManager(t)
	left := testPhys("event5", "AA:55", ModelLeftJoycon, false)
	right := testPhys("event6", "AA:66", ModelRightJoycon, false)
	virt := &fakeVirt{hotplug: true, phys: []*PhysCtlr{left, right}}
	m.paired = append(m.paired, virt)

	m.RemoveCtlr(right.Devpath())

	if virt.closed {
		t.Error("wrapper with a member left must survive")
	}
	if m.paired[0] != VirtCtlr(virt) {
		t.Error("wrapper must keep its slot")
	}
	if len(virt.phys) != 1 || virt.phys[0] != left {
		t.Errorf("members = %v, want only the left joy-con", virt.phys)
	}
}

func TestStashWaitingFirstComeWins(t *testing.T) {
	m := testManager(t)
	first := testPhys("event1", "AA:01", ModelLeftJoycon, false)
	second := testPhys("event2", "AA:02", ModelLeftJoycon, false)

	m.stashWaiting(first)
	m.stashWaiting(second)

	if m.left != first {
		t.Error("a later left joy-con must not displace the pending one")
	}
	if m.right != nil {
		t.Error("right slot must stay empty")
	}
}
