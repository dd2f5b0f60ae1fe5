package joycond

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
	"github.com/joycond-linux/go-joycond/pkg/uinput"
)

// MouseTuning holds the stick-to-pointer conversion parameters.
type MouseTuning struct {
	// SenseX and SenseY scale raw stick samples into pointer velocity.
	SenseX, SenseY float64
	// DeadX and DeadY are the scaled-velocity deadzones below which the
	// pointer stays still.
	DeadX, DeadY float64
	// Poll is the emission cadence of the pointer thread.
	Poll time.Duration
}

// VirtMouse is the auxiliary pointer device driven by the right stick. The
// relay updates the two velocity cells from ABS samples; a dedicated
// polling goroutine turns them into relative motion at a fixed cadence.
type VirtMouse struct {
	dev    *uinput.Device
	tuning MouseTuning

	senseX atomicFloat
	senseY atomicFloat

	ready atomic.Bool
	done  chan struct{}
}

// atomicFloat is a float64 cell shared between the relay (loop thread) and
// the pointer goroutine.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }

// NewVirtMouse creates the pointer device and starts its polling goroutine.
func NewVirtMouse(uinputPath string, tuning MouseTuning) (*VirtMouse, error) {
	dev, err := uinput.Create(uinputPath, uinput.Config{
		Name: "Joycond Virtual Mouse",
		ID: evdev.ID{
			Bustype: evdev.BUS_USB,
			Vendor:  VendorNintendo,
			Product: ProductVirtMouse,
		},
		Keys:  []uint16{evdev.BTN_LEFT, evdev.BTN_RIGHT},
		Rel:   []uint16{evdev.REL_X, evdev.REL_Y},
		Props: []uint16{evdev.INPUT_PROP_POINTER},
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("vendor", VendorNintendo).Int("product", ProductVirtMouse).
		Msg("registered virtual mouse")

	vm := &VirtMouse{dev: dev, tuning: tuning, done: make(chan struct{})}
	vm.ready.Store(true)
	go vm.pollLoop()
	return vm, nil
}

// RelayEvent consumes right-stick samples and the two trigger keys from
// the physical event stream. Everything else is ignored.
func (vm *VirtMouse) RelayEvent(ev evdev.Event) {
	switch ev.Type {
	case evdev.EV_ABS:
		switch ev.Code {
		case evdev.ABS_RX:
			vm.senseX.Store(float64(ev.Value) * vm.tuning.SenseX)
		case evdev.ABS_RY:
			vm.senseY.Store(float64(ev.Value) * vm.tuning.SenseY)
		}
	case evdev.EV_KEY:
		switch ev.Code {
		case evdev.BTN_TL2:
			vm.dev.Emit(evdev.EV_KEY, evdev.BTN_LEFT, ev.Value)
			vm.dev.Sync()
		case evdev.BTN_TR2:
			vm.dev.Emit(evdev.EV_KEY, evdev.BTN_RIGHT, ev.Value)
			vm.dev.Sync()
		}
	}
}

// mouseStep computes the relative motion for one poll tick: the truncated
// velocities when either axis clears its deadzone, zeros otherwise.
func mouseStep(senseX, senseY, deadX, deadY float64) (int32, int32) {
	if math.Abs(senseX) > deadX || math.Abs(senseY) > deadY {
		return int32(senseX), int32(senseY)
	}
	return 0, 0
}

func (vm *VirtMouse) pollLoop() {
	defer close(vm.done)
	for vm.ready.Load() {
		dx, dy := mouseStep(vm.senseX.Load(), vm.senseY.Load(), vm.tuning.DeadX, vm.tuning.DeadY)
		vm.dev.Emit(evdev.EV_REL, evdev.REL_X, dx)
		vm.dev.Emit(evdev.EV_REL, evdev.REL_Y, dy)
		vm.dev.Sync()
		time.Sleep(vm.tuning.Poll)
	}
}

// Close stops the polling goroutine and destroys the pointer device.
func (vm *VirtMouse) Close() {
	vm.ready.Store(false)
	<-vm.done
	if err := vm.dev.Close(); err != nil {
		log.Error().Err(err).Msg("failed to destroy virtual mouse")
	}
}
