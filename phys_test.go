package joycond

import (
	"testing"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
)

func TestPairingStateDerivation(t *testing.T) {
	tests := []struct {
		name     string
		model    Model
		product  int
		isSerial bool
		combined bool
		want     PairingState
	}{
		{"sio is always a virtual pro", ModelSio, ProductSio, true, true, StateVirtProcon},
		{"charging grip waits", ModelLeftJoycon, ProductChargingGrip, false, false, StateWaiting},
		{"serial joy-con always pairs", ModelLeftJoycon, ProductLeftJoycon, true, false, StateWaiting},
		{"pro controller wraps at once", ModelProcon, ProductProcon, false, true, StateVirtProcon},
		{"snes controller wraps at once", ModelSnescon, ProductSnescon, false, false, StateVirtProcon},
		{"left joy-con waits when combined", ModelLeftJoycon, ProductLeftJoycon, false, true, StateWaiting},
		{"right joy-con waits when combined", ModelRightJoycon, ProductRightJoycon, false, true, StateWaiting},
		{"left joy-con goes horizontal otherwise", ModelLeftJoycon, ProductLeftJoycon, false, false, StateHorizontal},
		{"right joy-con goes horizontal otherwise", ModelRightJoycon, ProductRightJoycon, false, false, StateHorizontal},
		{"unknown keeps pairing", ModelUnknown, 0x1234, false, true, StatePairing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phys := &PhysCtlr{model: tt.model, product: tt.product, isSerial: tt.isSerial}
			if got := phys.PairingState(tt.combined); got != tt.want {
				t.Errorf("PairingState(%v) = %v, want %v", tt.combined, got, tt.want)
			}
		})
	}
}

func key(code uint16, value int32) evdev.Event {
	return evdev.Event{Type: evdev.EV_KEY, Code: code, Value: value}
}

func TestHandleEventTracksTriggers(t *testing.T) {
	phys := &PhysCtlr{model: ModelProcon}
	phys.handleEvent(key(evdev.BTN_TL, 1))
	phys.handleEvent(key(evdev.BTN_TR2, 1))
	phys.handleEvent(key(evdev.BTN_START, 1))
	if phys.l != 1 || phys.zr != 1 || phys.plus != 1 {
		t.Errorf("pro state l=%d zr=%d plus=%d, want all 1", phys.l, phys.zr, phys.plus)
	}

	left := &PhysCtlr{model: ModelLeftJoycon}
	left.handleEvent(key(evdev.BTN_TR, 1))
	left.handleEvent(key(evdev.BTN_TR2, 1))
	if left.sl != 1 || left.sr != 1 {
		t.Errorf("left joy-con sl=%d sr=%d, want side buttons tracked", left.sl, left.sr)
	}

	right := &PhysCtlr{model: ModelRightJoycon}
	right.handleEvent(key(evdev.BTN_TL, 1))
	if right.sl != 1 {
		t.Errorf("right joy-con sl=%d, want 1", right.sl)
	}
}

func TestHandleEventIgnoresNonKey(t *testing.T) {
	phys := &PhysCtlr{model: ModelProcon}
	phys.handleEvent(evdev.Event{Type: evdev.EV_ABS, Code: evdev.ABS_X, Value: 100})
	if phys.l != 0 || phys.r != 0 {
		t.Error("absolute events must not touch trigger state")
	}
}

func TestModelForProduct(t *testing.T) {
	tests := []struct {
		product int
		want    Model
	}{
		{ProductLeftJoycon, ModelLeftJoycon},
		{ProductRightJoycon, ModelRightJoycon},
		{ProductProcon, ModelProcon},
		{ProductSnescon, ModelSnescon},
		{ProductSio, ModelSio},
		{0xbeef, ModelUnknown},
	}
	for _, tt := range tests {
		if got := modelForProduct(tt.product); got != tt.want {
			t.Errorf("modelForProduct(%#x) = %v, want %v", tt.product, got, tt.want)
		}
	}
}

func TestAcceptedProduct(t *testing.T) {
	for _, product := range []int{ProductLeftJoycon, ProductRightJoycon, ProductProcon, ProductChargingGrip, ProductSnescon, ProductSio} {
		if !acceptedProduct(product) {
			t.Errorf("acceptedProduct(%#x) = false, want true", product)
		}
	}
	if acceptedProduct(0x2008) {
		t.Error("the virtual pro product id must not be accepted as physical")
	}
}
