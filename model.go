// Package joycond pairs Nintendo Switch controllers exposed by the kernel's
// hid-nintendo driver into virtual game controllers with uniform semantics:
// lone Pro Controllers become a virtual Pro device, two Joy-Cons combine
// into one dual-stick controller, and input, force feedback and player LEDs
// are relayed between the physical and virtual sides.
package joycond

// Nintendo vendor and product identifiers accepted by the daemon.
const (
	VendorNintendo = 0x057e

	ProductLeftJoycon   = 0x2006
	ProductRightJoycon  = 0x2007
	ProductProcon       = 0x2009
	ProductChargingGrip = 0x200e
	ProductSnescon      = 0x2017
	ProductSio          = 0xf123

	// Identity of the published virtual devices.
	ProductVirtProcon = 0x2008
	ProductVirtMouse  = 0x2010
)

// Model identifies the kind of physical controller behind an event device.
type Model int

const (
	ModelUnknown Model = iota
	ModelLeftJoycon
	ModelRightJoycon
	ModelProcon
	ModelSnescon
	ModelSio
)

func (m Model) String() string {
	switch m {
	case ModelLeftJoycon:
		return "left joy-con"
	case ModelRightJoycon:
		return "right joy-con"
	case ModelProcon:
		return "pro controller"
	case ModelSnescon:
		return "snes controller"
	case ModelSio:
		return "switch lite"
	default:
		return "unknown"
	}
}

// modelForProduct maps a product id to its Model. The charging grip
// (0x200e) cannot be decoded from the id alone and must be disambiguated
// by capability before calling this.
func modelForProduct(product int) Model {
	switch product {
	case ProductLeftJoycon:
		return ModelLeftJoycon
	case ProductRightJoycon:
		return ModelRightJoycon
	case ProductProcon:
		return ModelProcon
	case ProductSnescon:
		return ModelSnescon
	case ProductSio:
		return ModelSio
	default:
		return ModelUnknown
	}
}

// acceptedProduct reports whether the product id belongs to a controller
// this daemon manages.
func acceptedProduct(product int) bool {
	switch product {
	case ProductLeftJoycon, ProductRightJoycon, ProductProcon,
		ProductChargingGrip, ProductSnescon, ProductSio:
		return true
	}
	return false
}

// PairingState is the derived decision of how an unpaired controller wants
// to be wrapped. It is recomputed from current state on every dispatch,
// never stored.
type PairingState int

const (
	// StatePairing: just attached, no decision possible yet.
	StatePairing PairingState = iota
	// StateWaiting: a Joy-Con holding out for a partner to combine with.
	StateWaiting
	// StateHorizontal: a lone Joy-Con to be exposed sideways.
	StateHorizontal
	// StateVirtProcon: to be wrapped as a Pro-shaped virtual device.
	StateVirtProcon
	// StateLone: generic passthrough.
	StateLone
)

func (s PairingState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateHorizontal:
		return "horizontal"
	case StateVirtProcon:
		return "virt-procon"
	case StateLone:
		return "lone"
	default:
		return "pairing"
	}
}
