package joycond

import (
	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
	"github.com/joycond-linux/go-joycond/pkg/uinput"
)

// screenshotKey is the capture button code reported by hid-nintendo; a
// press toggles right-stick-as-mouse mode in-band.
const screenshotKey = 309

// ffEffectsMax caps concurrently uploaded effects on the virtual device.
const ffEffectsMax = 10

// eventWriter is the slice of the uinput device the relay writes through.
type eventWriter interface {
	Emit(typ, code uint16, value int32) error
}

// mouseSink is the slice of the virtual mouse the relay feeds.
type mouseSink interface {
	RelayEvent(ev evdev.Event)
}

// physEffect records one uploaded force-feedback effect on one physical
// device.
type physEffect struct {
	phys *PhysCtlr
	id   int16
}

// proRelay is the bidirectional event machinery behind the Pro-shaped
// wrappers: phys→virt translation against the live mapping, and the
// virt→phys force-feedback and LED proxy.
type proRelay struct {
	udev    *uinput.Device
	mapping *Mapping
	mouse   *VirtMouse

	// effects maps a client-visible effect id to the per-device effects
	// it was proxied onto.
	effects map[int16][]physEffect
}

// newProDevice publishes the Pro-shaped uinput device. The analog choice
// is baked in here: with analog triggers the ZL/ZR key codes are omitted
// entirely so clients see them as axes only. The Switch Lite variant drops
// the LED codes (it has no player LEDs to mirror).
func newProDevice(uinputPath string, name string, analog, withLEDs bool) (*uinput.Device, error) {
	cfg := uinput.Config{
		Name: name,
		ID: evdev.ID{
			// The virtual bus would be honest, but games ignore
			// gamepads that are not on USB.
			Bustype: evdev.BUS_USB,
			Vendor:  VendorNintendo,
			Product: ProductVirtProcon,
		},
		Keys: []uint16{
			evdev.BTN_SELECT, evdev.BTN_Z, evdev.BTN_THUMBL,
			evdev.BTN_START, evdev.BTN_MODE, evdev.BTN_THUMBR,
			evdev.BTN_SOUTH, evdev.BTN_EAST, evdev.BTN_NORTH, evdev.BTN_WEST,
			evdev.BTN_DPAD_UP, evdev.BTN_DPAD_DOWN,
			evdev.BTN_DPAD_LEFT, evdev.BTN_DPAD_RIGHT,
			evdev.BTN_TL, evdev.BTN_TR,
		},
		FF: []uint16{
			evdev.FF_RUMBLE, evdev.FF_PERIODIC, evdev.FF_SQUARE,
			evdev.FF_TRIANGLE, evdev.FF_SINE, evdev.FF_GAIN,
		},
		FFEffectsMax: ffEffectsMax,
	}
	if !analog {
		cfg.Keys = append(cfg.Keys, evdev.BTN_TL2, evdev.BTN_TR2)
	}

	stick := evdev.AbsInfo{Minimum: -32767, Maximum: 32767, Fuzz: 250, Flat: 500}
	hat := evdev.AbsInfo{Minimum: -1, Maximum: 1}
	cfg.Abs = []uinput.AbsAxis{
		{Code: evdev.ABS_X, Info: stick},
		{Code: evdev.ABS_Y, Info: stick},
		{Code: evdev.ABS_RX, Info: stick},
		{Code: evdev.ABS_RY, Info: stick},
		{Code: evdev.ABS_HAT0X, Info: hat},
		{Code: evdev.ABS_HAT0Y, Info: hat},
	}
	if analog {
		trigger := evdev.AbsInfo{Minimum: 0, Maximum: 1}
		cfg.Abs = append(cfg.Abs,
			uinput.AbsAxis{Code: evdev.ABS_Z, Info: trigger},
			uinput.AbsAxis{Code: evdev.ABS_RZ, Info: trigger},
		)
	}
	if withLEDs {
		cfg.LEDs = []uint16{0, 1, 2, 3}
	}
	return uinput.Create(uinputPath, cfg)
}

func newProRelay(udev *uinput.Device, mapping *Mapping, mouse *VirtMouse) *proRelay {
	return &proRelay{
		udev:    udev,
		mapping: mapping,
		mouse:   mouse,
		effects: make(map[int16][]physEffect),
	}
}

// relayPhys drains one physical device through the translation into the
// virtual device.
func (r *proRelay) relayPhys(phys *PhysCtlr) {
	err := phys.Device().Drain(func(ev evdev.Event) {
		var mouse mouseSink
		if r.mouse != nil {
			mouse = r.mouse
		}
		translateEvent(ev, r.mapping, r.udev, mouse)
	})
	if err != nil {
		log.Error().Err(err).Str("devnode", phys.Devnode()).Msg("failed to relay controller events")
	}
}

// translateEvent rewrites one physical event for the virtual device:
// feeds the mouse, emulates analog triggers, applies the key layout,
// folds the d-pad into the hat axes, and passes the rest through.
func translateEvent(ev evdev.Event, mapping *Mapping, out eventWriter, mouse mouseSink) {
	if mapping.RSMouse.Load() && mouse != nil {
		mouse.RelayEvent(ev)
	}

	if mapping.Analog.Load() && ev.Type == evdev.EV_KEY {
		switch ev.Code {
		case evdev.BTN_TL2:
			out.Emit(evdev.EV_ABS, evdev.ABS_Z, ev.Value)
			return
		case evdev.BTN_TR2:
			out.Emit(evdev.EV_ABS, evdev.ABS_RZ, ev.Value)
			return
		}
	}

	if ev.Type == evdev.EV_KEY && ev.Code == screenshotKey && ev.Value != 0 {
		mapping.RSMouse.Store(!mapping.RSMouse.Load())
	}

	if ev.Type == evdev.EV_KEY {
		if mapped, ok := mapping.LookupKey(uint32(ev.Code)); ok {
			out.Emit(evdev.EV_KEY, uint16(mapped), ev.Value)
			return
		}
		switch ev.Code {
		case evdev.BTN_DPAD_UP:
			out.Emit(evdev.EV_ABS, evdev.ABS_HAT0Y, -ev.Value)
			return
		case evdev.BTN_DPAD_DOWN:
			out.Emit(evdev.EV_ABS, evdev.ABS_HAT0Y, ev.Value)
			return
		case evdev.BTN_DPAD_LEFT:
			out.Emit(evdev.EV_ABS, evdev.ABS_HAT0X, -ev.Value)
			return
		case evdev.BTN_DPAD_RIGHT:
			out.Emit(evdev.EV_ABS, evdev.ABS_HAT0X, ev.Value)
			return
		}
	}

	out.Emit(ev.Type, ev.Code, ev.Value)
}

// handleUinput drains the virtual device's fd and proxies what the kernel
// routed to us: force-feedback playback and upload/erase transactions onto
// the member physicals, and LED echo back to the clients.
func (r *proRelay) handleUinput(targets []*PhysCtlr) {
	err := r.udev.Drain(func(ev evdev.Event) {
		switch ev.Type {
		case evdev.EV_FF:
			r.forwardPlayback(ev, targets)
		case evdev.EV_UINPUT:
			switch ev.Code {
			case uinput.FFUploadCode:
				r.handleUpload(uint32(ev.Value), targets)
			case uinput.FFEraseCode:
				r.handleErase(uint32(ev.Value))
			default:
				log.Error().Uint16("code", ev.Code).Msg("unhandled EV_UINPUT code")
			}
		case evdev.EV_LED:
			// Clients clearing an LED get the set state echoed back;
			// the pairing manager is the authority on player LEDs.
			if ev.Value == 0 {
				r.udev.Emit(evdev.EV_LED, ev.Code, 1)
			}
		default:
			log.Error().Uint16("type", ev.Type).Msg("unhandled uinput event type")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("failed reading uinput fd")
	}
}

// forwardPlayback rewrites a playback request to the physical effect ids
// and writes it to every member device. Codes at FF_GAIN and above address
// the device, not an effect, and pass through untranslated.
func (r *proRelay) forwardPlayback(ev evdev.Event, targets []*PhysCtlr) {
	entries, ok := r.effects[int16(ev.Code)]
	if !ok {
		if ev.Code < evdev.FF_GAIN {
			log.Error().Uint16("id", ev.Code).Msg("ff effect id is not in map")
		}
		for _, phys := range targets {
			if err := phys.Device().WriteEvent(ev); err != nil {
				log.Error().Err(err).Msg("failed to forward EV_FF to phys")
			}
		}
		return
	}
	for _, entry := range entries {
		redirected := ev
		redirected.Code = uint16(entry.id)
		if err := entry.phys.Device().WriteEvent(redirected); err != nil {
			log.Error().Err(err).Msg("failed to forward EV_FF to phys")
		}
	}
}

// handleUpload runs one UI_FF_UPLOAD transaction: fetch the effect from
// the kernel, upload it to every member device (reusing the physical ids
// on updates), record the id translation, and complete the transaction.
func (r *proRelay) handleUpload(requestID uint32, targets []*PhysCtlr) {
	upload, err := r.udev.BeginFFUpload(requestID)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin ff upload")
		return
	}

	virtID := upload.Effect.ID
	existing := r.effects[virtID]
	entries := make([]physEffect, 0, len(targets))

	upload.Retval = 0
	for _, phys := range targets {
		effect := upload.Effect
		effect.ID = -1
		for _, old := range existing {
			if old.phys == phys {
				effect.ID = old.id
				break
			}
		}
		if err := phys.Device().UploadEffect(&effect); err != nil {
			log.Error().Err(err).Msg("ff upload to phys failed")
			var errno unix.Errno
			if errors.As(err, &errno) {
				upload.Retval = int32(errno)
			} else {
				upload.Retval = int32(unix.EIO)
			}
			continue
		}
		entries = append(entries, physEffect{phys: phys, id: effect.ID})
	}
	if len(entries) > 0 {
		r.effects[virtID] = entries
	}

	if err := r.udev.EndFFUpload(upload); err != nil {
		log.Error().Err(err).Msg("failed to end ff upload")
	}
}

// handleErase runs one UI_FF_ERASE transaction, dropping the id
// translation once the physical effects are removed.
func (r *proRelay) handleErase(requestID uint32) {
	erase, err := r.udev.BeginFFErase(requestID)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin ff erase")
		return
	}

	erase.Retval = 0
	virtID := int16(erase.EffectID)
	entries, ok := r.effects[virtID]
	if !ok {
		log.Warn().Int16("id", virtID).Msg("erase for unknown ff effect id")
	}
	for _, entry := range entries {
		if err := entry.phys.Device().EraseEffect(int(entry.id)); err != nil {
			log.Error().Err(err).Msg("ff erase on phys failed")
			var errno unix.Errno
			if errors.As(err, &errno) {
				erase.Retval = int32(errno)
			} else {
				erase.Retval = int32(unix.EIO)
			}
		}
	}
	delete(r.effects, virtID)

	if err := r.udev.EndFFErase(erase); err != nil {
		log.Error().Err(err).Msg("failed to end ff erase")
	}
}

// dropEffectsFor forgets effect translations that point at a departing
// physical device.
func (r *proRelay) dropEffectsFor(phys *PhysCtlr) {
	for virtID, entries := range r.effects {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.phys != phys {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(r.effects, virtID)
			continue
		}
		r.effects[virtID] = kept
	}
}

// setVirtPlayerLEDs mirrors the slot's player number onto the virtual
// device's LED codes.
func (r *proRelay) setVirtPlayerLEDs(player int) bool {
	if player < 1 || player > 4 {
		log.Error().Int("player", player).Msg("not a valid player led value")
		return false
	}
	for i := 0; i < player; i++ {
		r.udev.Emit(evdev.EV_LED, uint16(i), 1)
	}
	return true
}
