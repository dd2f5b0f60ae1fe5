package joycond

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
)

// ledSettle is the pause between consecutive player-LED writes; the kernel
// trigger debounces faster updates away.
const ledSettle = 5 * time.Millisecond

// PhysCtlr owns one kernel input device: its evdev fd, its LED sysfs
// sinks, and the shoulder/trigger state tracked from the event stream.
type PhysCtlr struct {
	devpath string
	devnode string

	dev      *evdev.Device
	model    Model
	product  int
	isSerial bool
	mac      string

	playerLEDs  [4]*os.File
	ledTriggers [4]*os.File
	homeLED     *os.File

	l, zl, r, zr, sl, sr, plus, minus int32
}

// NewPhysCtlr opens and identifies the device at devnode, resolves its LED
// sinks, grabs it, and locks down its permissions until pairing completes.
func NewPhysCtlr(devpath, devnode string) (*PhysCtlr, error) {
	dev, err := evdev.Open(devnode)
	if err != nil {
		return nil, err
	}
	phys := &PhysCtlr{devpath: devpath, devnode: devnode, dev: dev}

	id, err := dev.ID()
	if err != nil {
		dev.Close()
		return nil, err
	}
	phys.product = int(id.Product)

	product := int(id.Product)
	if product == ProductChargingGrip {
		// The grip reports one product id for both halves; only the
		// left half carries the left shoulder key.
		if dev.HasKey(evdev.BTN_TL) {
			product = ProductLeftJoycon
		} else {
			product = ProductRightJoycon
		}
		log.Info().Msg("found charging grip joy-con")
	}
	phys.model = modelForProduct(product)
	if phys.model == ModelUnknown {
		log.Error().Int("product", int(id.Product)).Msg("unknown product id")
	} else {
		log.Info().Stringer("model", phys.model).Str("devnode", devnode).Msg("found controller")
	}

	if phys.model != ModelSio {
		phys.initLEDs()
	}

	// Keep other readers away from the raw device until pairing decides
	// what to expose.
	if err := dev.Grab(); err != nil {
		log.Error().Err(err).Str("devnode", devnode).Msg("failed to grab device")
	}
	if err := dev.Chmod(0o600); err != nil {
		log.Error().Err(err).Str("devnode", devnode).Msg("failed to change device permissions")
	}

	driver := sysfsLine(filepath.Join("/sys", devpath, "name"))
	log.Debug().Str("driver", driver).Msg("driver name")
	if strings.Contains(driver, "Serial") {
		log.Info().Msg("serial joy-con detected")
		// Serial controllers keep their player LEDs dark; clear them
		// before the flag turns LED writes into no-ops.
		phys.SetAllPlayerLEDs(false)
		phys.isSerial = true
	} else if phys.model == ModelSio {
		phys.isSerial = true
	}

	phys.mac = sysfsLine(filepath.Join("/sys", devpath, "uniq"))
	log.Info().Str("mac", phys.mac).Msg("controller identity")

	return phys, nil
}

// sysfsLine reads the first line of a sysfs attribute; missing attributes
// read as empty.
func sysfsLine(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	return line
}

// ledPath globs for the LED directory with the given suffix under the
// device's sysfs node.
func (phys *PhysCtlr) ledPath(name string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join("/sys", phys.devpath, "device/leds/*"+name))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// initLEDs resolves the player and home LED sysfs files. The leds
// directory appears slightly after the event node, so each lookup retries.
func (phys *PhysCtlr) initLEDs() {
	names := [4]string{"player1", "player2", "player3", "player4"}
	for i, name := range names {
		for attempt := 0; attempt < 100; attempt++ {
			dir, ok := phys.ledPath(name)
			if !ok {
				time.Sleep(10 * time.Microsecond)
				continue
			}
			brightness, err := os.OpenFile(filepath.Join(dir, "brightness"), os.O_WRONLY, 0)
			if err != nil {
				log.Error().Err(err).Str("led", name).Msg("failed to open led brightness")
				time.Sleep(10 * time.Microsecond)
				continue
			}
			trigger, err := os.OpenFile(filepath.Join(dir, "trigger"), os.O_WRONLY, 0)
			if err != nil {
				brightness.Close()
				log.Error().Err(err).Str("led", name).Msg("failed to open led trigger")
				time.Sleep(10 * time.Microsecond)
				continue
			}
			phys.playerLEDs[i] = brightness
			phys.ledTriggers[i] = trigger
			break
		}
	}

	if phys.model == ModelLeftJoycon {
		return
	}
	for attempt := 0; attempt < 100; attempt++ {
		dir, ok := phys.ledPath("home")
		if !ok {
			time.Sleep(10 * time.Microsecond)
			continue
		}
		home, err := os.OpenFile(filepath.Join(dir, "brightness"), os.O_WRONLY, 0)
		if err != nil {
			log.Error().Err(err).Msg("failed to open home led brightness")
			time.Sleep(10 * time.Microsecond)
			continue
		}
		phys.homeLED = home
		break
	}
}

// Devpath returns the sysfs path the controller was discovered under.
func (phys *PhysCtlr) Devpath() string { return phys.devpath }

// Devnode returns the /dev/input/eventN node.
func (phys *PhysCtlr) Devnode() string { return phys.devnode }

// Model returns the decoded controller model.
func (phys *PhysCtlr) Model() Model { return phys.model }

// MAC returns the controller's stable hardware identifier, or "" when the
// driver exposes none.
func (phys *PhysCtlr) MAC() string { return phys.mac }

// IsSerial reports whether the controller is wired through the serial
// driver (always true for the Switch Lite).
func (phys *PhysCtlr) IsSerial() bool { return phys.isSerial }

// Fd returns the evdev file descriptor.
func (phys *PhysCtlr) Fd() int { return phys.dev.Fd() }

// Device returns the underlying evdev device.
func (phys *PhysCtlr) Device() *evdev.Device { return phys.dev }

// Close releases the evdev fd and the LED sinks.
func (phys *PhysCtlr) Close() {
	phys.dev.Close()
	for i := range phys.playerLEDs {
		if phys.playerLEDs[i] != nil {
			phys.playerLEDs[i].Close()
		}
		if phys.ledTriggers[i] != nil {
			phys.ledTriggers[i].Close()
		}
	}
	if phys.homeLED != nil {
		phys.homeLED.Close()
	}
}

// handleEvent folds one event into the shoulder/trigger state. Only EV_KEY
// matters at this layer; the codes are model-specific because sideways
// Joy-Cons report SL/SR on the shoulder codes.
func (phys *PhysCtlr) handleEvent(ev evdev.Event) {
	if ev.Type != evdev.EV_KEY {
		return
	}
	val := ev.Value
	switch phys.model {
	case ModelProcon, ModelSnescon:
		switch ev.Code {
		case evdev.BTN_TL:
			phys.l = val
		case evdev.BTN_TL2:
			phys.zl = val
		case evdev.BTN_TR:
			phys.r = val
		case evdev.BTN_TR2:
			phys.zr = val
		case evdev.BTN_START:
			phys.plus = val
		case evdev.BTN_SELECT:
			phys.minus = val
		}
	case ModelSio:
		switch ev.Code {
		case evdev.BTN_TL:
			phys.l = val
		case evdev.BTN_TL2:
			phys.zl = val
		case evdev.BTN_TR:
			phys.r = val
		case evdev.BTN_TR2:
			phys.zr = val
		}
	case ModelLeftJoycon:
		switch ev.Code {
		case evdev.BTN_TL:
			phys.l = val
		case evdev.BTN_TL2:
			phys.zl = val
		case evdev.BTN_TR:
			phys.sl = val
		case evdev.BTN_TR2:
			phys.sr = val
		}
	case ModelRightJoycon:
		switch ev.Code {
		case evdev.BTN_TL:
			phys.sl = val
		case evdev.BTN_TL2:
			phys.sr = val
		case evdev.BTN_TR:
			phys.r = val
		case evdev.BTN_TR2:
			phys.zr = val
		}
	}
}

// HandleEvents drains the device and updates the tracked state.
func (phys *PhysCtlr) HandleEvents() {
	if err := phys.dev.Drain(phys.handleEvent); err != nil {
		log.Error().Err(err).Str("devnode", phys.devnode).Msg("failed to drain controller events")
	}
}

// PairingState derives how this controller wants to be wrapped right now.
// The rule is fixed: the Switch Lite and full-size pads wrap immediately,
// wired Joy-Cons always accept pairing, wireless Joy-Cons depend on the
// combined toggle.
func (phys *PhysCtlr) PairingState(combined bool) PairingState {
	if phys.product == ProductChargingGrip {
		return StateWaiting
	}
	if phys.model == ModelSio {
		return StateVirtProcon
	}
	if phys.isSerial {
		return StateWaiting
	}
	switch phys.model {
	case ModelProcon, ModelSnescon:
		return StateVirtProcon
	case ModelLeftJoycon, ModelRightJoycon:
		if !combined {
			return StateHorizontal
		}
		return StateWaiting
	}
	return StatePairing
}

// SetPlayerLED writes one player LED. Serial controllers have no usable
// LED sinks; the write is skipped.
func (phys *PhysCtlr) SetPlayerLED(index int, on bool) bool {
	if index > 3 || phys.playerLEDs[index] == nil || phys.isSerial {
		return false
	}
	value := "0"
	if on {
		value = "1"
	}
	if _, err := phys.playerLEDs[index].WriteString(value); err != nil {
		log.Error().Err(err).Int("led", index).Msg("failed to set player led")
		return false
	}
	return true
}

// SetAllPlayerLEDs writes all four player LEDs.
func (phys *PhysCtlr) SetAllPlayerLEDs(on bool) bool {
	for i := 0; i < 4; i++ {
		if !phys.SetPlayerLED(i, on) {
			return false
		}
		time.Sleep(ledSettle)
	}
	return true
}

// SetPlayerLEDsToPlayer lights the first player LEDs for player 1..4.
func (phys *PhysCtlr) SetPlayerLEDsToPlayer(player int) bool {
	if player < 1 || player > 4 {
		log.Error().Int("player", player).Msg("not a valid player led value")
		return false
	}
	phys.SetAllPlayerLEDs(false)
	for i := 0; i < player; i++ {
		phys.SetPlayerLED(i, true)
		time.Sleep(ledSettle)
	}
	return true
}

// SetHomeLED sets the home button LED brightness (0..15).
func (phys *PhysCtlr) SetHomeLED(brightness int) bool {
	if brightness > 15 || phys.homeLED == nil {
		return false
	}
	if _, err := phys.homeLED.WriteString(strconv.Itoa(brightness)); err != nil {
		log.Error().Err(err).Msg("failed to set home led")
		return false
	}
	return true
}

// BlinkPlayerLEDs binds the player LEDs to the kernel timer trigger so
// they blink while the controller waits for pairing.
func (phys *PhysCtlr) BlinkPlayerLEDs() error {
	phys.SetAllPlayerLEDs(false)
	for i := range phys.ledTriggers {
		if phys.ledTriggers[i] == nil {
			continue
		}
		if _, err := phys.ledTriggers[i].WriteString("timer"); err != nil {
			return errors.Wrap(err, "failed to select led timer trigger; is ledtrig-timer probed?")
		}
	}
	return nil
}
