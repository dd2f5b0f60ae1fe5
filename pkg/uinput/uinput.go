// Package uinput creates user-space input devices through /dev/uinput and
// carries out the force-feedback upload/erase transactions that the kernel
// routes to the device's owner.
package uinput

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
)

// DefaultPath is where the uinput chardev normally lives.
const DefaultPath = "/dev/uinput"

const uinputMaxNameSize = 80

type uinputSetup struct {
	id           evdev.ID
	name         [uinputMaxNameSize]byte
	ffEffectsMax uint32
}

type uinputAbsSetup struct {
	code uint16
	info evdev.AbsInfo
}

// FFUpload mirrors struct uinput_ff_upload.
type FFUpload struct {
	RequestID uint32
	Retval    int32
	Effect    evdev.FFEffect
	Old       evdev.FFEffect
}

// FFErase mirrors struct uinput_ff_erase.
type FFErase struct {
	RequestID uint32
	Retval    int32
	EffectID  uint32
}

// Control codes delivered as EV_UINPUT events on the uinput fd.
const (
	FFUploadCode = 1 // UI_FF_UPLOAD
	FFEraseCode  = 2 // UI_FF_ERASE
)

var (
	uiDevCreate  = evdev.IO('U', 1)
	uiDevDestroy = evdev.IO('U', 2)
	uiDevSetup   = evdev.IOW('U', 3, uinputSetup{})
	uiAbsSetup   = evdev.IOW('U', 4, uinputAbsSetup{})

	uiSetEvBit   = evdev.IOW('U', 100, int32(0))
	uiSetKeyBit  = evdev.IOW('U', 101, int32(0))
	uiSetRelBit  = evdev.IOW('U', 102, int32(0))
	uiSetAbsBit  = evdev.IOW('U', 103, int32(0))
	uiSetLedBit  = evdev.IOW('U', 105, int32(0))
	uiSetFFBit   = evdev.IOW('U', 107, int32(0))
	uiSetPropBit = evdev.IOW('U', 110, int32(0))

	uiBeginFFUpload = evdev.IOWR('U', 200, FFUpload{})
	uiEndFFUpload   = evdev.IOW('U', 201, FFUpload{})
	uiBeginFFErase  = evdev.IOWR('U', 202, FFErase{})
	uiEndFFErase    = evdev.IOW('U', 203, FFErase{})
)

const uiSysnameLen = 64

func uiGetSysname(length uint) uint {
	return evdev.IOC(2 /* read */, 'U', 44, length)
}

// AbsAxis describes one absolute axis of a device under construction.
type AbsAxis struct {
	Code uint16
	Info evdev.AbsInfo
}

// Config enumerates the capabilities of a device to be created.
type Config struct {
	Name string
	ID   evdev.ID

	Keys  []uint16
	Rel   []uint16
	Abs   []AbsAxis
	LEDs  []uint16
	FF    []uint16
	Props []uint16

	// FFEffectsMax must be non-zero when FF codes are enabled; it caps
	// how many effects clients may keep uploaded at once.
	FFEffectsMax uint32
}

// Device is a created user-space input device. Reading its fd yields the
// events the kernel routes back to the device owner: EV_FF playback, LED
// writes, and EV_UINPUT force-feedback transactions.
type Device struct {
	file *os.File
	name string
}

// Create builds the device described by cfg at the given uinput path
// (DefaultPath when empty).
func Create(path string, cfg Config) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}
	if cfg.Name == "" {
		return nil, errors.New("uinput: device name may not be empty")
	}
	if len(cfg.Name) > uinputMaxNameSize {
		return nil, fmt.Errorf("uinput: device name %q is too long (max %d)", cfg.Name, uinputMaxNameSize)
	}

	file, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0o660)
	if err != nil {
		return nil, fmt.Errorf("uinput: open %s: %w", path, err)
	}
	dev := &Device{file: file, name: cfg.Name}

	type bitset struct {
		req   uint
		codes []uint16
	}
	evbits := []int32{evdev.EV_SYN}
	if len(cfg.Keys) > 0 {
		evbits = append(evbits, evdev.EV_KEY)
	}
	if len(cfg.Rel) > 0 {
		evbits = append(evbits, evdev.EV_REL)
	}
	if len(cfg.Abs) > 0 {
		evbits = append(evbits, evdev.EV_ABS)
	}
	if len(cfg.LEDs) > 0 {
		evbits = append(evbits, evdev.EV_LED)
	}
	if len(cfg.FF) > 0 {
		evbits = append(evbits, evdev.EV_FF)
	}
	for _, bit := range evbits {
		if err := dev.ioctlInt(uiSetEvBit, int(bit)); err != nil {
			dev.file.Close()
			return nil, fmt.Errorf("uinput: UI_SET_EVBIT %d: %w", bit, err)
		}
	}
	sets := []bitset{
		{uiSetKeyBit, cfg.Keys},
		{uiSetRelBit, cfg.Rel},
		{uiSetLedBit, cfg.LEDs},
		{uiSetFFBit, cfg.FF},
		{uiSetPropBit, cfg.Props},
	}
	for _, set := range sets {
		for _, code := range set.codes {
			if err := dev.ioctlInt(set.req, int(code)); err != nil {
				dev.file.Close()
				return nil, fmt.Errorf("uinput: set bit %d: %w", code, err)
			}
		}
	}
	for _, axis := range cfg.Abs {
		if err := dev.ioctlInt(uiSetAbsBit, int(axis.Code)); err != nil {
			dev.file.Close()
			return nil, fmt.Errorf("uinput: UI_SET_ABSBIT %d: %w", axis.Code, err)
		}
		setup := uinputAbsSetup{code: axis.Code, info: axis.Info}
		if err := dev.ioctl(uiAbsSetup, unsafe.Pointer(&setup)); err != nil {
			dev.file.Close()
			return nil, fmt.Errorf("uinput: UI_ABS_SETUP %d: %w", axis.Code, err)
		}
	}

	setup := uinputSetup{id: cfg.ID, ffEffectsMax: cfg.FFEffectsMax}
	copy(setup.name[:], cfg.Name)
	if err := dev.ioctl(uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		dev.file.Close()
		return nil, fmt.Errorf("uinput: UI_DEV_SETUP: %w", err)
	}
	if err := dev.ioctlInt(uiDevCreate, 0); err != nil {
		dev.file.Close()
		return nil, fmt.Errorf("uinput: UI_DEV_CREATE: %w", err)
	}
	// Give userspace (udev, the display server) a moment to pick the new
	// node up before events start flowing.
	time.Sleep(200 * time.Millisecond)
	return dev, nil
}

// Fd returns the uinput file descriptor.
func (dev *Device) Fd() int { return int(dev.file.Fd()) }

// Name returns the advertised device name.
func (dev *Device) Name() string { return dev.name }

// Sysname returns the kernel's sysfs name for the created device
// (inputNN under /sys/devices/virtual/input).
func (dev *Device) Sysname() (string, error) {
	var buf [uiSysnameLen]byte
	if err := dev.ioctl(uiGetSysname(uint(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return "", fmt.Errorf("uinput: UI_GET_SYSNAME: %w", err)
	}
	if n := bytes.IndexByte(buf[:], 0); n >= 0 {
		return string(buf[:n]), nil
	}
	return string(buf[:]), nil
}

// Emit writes one event into the virtual device.
func (dev *Device) Emit(typ, code uint16, value int32) error {
	ev := evdev.Event{Type: typ, Code: code, Value: value}
	if _, err := dev.file.Write(ev.Bytes()); err != nil {
		return fmt.Errorf("uinput: write event: %w", err)
	}
	return nil
}

// Sync emits a SYN_REPORT frame boundary.
func (dev *Device) Sync() error {
	return dev.Emit(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

// Drain reads all pending events off the uinput fd, invoking fn for each.
func (dev *Device) Drain(fn func(evdev.Event)) error {
	buf := make([]byte, 16*evdev.EventSize)
	for {
		n, err := unix.Read(dev.Fd(), buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				return nil
			}
			return fmt.Errorf("uinput: read: %w", err)
		}
		for off := 0; off+evdev.EventSize <= n; off += evdev.EventSize {
			fn(evdev.EventFromBytes(buf[off:]))
		}
	}
}

// BeginFFUpload starts the upload transaction for the given request id and
// returns the effect the client wants uploaded.
func (dev *Device) BeginFFUpload(requestID uint32) (*FFUpload, error) {
	upload := FFUpload{RequestID: requestID}
	if err := dev.ioctl(uiBeginFFUpload, unsafe.Pointer(&upload)); err != nil {
		return nil, fmt.Errorf("uinput: UI_BEGIN_FF_UPLOAD: %w", err)
	}
	return &upload, nil
}

// EndFFUpload completes the upload transaction, reporting upload.Retval to
// the client.
func (dev *Device) EndFFUpload(upload *FFUpload) error {
	if err := dev.ioctl(uiEndFFUpload, unsafe.Pointer(upload)); err != nil {
		return fmt.Errorf("uinput: UI_END_FF_UPLOAD: %w", err)
	}
	return nil
}

// BeginFFErase starts the erase transaction for the given request id.
func (dev *Device) BeginFFErase(requestID uint32) (*FFErase, error) {
	erase := FFErase{RequestID: requestID}
	if err := dev.ioctl(uiBeginFFErase, unsafe.Pointer(&erase)); err != nil {
		return nil, fmt.Errorf("uinput: UI_BEGIN_FF_ERASE: %w", err)
	}
	return &erase, nil
}

// EndFFErase completes the erase transaction.
func (dev *Device) EndFFErase(erase *FFErase) error {
	if err := dev.ioctl(uiEndFFErase, unsafe.Pointer(erase)); err != nil {
		return fmt.Errorf("uinput: UI_END_FF_ERASE: %w", err)
	}
	return nil
}

// Close destroys the virtual device and closes the fd.
func (dev *Device) Close() error {
	destroyErr := dev.ioctlInt(uiDevDestroy, 0)
	closeErr := dev.file.Close()
	if destroyErr != nil {
		return fmt.Errorf("uinput: UI_DEV_DESTROY: %w", destroyErr)
	}
	return closeErr
}

func (dev *Device) ioctl(req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dev.file.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (dev *Device) ioctlInt(req uint, arg int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dev.file.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
