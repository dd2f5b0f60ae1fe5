package evdev

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event mirrors struct input_event from the kernel uapi. The layout must
// match the kernel's exactly; it is read from and written to evdev and
// uinput file descriptors verbatim.
type Event struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the wire size of one input_event record.
const EventSize = int(unsafe.Sizeof(Event{}))

// Bytes returns the event's in-memory representation for writing to a
// device fd.
func (ev *Event) Bytes() []byte {
	return (*[unsafe.Sizeof(Event{})]byte)(unsafe.Pointer(ev))[:]
}

// EventFromBytes decodes one input_event record. buf must hold at least
// EventSize bytes.
func EventFromBytes(buf []byte) Event {
	return *(*Event)(unsafe.Pointer(&buf[0]))
}

// ID mirrors struct input_id.
type ID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// FFTrigger mirrors struct ff_trigger.
type FFTrigger struct {
	Button   uint16
	Interval uint16
}

// FFReplay mirrors struct ff_replay.
type FFReplay struct {
	Length uint16
	Delay  uint16
}

// FFEffect mirrors struct ff_effect. The effect-specific union is kept as
// raw bytes: this daemon forwards effects between the virtual and physical
// device without interpreting them. The union holds a pointer member
// (ff_periodic_effect.custom_data), so it is 8-byte aligned in the kernel;
// the explicit pad keeps the Go layout identical.
type FFEffect struct {
	Type      uint16
	ID        int16
	Direction uint16
	Trigger   FFTrigger
	Replay    FFReplay
	_         [2]byte
	U         [32]byte
}

// ioctl request construction, following include/uapi/asm-generic/ioctl.h.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

// IOC packs direction, magic, number and size into an ioctl request code.
func IOC(dir, typ, nr, size uint) uint {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

// IO, IOR, IOW and IOWR mirror the _IO* macros.
func IO(typ, nr uint) uint { return IOC(iocNone, typ, nr, 0) }
func IOR[T any](typ, nr uint, v T) uint {
	return IOC(iocRead, typ, nr, uint(unsafe.Sizeof(v)))
}
func IOW[T any](typ, nr uint, v T) uint {
	return IOC(iocWrite, typ, nr, uint(unsafe.Sizeof(v)))
}
func IOWR[T any](typ, nr uint, v T) uint {
	return IOC(iocRead|iocWrite, typ, nr, uint(unsafe.Sizeof(v)))
}

var (
	// EVIOCGID retrieves the device identifier into an ID struct.
	EVIOCGID = IOR('E', 0x02, ID{})

	// EVIOCGRAB grabs or releases the device for exclusive access. The
	// argument is an immediate int, not a pointer.
	EVIOCGRAB = IOW('E', 0x90, int32(0))

	// EVIOCSFF uploads a force-feedback effect to the device.
	EVIOCSFF = IOW('E', 0x80, FFEffect{})

	// EVIOCRMFF removes a force-feedback effect; the argument is the
	// effect id as an immediate int.
	EVIOCRMFF = IOW('E', 0x81, int32(0))
)

// EVIOCGNAME retrieves the device name into a byte buffer of the given size.
func EVIOCGNAME(length uint) uint { return IOC(iocRead, 'E', 0x06, length) }

// EVIOCGPROP retrieves the device property bitmap.
func EVIOCGPROP(length uint) uint { return IOC(iocRead, 'E', 0x09, length) }

// EVIOCGBIT retrieves the capability bitmap for one event type (0 for the
// set of supported types).
func EVIOCGBIT(eventType, length uint) uint {
	return IOC(iocRead, 'E', 0x20+eventType, length)
}

// ioctl issues a request whose argument is a pointer.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlInt issues a request whose argument is an immediate value.
func ioctlInt(fd int, req uint, arg int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
