// Package evdev reads and writes kernel input devices at /dev/input/eventN.
// It is deliberately small: open/grab/identify, a non-blocking event drain
// with SYN_DROPPED recovery, and the force-feedback upload ioctls that the
// relay needs to proxy effects onto a physical device.
package evdev

import (
	"bytes"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device wraps one open evdev file descriptor.
type Device struct {
	fd   int
	path string

	// dropped is set when the kernel reports SYN_DROPPED; events are
	// discarded until the next SYN_REPORT closes the damaged frame.
	dropped bool
}

// Open opens the event device non-blocking with read/write access. Write
// access is required to play force-feedback effects back into the device.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("evdev: open %s: %w", path, err)
	}
	return &Device{fd: fd, path: path}, nil
}

// FromFd wraps an already-open descriptor. The caller keeps responsibility
// for having opened it non-blocking.
func FromFd(fd int, path string) *Device {
	return &Device{fd: fd, path: path}
}

// Fd returns the underlying file descriptor.
func (dev *Device) Fd() int { return dev.fd }

// Path returns the device node this device was opened from.
func (dev *Device) Path() string { return dev.path }

// Close releases the file descriptor.
func (dev *Device) Close() error {
	if dev.fd < 0 {
		return nil
	}
	err := unix.Close(dev.fd)
	dev.fd = -1
	return err
}

// ID returns the device's bus/vendor/product/version identity.
func (dev *Device) ID() (ID, error) {
	var id ID
	if err := ioctl(dev.fd, EVIOCGID, unsafe.Pointer(&id)); err != nil {
		return ID{}, fmt.Errorf("evdev: EVIOCGID: %w", err)
	}
	return id, nil
}

// Name returns the kernel device name.
func (dev *Device) Name() (string, error) {
	var buf [256]byte
	if err := ioctl(dev.fd, EVIOCGNAME(uint(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return "", fmt.Errorf("evdev: EVIOCGNAME: %w", err)
	}
	if n := bytes.IndexByte(buf[:], 0); n >= 0 {
		return string(buf[:n]), nil
	}
	return string(buf[:]), nil
}

// HasProperty reports whether the device advertises the given input
// property (e.g. INPUT_PROP_ACCELEROMETER).
func (dev *Device) HasProperty(prop uint) bool {
	var buf [INPUT_PROP_MAX/8 + 1]byte
	if err := ioctl(dev.fd, EVIOCGPROP(uint(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return false
	}
	return buf[prop/8]&(1<<(prop%8)) != 0
}

// HasKey reports whether the device can emit the given key code.
func (dev *Device) HasKey(code uint) bool {
	var buf [KEY_CNT / 8]byte
	if err := ioctl(dev.fd, EVIOCGBIT(EV_KEY, uint(len(buf))), unsafe.Pointer(&buf[0])); err != nil {
		return false
	}
	return buf[code/8]&(1<<(code%8)) != 0
}

// Grab takes exclusive access: no other reader sees the device's events
// until Ungrab.
func (dev *Device) Grab() error {
	if err := ioctlInt(dev.fd, EVIOCGRAB, 1); err != nil {
		return fmt.Errorf("evdev: EVIOCGRAB: %w", err)
	}
	return nil
}

// Ungrab releases exclusive access.
func (dev *Device) Ungrab() error {
	if err := ioctlInt(dev.fd, EVIOCGRAB, 0); err != nil {
		return fmt.Errorf("evdev: ungrab: %w", err)
	}
	return nil
}

// Chmod changes the device node's permissions.
func (dev *Device) Chmod(mode uint32) error {
	return unix.Chmod(dev.path, mode)
}

// Drain reads all queued events, invoking fn for each, until the queue is
// empty. When the kernel signals SYN_DROPPED the remainder of the damaged
// frame is discarded up to and including the closing SYN_REPORT; the caller
// sees a consistent stream.
func (dev *Device) Drain(fn func(Event)) error {
	buf := make([]byte, 64*EventSize)
	for {
		n, err := unix.Read(dev.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				return nil
			}
			return fmt.Errorf("evdev: read %s: %w", dev.path, err)
		}
		if n < EventSize {
			return nil
		}
		for off := 0; off+EventSize <= n; off += EventSize {
			ev := EventFromBytes(buf[off:])
			if ev.Type == EV_SYN && ev.Code == SYN_DROPPED {
				dev.dropped = true
				continue
			}
			if dev.dropped {
				if ev.Type == EV_SYN && ev.Code == SYN_REPORT {
					dev.dropped = false
				}
				continue
			}
			fn(ev)
		}
	}
}

// WriteEvent writes one event into the device (LED state, FF playback).
func (dev *Device) WriteEvent(ev Event) error {
	if _, err := unix.Write(dev.fd, ev.Bytes()); err != nil {
		return fmt.Errorf("evdev: write %s: %w", dev.path, err)
	}
	return nil
}

// UploadEffect uploads or updates a force-feedback effect. On a fresh
// upload (effect.ID == -1) the kernel assigns the id in place.
func (dev *Device) UploadEffect(effect *FFEffect) error {
	if err := ioctl(dev.fd, EVIOCSFF, unsafe.Pointer(effect)); err != nil {
		return fmt.Errorf("evdev: EVIOCSFF: %w", err)
	}
	return nil
}

// EraseEffect removes a previously uploaded force-feedback effect.
func (dev *Device) EraseEffect(id int) error {
	if err := ioctlInt(dev.fd, EVIOCRMFF, id); err != nil {
		return fmt.Errorf("evdev: EVIOCRMFF(%d): %w", id, err)
	}
	return nil
}
