package joycond

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/joycond-linux/go-joycond/pkg/evdev"
	"github.com/joycond-linux/go-joycond/pkg/evloop"
)

// sysfsSettle is how long the hotplug callback waits before reading sysfs;
// the driver populates the attributes slightly after the uevent fires.
const sysfsSettle = 100 * time.Millisecond

// Detector discovers controllers: a startup scan of /dev/input plus a
// kernel-uevent netlink socket registered with the event loop. Disconnect
// uevents arrive late, so it also polls the remembered device nodes for
// silent removals.
type Detector struct {
	manager *Manager
	loop    *evloop.Loop

	conn *netlink.UEventConn
	sub  *evloop.Subscriber

	// devnodes remembers devpath → devnode for everything handed to the
	// manager; macs indexes the same set by hardware address.
	devnodes map[string]string
	macs     map[string]string
}

// NewDetector scans for already-present controllers and opens the uevent
// socket.
func NewDetector(manager *Manager, loop *evloop.Loop) (*Detector, error) {
	d := &Detector{
		manager:  manager,
		loop:     loop,
		devnodes: make(map[string]string),
		macs:     make(map[string]string),
	}

	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, errors.Wrap(err, "scan /dev/input")
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "event") {
			continue
		}
		devnode := filepath.Join("/dev/input", entry.Name())
		devpath := sysfsPathFor(entry.Name())
		if !checkCtlrAttributes(devnode) {
			continue
		}
		d.manager.AddCtlr(devpath, devnode)
		d.remember(devpath, devnode)
	}

	d.conn = new(netlink.UEventConn)
	if err := d.conn.Connect(netlink.KernelEvent); err != nil {
		return nil, errors.Wrap(err, "connect uevent netlink socket")
	}
	d.sub = evloop.NewSubscriber([]int{d.conn.Fd}, d.handleUevent)
	loop.AddSubscriber(d.sub)
	return d, nil
}

// sysfsPathFor synthesises the sysfs device path for an input node name.
func sysfsPathFor(name string) string {
	return "/class/input/" + name + "/device"
}

// checkCtlrAttributes opens the node and accepts it only if it is a
// Nintendo controller this daemon manages. The driver also exposes IMU
// subdevices under the same ids; those advertise the accelerometer
// property and are rejected.
func checkCtlrAttributes(devnode string) bool {
	dev, err := evdev.Open(devnode)
	if err != nil {
		log.Error().Err(err).Str("devnode", devnode).Msg("failed to open input device")
		return false
	}
	defer dev.Close()

	id, err := dev.ID()
	if err != nil {
		return false
	}
	accel := dev.HasProperty(evdev.INPUT_PROP_ACCELEROMETER)
	log.Info().
		Int("vendor", int(id.Vendor)).Int("product", int(id.Product)).Bool("accel", accel).
		Str("devnode", devnode).Msg("input device connected")

	if int(id.Vendor) != VendorNintendo {
		return false
	}
	if !acceptedProduct(int(id.Product)) {
		return false
	}
	return !accel
}

func (d *Detector) remember(devpath, devnode string) {
	d.devnodes[devpath] = devnode
	if mac := sysfsLine(filepath.Join("/sys", devpath, "uniq")); mac != "" {
		d.macs[mac] = devpath
	}
}

func (d *Detector) forget(devpath string) {
	delete(d.devnodes, devpath)
	for mac, path := range d.macs {
		if path == devpath {
			delete(d.macs, mac)
		}
	}
}

// Tick scans the remembered device nodes for controllers that vanished
// without (or ahead of) a remove uevent. The event loop's wait timeout
// bounds how stale this check can get.
func (d *Detector) Tick() {
	for devpath, devnode := range d.devnodes {
		if unix.Access(devnode, unix.F_OK) == nil {
			continue
		}
		log.Info().Str("devnode", devnode).Msg("controller vanished; removing")
		d.manager.RemoveCtlr(devpath)
		d.forget(devpath)
	}
}

// handleUevent is the netlink fd callback: scan for silent removals, then
// parse and act on the datagram.
func (d *Detector) handleUevent(fd int) {
	d.Tick()

	raw, err := d.conn.ReadMsg()
	if err != nil {
		log.Error().Err(err).Msg("failed to read uevent datagram")
		return
	}
	uevent, err := netlink.ParseUEvent(raw)
	if err != nil {
		log.Debug().Err(err).Msg("skipping unparseable uevent")
		return
	}

	devnode, add, ok := classifyUevent(string(uevent.Action), uevent.Env)
	if !ok {
		return
	}
	devpath := sysfsPathFor(filepath.Base(devnode))

	// Let the driver finish populating sysfs before reading it.
	time.Sleep(sysfsSettle)

	// A known MAC on a new devpath means the old entry is a leftover
	// from a transport switch whose remove event has not landed yet.
	mac := sysfsLine(filepath.Join("/sys", devpath, "uniq"))
	if mac != "" {
		if oldPath, known := d.macs[mac]; known && oldPath != devpath {
			log.Info().Str("mac", mac).Msg("mac already known; replacing old controller")
			d.manager.RemoveCtlr(oldPath)
			d.forget(oldPath)
		}
	}

	if !add {
		log.Info().Str("devpath", devpath).Msg("remove uevent for controller")
		d.forget(devpath)
		d.manager.RemoveCtlr(devpath)
		return
	}

	if checkCtlrAttributes(devnode) {
		log.Info().Str("devpath", devpath).Msg("add uevent for controller")
		d.manager.AddCtlr(devpath, devnode)
		d.remember(devpath, devnode)
	}
}

// classifyUevent filters one uevent record down to the input add/remove
// events carrying an event or hid node.
func classifyUevent(action string, env map[string]string) (devnode string, add, ok bool) {
	switch action {
	case "add":
		add = true
	case "remove":
	default:
		return "", false, false
	}
	if env["SUBSYSTEM"] != "input" {
		return "", false, false
	}
	devname := env["DEVNAME"]
	if devname == "" {
		return "", false, false
	}
	if !strings.HasPrefix(devname, "/dev/") {
		devname = "/dev/" + devname
	}
	base := filepath.Base(devname)
	if !strings.Contains(base, "event") && !strings.Contains(base, "hid") {
		return "", false, false
	}
	return devname, add, true
}

// Close unhooks the detector from the event loop and closes the socket.
func (d *Detector) Close() {
	d.loop.RemoveSubscriber(d.sub)
	if err := d.conn.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close uevent socket")
	}
}
