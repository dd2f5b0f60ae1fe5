package joycond

import "testing"

func TestClassifyUevent(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		env     map[string]string
		devnode string
		add     bool
		ok      bool
	}{
		{
			name:    "event add",
			action:  "add",
			env:     map[string]string{"SUBSYSTEM": "input", "DEVNAME": "input/event12"},
			devnode: "/dev/input/event12",
			add:     true,
			ok:      true,
		},
		{
			name:    "event remove",
			action:  "remove",
			env:     map[string]string{"SUBSYSTEM": "input", "DEVNAME": "input/event12"},
			devnode: "/dev/input/event12",
			add:     false,
			ok:      true,
		},
		{
			name:    "absolute devname",
			action:  "add",
			env:     map[string]string{"SUBSYSTEM": "input", "DEVNAME": "/dev/input/event3"},
			devnode: "/dev/input/event3",
			add:     true,
			ok:      true,
		},
		{
			name:    "hidraw node",
			action:  "add",
			env:     map[string]string{"SUBSYSTEM": "input", "DEVNAME": "hidraw2"},
			devnode: "/dev/hidraw2",
			add:     true,
			ok:      true,
		},
		{
			name:   "wrong subsystem",
			action: "add",
			env:    map[string]string{"SUBSYSTEM": "usb", "DEVNAME": "input/event12"},
			ok:     false,
		},
		{
			name:   "change action",
			action: "change",
			env:    map[string]string{"SUBSYSTEM": "input", "DEVNAME": "input/event12"},
			ok:     false,
		},
		{
			name:   "joystick node",
			action: "add",
			env:    map[string]string{"SUBSYSTEM": "input", "DEVNAME": "input/js0"},
			ok:     false,
		},
		{
			name:   "no devname",
			action: "add",
			env:    map[string]string{"SUBSYSTEM": "input"},
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devnode, add, ok := classifyUevent(tt.action, tt.env)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if devnode != tt.devnode || add != tt.add {
				t.Errorf("got (%q,%v), want (%q,%v)", devnode, add, tt.devnode, tt.add)
			}
		})
	}
}

func TestSysfsPathFor(t *testing.T) {
	if got := sysfsPathFor("event12"); got != "/class/input/event12/device" {
		t.Errorf("sysfsPathFor = %q", got)
	}
}
