package uinput

import (
	"testing"
	"unsafe"
)

func TestStructSizes(t *testing.T) {
	if size := unsafe.Sizeof(uinputSetup{}); size != 92 {
		t.Errorf("sizeof(uinput_setup) = %d, want 92", size)
	}
	if size := unsafe.Sizeof(uinputAbsSetup{}); size != 28 {
		t.Errorf("sizeof(uinput_abs_setup) = %d, want 28", size)
	}
	if size := unsafe.Sizeof(FFUpload{}); size != 104 {
		t.Errorf("sizeof(uinput_ff_upload) = %d, want 104", size)
	}
	if size := unsafe.Sizeof(FFErase{}); size != 12 {
		t.Errorf("sizeof(uinput_ff_erase) = %d, want 12", size)
	}
}

func TestRequestCodes(t *testing.T) {
	tests := []struct {
		name string
		got  uint
		want uint
	}{
		{"UI_DEV_CREATE", uiDevCreate, 0x5501},
		{"UI_DEV_DESTROY", uiDevDestroy, 0x5502},
		{"UI_DEV_SETUP", uiDevSetup, 0x405c5503},
		{"UI_ABS_SETUP", uiAbsSetup, 0x401c5504},
		{"UI_SET_EVBIT", uiSetEvBit, 0x40045564},
		{"UI_SET_KEYBIT", uiSetKeyBit, 0x40045565},
		{"UI_SET_RELBIT", uiSetRelBit, 0x40045566},
		{"UI_SET_ABSBIT", uiSetAbsBit, 0x40045567},
		{"UI_SET_LEDBIT", uiSetLedBit, 0x40045569},
		{"UI_SET_FFBIT", uiSetFFBit, 0x4004556b},
		{"UI_SET_PROPBIT", uiSetPropBit, 0x4004556e},
		{"UI_BEGIN_FF_UPLOAD", uiBeginFFUpload, 0xc06855c8},
		{"UI_END_FF_UPLOAD", uiEndFFUpload, 0x406855c9},
		{"UI_BEGIN_FF_ERASE", uiBeginFFErase, 0xc00c55ca},
		{"UI_END_FF_ERASE", uiEndFFErase, 0x400c55cb},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.name, tt.got, tt.want)
		}
	}
}
