package canio

import (
	"bytes"
	"testing"

	"signalcan-go/errcode"
)

func TestNewFrameBounds(t *testing.T) {
	f, err := NewFrame(0x45, []byte{1, 2})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if f.DLC != 2 || !bytes.Equal(f.Payload(), []byte{1, 2}) {
		t.Fatalf("frame = %+v", f)
	}
	if _, err := NewFrame(MaxStdID+1, nil); errcode.Of(err) != errcode.InvalidFrame {
		t.Errorf("oversize id accepted: %v", err)
	}
	if _, err := NewFrame(0x45, make([]byte, 9)); errcode.Of(err) != errcode.InvalidFrame {
		t.Errorf("9-byte payload accepted: %v", err)
	}
}

func TestSocketCANRoundTrip(t *testing.T) {
	f, _ := NewFrame(0x123, []byte{0xDE, 0xAD})
	buf, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("len = %d, want 16", len(buf))
	}

	var rx RxFrame
	if err := rx.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if rx.Extended || rx.RTR {
		t.Fatalf("flags = %+v, want none", rx)
	}
	if rx.ID != f.ID || rx.DLC != f.DLC || rx.Data != f.Data {
		t.Fatalf("round trip = %+v, want %+v", rx.Frame, f)
	}
}

func TestUnmarshalExtendedFlag(t *testing.T) {
	f, _ := NewFrame(0x123, nil)
	buf, _ := f.MarshalBinary()
	buf[3] |= 0x80 // set EFF in the little-endian id word

	var rx RxFrame
	if err := rx.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if !rx.Extended {
		t.Fatal("extended flag not decoded")
	}
}
