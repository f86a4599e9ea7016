package canio

import (
	"errors"
	"testing"

	"signalcan-go/errcode"
)

// fakeClock drives the transport's tick-based waits without sleeping.
type fakeClock struct{ now int64 }

func (c *fakeClock) attach(t *Transport) {
	t.Now = func() int64 { return c.now }
	t.Yield = func() { c.now++ }
}

func newTestTransport(t *testing.T) (*Transport, *Loopback, *fakeClock) {
	t.Helper()
	loop := NewLoopback()
	tr, err := NewTransport(loop, Baud500k)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	clk := &fakeClock{}
	clk.attach(tr)
	return tr, loop, clk
}

func TestSendAndDrain(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	if err := tr.Send(0x123, []byte{1, 2, 3}, 10); err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := loop.Drain()
	if len(out) != 1 {
		t.Fatalf("drained %d frames, want 1", len(out))
	}
	f := out[0]
	if f.ID != 0x123 || f.DLC != 3 || f.Data[0] != 1 || f.Data[2] != 3 {
		t.Fatalf("frame = %+v", f)
	}
}

func TestSendMailboxTimeout(t *testing.T) {
	tr, loop, clk := newTestTransport(t)
	loop.TxBusy = true

	err := tr.Send(0x123, nil, 5)
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if clk.now < 5 {
		t.Fatalf("gave up after %d ticks, want at least 5", clk.now)
	}
}

func TestSendHardwareError(t *testing.T) {
	tr, loop, _ := newTestTransport(t)
	loop.TxErr = errors.New("bus off")

	err := tr.Send(0x123, nil, 5)
	if errcode.Of(err) != errcode.Hardware {
		t.Fatalf("err = %v, want Hardware", err)
	}
	if !errors.Is(err, loop.TxErr) {
		t.Fatalf("err = %v, want wrapped controller error", err)
	}
}

func TestSendRejectsBadFrame(t *testing.T) {
	tr, _, _ := newTestTransport(t)
	if err := tr.Send(MaxStdID+1, nil, 5); errcode.Of(err) != errcode.InvalidFrame {
		t.Fatalf("err = %v, want InvalidFrame", err)
	}
}

func TestReceiveTimeoutAndDelivery(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	if _, err := tr.Receive(0, 3); errcode.Of(err) != errcode.Timeout {
		t.Fatalf("empty FIFO: err = %v, want Timeout", err)
	}

	loop.Inject(RxFrame{Frame: Frame{ID: 0x45, DLC: 2, Data: [8]byte{9, 8}}})
	f, err := tr.Receive(0, 3)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if f.ID != 0x45 || f.DLC != 2 || f.Data[0] != 9 {
		t.Fatalf("frame = %+v", f)
	}
}

func TestReceiveRejectsExtended(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	loop.Inject(RxFrame{Frame: Frame{ID: 0x45, DLC: 1}, Extended: true})
	if _, err := tr.Receive(0, 3); errcode.Of(err) != errcode.InvalidFrame {
		t.Fatalf("err = %v, want InvalidFrame", err)
	}
}

func TestFilterListGatesInjection(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	if err := tr.SetFilterIDs([]uint16{0x45}); err != nil {
		t.Fatalf("SetFilterIDs: %v", err)
	}
	if loop.Inject(RxFrame{Frame: Frame{ID: 0x46, DLC: 1}}) {
		t.Fatal("unlisted id passed the filter")
	}
	if !loop.Inject(RxFrame{Frame: Frame{ID: 0x45, DLC: 1}}) {
		t.Fatal("listed id filtered out")
	}
}

func TestSetFilterIDsOverCapacityKeepsState(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	if err := tr.SetFilterIDs([]uint16{0x45}); err != nil {
		t.Fatalf("SetFilterIDs: %v", err)
	}
	huge := make([]uint16, MaxFilterIDs+1)
	for i := range huge {
		huge[i] = uint16(i + 1)
	}
	if err := tr.SetFilterIDs(huge); errcode.Of(err) != errcode.Capacity {
		t.Fatalf("err = %v, want Capacity", err)
	}
	// The previous list stays programmed.
	if got := tr.FilterIDs(); len(got) != 1 || got[0] != 0x45 {
		t.Fatalf("FilterIDs = %v, want [0x45]", got)
	}
	if !loop.Inject(RxFrame{Frame: Frame{ID: 0x45, DLC: 1}}) {
		t.Fatal("previous filter no longer programmed")
	}
}

func TestSetBaudReappliesFilters(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	if err := tr.SetFilterIDs([]uint16{0x45}); err != nil {
		t.Fatalf("SetFilterIDs: %v", err)
	}
	inits := loop.Inits()
	if err := tr.SetBaud(Baud125k); err != nil {
		t.Fatalf("SetBaud: %v", err)
	}
	if tr.Baud() != Baud125k {
		t.Fatalf("Baud = %v, want 125k", tr.Baud())
	}
	if loop.Inits() != inits+1 {
		t.Fatalf("Inits = %d, want %d (reinit on baud swap)", loop.Inits(), inits+1)
	}
	if got := loop.Timing().BitRate(); got != 125_000 {
		t.Fatalf("bit rate after swap = %d, want 125000", got)
	}
	// Init wipes the banks; the transport must have reprogrammed them.
	if !loop.Inject(RxFrame{Frame: Frame{ID: 0x45, DLC: 1}}) {
		t.Fatal("filter list lost across baud swap")
	}
}

func TestBindDispatchAndCapacity(t *testing.T) {
	tr, loop, _ := newTestTransport(t)

	var got []Frame
	if err := tr.Bind(0x45, func(f Frame) { got = append(got, f) }); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	loop.Inject(RxFrame{Frame: Frame{ID: 0x45, DLC: 1, Data: [8]byte{7}}})
	loop.Inject(RxFrame{Frame: Frame{ID: 0x99, DLC: 1}})
	tr.HandleFIFOPending(0)
	tr.HandleFIFOPending(0)
	tr.HandleFIFOPending(0) // empty FIFO is a no-op

	if len(got) != 1 || got[0].Data[0] != 7 {
		t.Fatalf("dispatched = %v, want one frame for 0x45", got)
	}

	// Rebinding replaces, so the table does not grow.
	if err := tr.Bind(0x45, func(Frame) {}); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	for i := 0; i < maxBindings-1; i++ {
		if err := tr.Bind(uint16(0x100+i), func(Frame) {}); err != nil {
			t.Fatalf("Bind %d: %v", i, err)
		}
	}
	if err := tr.Bind(0x200, func(Frame) {}); errcode.Of(err) != errcode.Capacity {
		t.Fatalf("err = %v, want Capacity", err)
	}
	if err := tr.Bind(MaxStdID+1, func(Frame) {}); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("err = %v, want InvalidParams", err)
	}
}
