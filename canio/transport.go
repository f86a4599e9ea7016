package canio

import (
	"time"

	"signalcan-go/errcode"
	"signalcan-go/x/timex"
)

// Controller is the boundary to the CAN peripheral (or a host stand-in).
// All methods are expected to be non-blocking.
type Controller interface {
	Init(t BitTiming) error
	Start() error
	Stop() error

	MailboxesFree() uint8
	Transmit(f Frame) error

	FIFOFill(fifo uint8) uint8
	Receive(fifo uint8) (RxFrame, error)

	ConfigureFilter(b FilterBank) error
}

// maxBindings bounds the receive dispatch table. The node itself registers
// one handler; the headroom is for bench tooling.
const maxBindings = 8

type binding struct {
	id uint16
	fn func(Frame)
}

// Transport owns the controller: baud selection, filter programming, bounded
// send/receive and receive dispatch. It is not safe for concurrent use except
// for HandleFIFOPending, which only reads the dispatch table and must remain
// O(1) per frame (it runs in interrupt context on hardware).
type Transport struct {
	ctrl Controller
	baud Baud
	ids  []uint16
	bind []binding

	// Now and Yield are the tick source and the mailbox-wait pacing hook.
	// Overridable in tests; defaults are wall-clock milliseconds and a 1 ms
	// sleep.
	Now   func() int64
	Yield func()
}

// NewTransport initializes the controller at the given baud with an
// accept-all filter and starts it.
func NewTransport(ctrl Controller, baud Baud) (*Transport, error) {
	t := &Transport{
		ctrl:  ctrl,
		baud:  baud,
		Now:   timex.NowMs,
		Yield: func() { time.Sleep(time.Millisecond) },
	}
	if err := ctrl.Init(TimingFor(baud)); err != nil {
		return nil, &errcode.E{C: errcode.Hardware, Op: "can.init", Err: err}
	}
	if err := t.applyFilters(); err != nil {
		return nil, err
	}
	if err := ctrl.Start(); err != nil {
		return nil, &errcode.E{C: errcode.Hardware, Op: "can.start", Err: err}
	}
	return t, nil
}

// Baud returns the currently programmed baud selector.
func (t *Transport) Baud() Baud { return t.baud }

// FilterIDs returns the stored identifier list.
func (t *Transport) FilterIDs() []uint16 { return t.ids }

// SetFilterIDs replaces the identifier list and reprograms the banks.
// Lists beyond capacity are rejected up front and nothing changes.
func (t *Transport) SetFilterIDs(ids []uint16) error {
	if len(ids) > MaxFilterIDs {
		return errcode.Capacity
	}
	t.ids = append(t.ids[:0], ids...)
	return t.applyFilters()
}

func (t *Transport) applyFilters() error {
	banks, err := PackFilters(t.ids)
	if err != nil {
		return err
	}
	for i := range banks {
		if err := t.ctrl.ConfigureFilter(banks[i]); err != nil {
			return &errcode.E{C: errcode.Hardware, Op: "can.filter", Err: err}
		}
	}
	return nil
}

// SetBaud stops the controller, reprograms the bit timing, reapplies the
// stored filter set (reinit loses the programmed banks) and restarts.
// Frames arriving during the swap are lost; callers schedule this from the
// main loop, never from the receive path.
func (t *Transport) SetBaud(b Baud) error {
	if err := t.ctrl.Stop(); err != nil {
		return &errcode.E{C: errcode.Hardware, Op: "can.stop", Err: err}
	}
	if err := t.ctrl.Init(TimingFor(b)); err != nil {
		return &errcode.E{C: errcode.Hardware, Op: "can.init", Err: err}
	}
	if err := t.applyFilters(); err != nil {
		return err
	}
	if err := t.ctrl.Start(); err != nil {
		return &errcode.E{C: errcode.Hardware, Op: "can.start", Err: err}
	}
	t.baud = b
	return nil
}

// Send queues a standard data frame, waiting up to timeoutMs for a free
// hardware mailbox. Timeout and hardware failure are distinct errors.
func (t *Transport) Send(id uint16, payload []byte, timeoutMs uint32) error {
	f, err := NewFrame(id, payload)
	if err != nil {
		return err
	}
	start := t.Now()
	for t.ctrl.MailboxesFree() == 0 {
		if t.Now()-start >= int64(timeoutMs) {
			return errcode.Timeout
		}
		t.Yield()
	}
	if err := t.ctrl.Transmit(f); err != nil {
		return &errcode.E{C: errcode.Hardware, Op: "can.send", Err: err}
	}
	return nil
}

// Receive polls the FIFO fill level for up to timeoutMs and returns the next
// frame. Extended-identifier frames are rejected as errors, not dropped.
func (t *Transport) Receive(fifo uint8, timeoutMs uint32) (Frame, error) {
	start := t.Now()
	for t.ctrl.FIFOFill(fifo) == 0 {
		if t.Now()-start >= int64(timeoutMs) {
			return Frame{}, errcode.Timeout
		}
		t.Yield()
	}
	rx, err := t.ctrl.Receive(fifo)
	if err != nil {
		return Frame{}, &errcode.E{C: errcode.Hardware, Op: "can.recv", Err: err}
	}
	if rx.Extended {
		return Frame{}, errcode.InvalidFrame
	}
	return rx.Frame, nil
}

// Bind registers fn for frames with the given identifier on the interrupt
// path. Rebinding an id replaces its handler. The table is bounded and
// validated here, at registration time.
func (t *Transport) Bind(id uint16, fn func(Frame)) error {
	if id > MaxStdID || fn == nil {
		return errcode.InvalidParams
	}
	for i := range t.bind {
		if t.bind[i].id == id {
			t.bind[i].fn = fn
			return nil
		}
	}
	if len(t.bind) >= maxBindings {
		return errcode.Capacity
	}
	t.bind = append(t.bind, binding{id: id, fn: fn})
	return nil
}

// HandleFIFOPending services one pending frame from the FIFO-pending
// notification. Bound handlers must do O(1) hand-off only; everything
// variable-duration happens in the cooperative loop.
func (t *Transport) HandleFIFOPending(fifo uint8) {
	if t.ctrl.FIFOFill(fifo) == 0 {
		return
	}
	rx, err := t.ctrl.Receive(fifo)
	if err != nil || rx.Extended {
		return
	}
	for i := range t.bind {
		if t.bind[i].id == rx.ID {
			t.bind[i].fn(rx.Frame)
			return
		}
	}
}
