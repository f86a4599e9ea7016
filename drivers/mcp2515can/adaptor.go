//go:build rp2040 || rp2350

// Package mcp2515can adapts the MCP2515 SPI CAN controller to the node's
// canio.Controller surface. The chip has no bxCAN-style filter banks or
// mailbox status registers, so the bank programming and mailbox count are
// emulated in the adaptor: filters are checked in software on receive, and
// transmit reports a single always-free mailbox (the driver's Tx is
// synchronous).
package mcp2515can

import (
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/mcp2515"

	"signalcan-go/canio"
	"signalcan-go/errcode"
)

type Adaptor struct {
	dev     *mcp2515.Device
	clock   byte
	started bool
	banks   [canio.NumFilterBanks]canio.FilterBank
	timing  canio.BitTiming
}

// New wires an adaptor to an SPI bus and chip-select pin. The MCP2515
// crystal defaults to 8 MHz.
func New(spi drivers.SPI, cs machine.Pin) *Adaptor {
	d := mcp2515.New(spi, cs)
	d.Configure()
	return &Adaptor{dev: d, clock: mcp2515.Clock8MHz}
}

func (a *Adaptor) Init(t canio.BitTiming) error {
	a.timing = t
	var rate byte
	switch t.BitRate() {
	case 125_000:
		rate = mcp2515.CAN125kBps
	case 250_000:
		rate = mcp2515.CAN250kBps
	case 500_000:
		rate = mcp2515.CAN500kBps
	case 1_000_000:
		rate = mcp2515.CAN1000kBps
	default:
		return errcode.InvalidParams
	}
	if err := a.dev.Begin(rate, a.clock); err != nil {
		return err
	}
	// Reinit loses the emulated banks, matching the transport's contract.
	a.banks = [canio.NumFilterBanks]canio.FilterBank{}
	return nil
}

func (a *Adaptor) Start() error { a.started = true; return nil }
func (a *Adaptor) Stop() error  { a.started = false; return nil }

func (a *Adaptor) MailboxesFree() uint8 {
	if !a.started {
		return 0
	}
	return 1
}

func (a *Adaptor) Transmit(f canio.Frame) error {
	if !a.started {
		return errcode.NotReady
	}
	return a.dev.Tx(uint32(f.ID), f.DLC, f.Data[:f.DLC])
}

func (a *Adaptor) FIFOFill(fifo uint8) uint8 {
	if fifo != 0 || !a.started {
		return 0
	}
	if a.dev.Received() {
		return 1
	}
	return 0
}

func (a *Adaptor) Receive(fifo uint8) (canio.RxFrame, error) {
	if fifo != 0 {
		return canio.RxFrame{}, errcode.InvalidParams
	}
	msg, err := a.dev.Rx()
	if err != nil {
		return canio.RxFrame{}, err
	}
	var rx canio.RxFrame
	rx.Extended = msg.ID > canio.MaxStdID
	rx.ID = uint16(msg.ID & canio.MaxStdID)
	rx.DLC = msg.Dlc
	copy(rx.Data[:], msg.Data)
	if !rx.Extended && !a.accepts(rx.ID) {
		return canio.RxFrame{}, errcode.NotReady
	}
	return rx, nil
}

func (a *Adaptor) ConfigureFilter(b canio.FilterBank) error {
	if b.Index >= canio.NumFilterBanks {
		return errcode.InvalidParams
	}
	a.banks[b.Index] = b
	return nil
}

func (a *Adaptor) accepts(id uint16) bool {
	for i := range a.banks {
		if a.banks[i].Matches(id) {
			return true
		}
	}
	return false
}
