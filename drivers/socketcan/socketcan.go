//go:build linux

// Package socketcan adapts a linux SocketCAN interface to the node's
// canio.Controller surface, so the full device (or the bench tools) can run
// against real hardware like a USB-CAN adapter. Bit timing lives with the
// kernel (`ip link set canX type can bitrate ...`); Init only records the
// selection, and the filter banks translate to CAN_RAW_FILTER entries.
package socketcan

import (
	"fmt"

	"golang.org/x/sys/unix"

	"signalcan-go/canio"
	"signalcan-go/errcode"
)

type Controller struct {
	ifname  string
	fd      int
	started bool
	timing  canio.BitTiming
	banks   [canio.NumFilterBanks]canio.FilterBank
	pending []canio.RxFrame
}

func New(ifname string) *Controller {
	return &Controller{ifname: ifname, fd: -1}
}

func (c *Controller) Init(t canio.BitTiming) error {
	c.timing = t
	c.banks = [canio.NumFilterBanks]canio.FilterBank{}
	return nil
}

func (c *Controller) Start() error {
	if c.started {
		return nil
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("socketcan: socket: %w", err)
	}
	ifreq, err := unix.NewIfreq(c.ifname)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("socketcan: ifreq: %w", err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFINDEX, ifreq); err != nil {
		unix.Close(fd)
		return fmt.Errorf("socketcan: ifindex %s: %w", c.ifname, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: int(ifreq.Uint32())}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("socketcan: bind: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("socketcan: nonblock: %w", err)
	}
	c.fd = fd
	c.started = true
	return c.applyFilters()
}

func (c *Controller) Stop() error {
	if !c.started {
		return nil
	}
	c.started = false
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func (c *Controller) MailboxesFree() uint8 {
	if !c.started {
		return 0
	}
	return 3
}

func (c *Controller) Transmit(f canio.Frame) error {
	if !c.started {
		return errcode.NotReady
	}
	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := unix.Write(c.fd, buf); err != nil {
		return fmt.Errorf("socketcan: write: %w", err)
	}
	return nil
}

func (c *Controller) FIFOFill(fifo uint8) uint8 {
	if fifo != 0 || !c.started {
		return 0
	}
	if len(c.pending) == 0 {
		c.poll()
	}
	n := len(c.pending)
	if n > 255 {
		n = 255
	}
	return uint8(n)
}

func (c *Controller) Receive(fifo uint8) (canio.RxFrame, error) {
	if fifo != 0 || !c.started {
		return canio.RxFrame{}, errcode.NotReady
	}
	if len(c.pending) == 0 {
		c.poll()
	}
	if len(c.pending) == 0 {
		return canio.RxFrame{}, errcode.NotReady
	}
	rx := c.pending[0]
	c.pending = c.pending[1:]
	return rx, nil
}

// poll drains whatever the kernel has buffered without blocking.
func (c *Controller) poll() {
	var buf [16]byte
	for {
		n, err := unix.Read(c.fd, buf[:])
		if err != nil || n < 16 {
			return
		}
		var rx canio.RxFrame
		if rx.UnmarshalBinary(buf[:]) != nil {
			continue
		}
		c.pending = append(c.pending, rx)
	}
}

func (c *Controller) ConfigureFilter(b canio.FilterBank) error {
	if b.Index >= canio.NumFilterBanks {
		return errcode.InvalidParams
	}
	c.banks[b.Index] = b
	if !c.started {
		return nil
	}
	return c.applyFilters()
}

// applyFilters translates the programmed banks into kernel raw filters.
func (c *Controller) applyFilters() error {
	var filters []unix.CanFilter
	for _, b := range c.banks {
		if !b.Active {
			continue
		}
		switch b.Mode {
		case canio.ModeMask:
			// Zero words mean accept-all; anything else is an id/mask pair.
			id := uint32(b.Words[0] >> 5)
			mask := uint32(b.Words[2] >> 5)
			filters = append(filters, unix.CanFilter{Id: id, Mask: mask})
		case canio.ModeIDList:
			seen := map[uint16]bool{}
			for _, w := range b.Words {
				id := w >> 5
				if seen[id] {
					continue
				}
				seen[id] = true
				filters = append(filters, unix.CanFilter{
					Id:   uint32(id),
					Mask: unix.CAN_EFF_FLAG | unix.CAN_SFF_MASK,
				})
			}
		}
	}
	if len(filters) == 0 {
		// No active banks: match nothing, like deactivated hardware banks.
		// An inverted accept-all filter drops every frame.
		filters = append(filters, unix.CanFilter{Id: unix.CAN_INV_FILTER, Mask: 0})
	}
	if err := unix.SetsockoptCanRawFilter(c.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters); err != nil {
		return fmt.Errorf("socketcan: filter: %w", err)
	}
	return nil
}
