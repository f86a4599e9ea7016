// Package device ties the transport, acquisition engine, conditioner and
// protocol handlers into one owning object with a cooperative service loop.
// There is no package-level mutable state; everything hangs off Device.
package device

import (
	"context"
	"time"

	"signalcan-go/adc"
	"signalcan-go/canio"
	"signalcan-go/protocol"
	"signalcan-go/signal"
	"signalcan-go/x/timex"
)

// rxFIFO is the receive FIFO command frames are routed to.
const rxFIFO = 0

// Device owns the node's live state. The receive interrupt only copies a
// command frame into the single-slot mailbox; every multi-field mutation
// (calibration, enable mask, baud) runs from Step, on the loop goroutine.
type Device struct {
	cfg    Config
	tx     *canio.Transport
	engine *adc.Engine
	cond   *signal.Conditioner

	handler protocol.Handler
	pub     protocol.Publisher

	// Single-slot command mailbox; the interrupt side does a drop-oldest
	// put so a stale unprocessed command never blocks a fresh one.
	cmdSlot chan canio.Frame

	// Now is the millisecond tick source, overridable in tests.
	Now func() int64
}

// New initializes the transport at the configured baud, programs the filter
// set to the node's command identifier, and applies the startup channel
// calibration.
func New(cfg Config, ctrl canio.Controller, conv adc.Converter) (*Device, error) {
	tx, err := canio.NewTransport(ctrl, cfg.Baud)
	if err != nil {
		return nil, err
	}

	d := &Device{
		cfg:     cfg,
		tx:      tx,
		engine:  adc.NewEngine(conv),
		cmdSlot: make(chan canio.Frame, 1),
		Now:     timex.NowMs,
	}
	d.engine.SetSampleRate(cfg.SampleRateHz)
	d.cond = signal.NewConditioner(cfg.VrefMv, d.engine.FullScale())

	for i := uint8(0); i < adc.NumChannels; i++ {
		cc := cfg.Channels[i]
		if cc.RBottom > 0 {
			d.cond.SetDivider(i, cc.RTop, cc.RBottom)
		} else {
			d.cond.SetGainOffset(i, cc.Gain, cc.Offset)
		}
		d.cond.SetRange(i, cc.MinV, cc.MaxV)
		d.engine.SetEnabled(i, cc.Enabled)
	}

	cmdID := d.CommandID()
	if err := tx.SetFilterIDs([]uint16{cmdID}); err != nil {
		return nil, err
	}
	if err := tx.Bind(cmdID, d.onCommandFrame); err != nil {
		return nil, err
	}

	d.handler = protocol.Handler{
		NodeID:    uint16(cfg.NodeID),
		Engine:    d.engine,
		Cond:      d.cond,
		Tx:        tx,
		SetBaud:   d.applyBaud,
		TimeoutMs: 10,
	}
	d.pub = protocol.Publisher{
		NodeID:    uint16(cfg.NodeID),
		FWVersion: cfg.FWVersion,
		PeriodMs:  cfg.PeriodMs,
		TimeoutMs: 10,
		Engine:    d.engine,
		Cond:      d.cond,
		Vitals:    &clockVitals{dev: d},
		Tx:        tx,
	}
	return d, nil
}

// CommandID is the identifier this node consumes commands on.
func (d *Device) CommandID() uint16 { return uint16(d.cfg.NodeID) + protocol.IDOffCommand }

// Config returns the startup configuration with the live baud selection.
func (d *Device) Config() Config {
	cfg := d.cfg
	cfg.Baud = d.tx.Baud()
	return cfg
}

// Transport exposes the CAN layer for bench tooling.
func (d *Device) Transport() *canio.Transport { return d.tx }

// Engine exposes the acquisition engine.
func (d *Device) Engine() *adc.Engine { return d.engine }

// Conditioner exposes the signal conditioning state.
func (d *Device) Conditioner() *signal.Conditioner { return d.cond }

// SetVitals replaces the status-frame collaborator (uptime, supply rail).
func (d *Device) SetVitals(v protocol.Vitals) { d.pub.Vitals = v }

// HandleCANInterrupt is the FIFO-pending notification entry point. On
// hardware this is called from interrupt context; it hands off and returns.
func (d *Device) HandleCANInterrupt() { d.tx.HandleFIFOPending(rxFIFO) }

// onCommandFrame runs on the interrupt path: O(1) copy into the mailbox.
func (d *Device) onCommandFrame(f canio.Frame) {
	select {
	case d.cmdSlot <- f:
	default:
		// Slot full: drop the unprocessed command in favour of the new one.
		select {
		case <-d.cmdSlot:
		default:
		}
		select {
		case d.cmdSlot <- f:
		default:
		}
	}
}

func (d *Device) applyBaud(b canio.Baud) error {
	if err := d.tx.SetBaud(b); err != nil {
		return err
	}
	d.cfg.Baud = b
	return nil
}

// Step runs one pass of the cooperative loop: engine tick, at most one
// command, telemetry if due. It never blocks; the first error from the
// publish or command path is returned for the caller's logging.
func (d *Device) Step(nowMs int64) error {
	d.engine.Tick(nowMs)

	var first error
	select {
	case f := <-d.cmdSlot:
		if err := d.handler.Handle(f); err != nil {
			first = err
		}
	default:
	}

	if _, err := d.pub.PublishIfDue(nowMs); err != nil && first == nil {
		first = err
	}
	return first
}

// Run drives Step until the context is cancelled. Step errors are
// recoverable (a lost telemetry period, a failed ack) and the loop carries
// on; fatal init errors were already reported by New.
func (d *Device) Run(ctx context.Context) {
	d.pub.Prime(d.Now())
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := d.Step(d.Now()); err != nil {
			println("device: step:", err.Error())
		}
		time.Sleep(time.Millisecond)
	}
}

// clockVitals is the default Vitals: uptime from the wall clock, no supply
// sensing until a real rail monitor is wired in.
type clockVitals struct {
	dev      *Device
	startMs  int64
	anchored bool
}

func (v *clockVitals) UptimeSeconds() uint16 {
	now := v.dev.Now()
	if !v.anchored {
		v.startMs = now
		v.anchored = true
	}
	return uint16(uint64((now-v.startMs)/1000) & 0xFFFF)
}

func (v *clockVitals) SupplyMillivolts() uint16 { return 0 }
