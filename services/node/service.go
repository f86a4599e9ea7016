// Package node wraps the telemetry device as a bus service: it builds the
// device from the published configuration, runs its cooperative loop, and
// republishes snapshots onto retained bus topics for host-side observers.
package node

import (
	"context"
	"time"

	"signalcan-go/adc"
	"signalcan-go/bus"
	"signalcan-go/canio"
	"signalcan-go/device"
)

var topicConfigNode = bus.T("config", "node")

// ChannelSnapshot is the per-channel payload published on
// ("node", <id>, "ch", <n>).
type ChannelSnapshot struct {
	Raw    uint16
	Mv     uint16
	Status string
}

// StateSnapshot is the payload published on ("node", <id>, "state").
type StateSnapshot struct {
	Level      string
	Baud       string
	SampleRate uint16
	StatusWord uint16
	OORMask    uint8
}

type Service struct {
	Controller canio.Controller
	Converter  adc.Converter

	dev *device.Device
}

// Device returns the running device, or nil before configuration arrived.
func (s *Service) Device() *device.Device { return s.dev }

// Start launches the service loop in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.serviceLoop(ctx, conn)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigNode)
	defer conn.Unsubscribe(cfgSub)

	// Wait for the retained node configuration before bringing anything up.
	var cfg device.Config
	select {
	case <-ctx.Done():
		return
	case msg := <-cfgSub.Channel():
		m, ok := msg.Payload.(map[string]any)
		if !ok {
			println("node: config payload is not an object")
			return
		}
		cfg = DecodeConfig(m)
	}

	if s.Converter.Resolution() != cfg.Resolution {
		println("node: converter resolution differs from configured resolution_bits")
	}

	dev, err := device.New(cfg, s.Controller, s.Converter)
	if err != nil {
		println("node: init failed:", err.Error())
		s.publishState(conn, cfg.NodeID, nil, "failed")
		return
	}
	s.dev = dev
	s.publishState(conn, cfg.NodeID, dev, "ready")

	go s.deviceLoop(ctx, dev)

	period := cfg.PeriodMs
	if period == 0 {
		period = 100
	}
	tick := time.NewTicker(time.Duration(period) * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("node: service stopping")
			return
		case <-tick.C:
			s.publishSnapshot(conn, dev)
		case msg := <-cfgSub.Channel():
			// Reconfiguration happens over the CAN protocol, not the bus.
			_ = msg
			println("node: ignoring config update after start")
		}
	}
}

// deviceLoop runs the cooperative loop plus the polled receive fallback for
// controllers without a wired interrupt line.
func (s *Service) deviceLoop(ctx context.Context, dev *device.Device) {
	go dev.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		dev.HandleCANInterrupt()
		time.Sleep(time.Millisecond)
	}
}

func (s *Service) publishSnapshot(conn *bus.Connection, dev *device.Device) {
	cond := dev.Conditioner()
	raw := cond.Raw()
	id := int(dev.Config().NodeID)
	for i := uint8(0); i < adc.NumChannels; i++ {
		conn.Publish(conn.NewMessage(
			bus.T("node", id, "ch", int(i)),
			ChannelSnapshot{
				Raw:    raw[i],
				Mv:     cond.Millivolts(i),
				Status: cond.Status(i).String(),
			},
			true,
		))
	}
	s.publishState(conn, dev.Config().NodeID, dev, "running")
}

func (s *Service) publishState(conn *bus.Connection, nodeID uint8, dev *device.Device, level string) {
	st := StateSnapshot{Level: level}
	if dev != nil {
		st.Baud = dev.Config().Baud.String()
		st.SampleRate = dev.Engine().SampleRate()
		st.StatusWord = dev.Conditioner().StatusWord()
		st.OORMask = dev.Conditioner().OutOfRangeMask()
	}
	conn.Publish(conn.NewMessage(bus.T("node", int(nodeID), "state"), st, true))
}
