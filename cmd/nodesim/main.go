// Command nodesim runs the telemetry node against simulated hardware: a
// loopback CAN controller and a scriptable ADC. An interactive console
// injects command frames and drains the frames the node emits, which makes
// it a workbench for the wire protocol without a physical bus.
//
// Console commands:
//
//	set <ch> <counts>          program the simulated ADC reading
//	ch <ch> on|off [gain off]  SET_CHANNEL
//	range <ch> <minV> <maxV>   SET_CHANNEL_RANGE
//	rate <hz>                  SET_SAMPLE_RATE
//	get <ch> <sel>             GET_VALUE
//	baud 125k|250k|500k|1M     SET_BAUD
//	drain                      print and decode frames sent by the node
//	state                      print engine and conditioner state
//	quit
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"signalcan-go/adc"
	"signalcan-go/bus"
	"signalcan-go/canio"
	"signalcan-go/device"
	"signalcan-go/protocol"
	"signalcan-go/services/config"
	"signalcan-go/services/node"
)

var log = logrus.WithField("svc", "nodesim")

func main() {
	logrus.SetLevel(logrus.InfoLevel)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "sim")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := bus.NewBus(4)

	loop := canio.NewLoopback()
	sim := adc.NewSimConverter(adc.Res12Bit)

	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	svc := &node.Service{Controller: loop, Converter: sim}
	svc.Start(ctx, b.NewConnection("node"))

	dev := waitForDevice(svc)
	if dev == nil {
		log.Fatal("node never came up")
	}
	log.WithFields(logrus.Fields{
		"node_id": dev.Config().NodeID,
		"baud":    dev.Config().Baud.String(),
	}).Info("node running")

	console(dev, loop, sim)
}

func waitForDevice(svc *node.Service) *device.Device {
	for i := 0; i < 100; i++ {
		if dev := svc.Device(); dev != nil {
			return dev
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func console(dev *device.Device, loop *canio.Loopback, sim *adc.SimConverter) {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil {
			log.WithError(err).Warn("bad input")
			fmt.Print("> ")
			continue
		}
		if len(args) == 0 {
			fmt.Print("> ")
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := run(dev, loop, sim, args); err != nil {
			log.WithError(err).Warn(args[0])
		}
		fmt.Print("> ")
	}
}

func run(dev *device.Device, loop *canio.Loopback, sim *adc.SimConverter, args []string) error {
	switch args[0] {
	case "set":
		ch, counts, err := argU8U16(args)
		if err != nil {
			return err
		}
		sim.SetCount(ch, counts)
		return nil

	case "ch":
		if len(args) < 3 {
			return fmt.Errorf("usage: ch <ch> on|off [gain offset]")
		}
		ch, err := parseU8(args[1])
		if err != nil {
			return err
		}
		enable := args[2] == "on"
		gain, offset := float32(1), float32(0)
		if len(args) >= 5 {
			g, err1 := strconv.ParseFloat(args[3], 32)
			o, err2 := strconv.ParseFloat(args[4], 32)
			if err1 != nil || err2 != nil {
				return fmt.Errorf("bad gain/offset")
			}
			gain, offset = float32(g), float32(o)
		}
		return inject(dev, loop, protocol.EncodeSetChannel(ch, enable, gain, offset))

	case "range":
		if len(args) != 4 {
			return fmt.Errorf("usage: range <ch> <minV> <maxV>")
		}
		ch, err := parseU8(args[1])
		if err != nil {
			return err
		}
		lo, err1 := strconv.ParseFloat(args[2], 32)
		hi, err2 := strconv.ParseFloat(args[3], 32)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("bad range bounds")
		}
		return inject(dev, loop, protocol.EncodeSetRange(ch, float32(lo), float32(hi)))

	case "rate":
		if len(args) != 2 {
			return fmt.Errorf("usage: rate <hz>")
		}
		hz, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return err
		}
		return inject(dev, loop, protocol.EncodeSetSampleRate(uint16(hz)))

	case "get":
		ch, sel, err := argU8U16(args)
		if err != nil {
			return err
		}
		return inject(dev, loop, protocol.EncodeGetValue(ch, uint8(sel)))

	case "baud":
		if len(args) != 2 {
			return fmt.Errorf("usage: baud 125k|250k|500k|1M")
		}
		baud, err := baudFromName(args[1])
		if err != nil {
			return err
		}
		return inject(dev, loop, protocol.EncodeSetBaud(baud))

	case "drain":
		for _, f := range loop.Drain() {
			printFrame(dev, f)
		}
		return nil

	case "state":
		cond := dev.Conditioner()
		fmt.Printf("baud=%s rate=%dHz status=0x%04x oor=0x%02x\n",
			dev.Config().Baud, dev.Engine().SampleRate(),
			cond.StatusWord(), cond.OutOfRangeMask())
		for ch := uint8(0); ch < adc.NumChannels; ch++ {
			fmt.Printf("  ch%d %-14s %4d mV\n", ch, cond.Status(ch), cond.Millivolts(ch))
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

// inject puts a command frame on the simulated bus and gives the node a
// moment to pick it up on its next loop pass.
func inject(dev *device.Device, loop *canio.Loopback, payload [8]byte) error {
	f := canio.Frame{ID: dev.CommandID(), DLC: 8, Data: payload}
	if !loop.Inject(canio.RxFrame{Frame: f}) {
		return fmt.Errorf("frame filtered out")
	}
	time.Sleep(20 * time.Millisecond)
	return nil
}

func printFrame(dev *device.Device, f canio.Frame) {
	base := uint16(dev.Config().NodeID)
	switch f.ID {
	case base + protocol.IDOffValuesLow:
		fmt.Printf("  0x%03x values ch0..3 %v\n", f.ID, protocol.DecodeValues(f.Data))
	case base + protocol.IDOffValuesHigh:
		fmt.Printf("  0x%03x values ch4..7 %v\n", f.ID, protocol.DecodeValues(f.Data))
	case base + protocol.IDOffStatus:
		st := protocol.DecodeStatus(f.Data)
		fmt.Printf("  0x%03x status word=0x%04x uptime=%ds supply=%dmV fw=0x%04x\n",
			f.ID, st.StatusWord, st.UptimeS, st.SupplyMv, st.FWVersion)
	case base + protocol.IDOffAck:
		fmt.Printf("  0x%03x ack success=%d\n", f.ID, f.Data[0])
	case base + protocol.IDOffResponse:
		ch, sel, v, err := protocol.DecodeResponse(f)
		if err != nil {
			fmt.Printf("  0x%03x response (malformed)\n", f.ID)
			return
		}
		fmt.Printf("  0x%03x response ch=%d sel=%d value=%g\n", f.ID, ch, sel, v)
	default:
		fmt.Printf("  0x%03x dlc=%d % x\n", f.ID, f.DLC, f.Payload())
	}
}

func argU8U16(args []string) (uint8, uint16, error) {
	if len(args) != 3 {
		return 0, 0, fmt.Errorf("usage: %s <a> <b>", args[0])
	}
	a, err := parseU8(args[1])
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return 0, 0, err
	}
	return a, uint16(b), nil
}

func parseU8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func baudFromName(s string) (canio.Baud, error) {
	switch s {
	case "125k":
		return canio.Baud125k, nil
	case "250k":
		return canio.Baud250k, nil
	case "500k":
		return canio.Baud500k, nil
	case "1M":
		return canio.Baud1M, nil
	}
	return 0, fmt.Errorf("unknown baud %q", s)
}
