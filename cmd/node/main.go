//go:build rp2040 || rp2350

// Command node is the firmware entrypoint for a Pico-class board with an
// MCP2515 CAN controller on SPI0. The on-chip ADC provides the first three
// channels and UART0 mirrors bus traffic to an attached host.
package main

import (
	"context"
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"signalcan-go/bus"
	"signalcan-go/canio"
	"signalcan-go/drivers/mcp2515can"
	"signalcan-go/drivers/rp2adc"
	"signalcan-go/drivers/slcanuart"
	"signalcan-go/services/config"
	"signalcan-go/services/node"
)

const canCS = machine.GP5

func main() {
	println("[node] boot …")
	time.Sleep(1500 * time.Millisecond)

	machine.SPI0.Configure(machine.SPIConfig{Frequency: 8_000_000})
	uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	bridge := slcanuart.New(uartx.UART0)

	ctrl := &mirrorController{
		Controller: mcp2515can.New(machine.SPI0, canCS),
		bridge:     bridge,
	}
	conv := rp2adc.New(machine.ADC0, machine.ADC1, machine.ADC2)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")
	b := bus.NewBus(4)

	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	svc := &node.Service{Controller: ctrl, Converter: conv}
	svc.Start(ctx, b.NewConnection("node"))

	for {
		bridge.Pump()
		time.Sleep(time.Millisecond)
	}
}

// mirrorController taps frames crossing the CAN controller and copies them
// to the serial bridge.
type mirrorController struct {
	canio.Controller
	bridge *slcanuart.Bridge
}

func (m *mirrorController) Transmit(f canio.Frame) error {
	if err := m.Controller.Transmit(f); err != nil {
		return err
	}
	m.bridge.Mirror(f, false)
	return nil
}

func (m *mirrorController) Receive(fifo uint8) (canio.RxFrame, error) {
	rx, err := m.Controller.Receive(fifo)
	if err == nil {
		m.bridge.Mirror(rx.Frame, rx.RTR)
	}
	return rx, err
}
