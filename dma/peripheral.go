package dma

import (
	"fmt"

	"github.com/ardnew/softdma/hal"
)

// Peripheral is the logical name of a peripheral data register a channel
// can be paced by.
type Peripheral uint8

// Logical peripherals.
const (
	NoPeripheral Peripheral = iota
	UART0TX
	UART0RX
	UART1TX
	UART1RX
	UART2TX
	UART2RX
	UART3TX
	UART3RX
	SPI0TX
	SPI0RX
	SPI1TX
	SPI1RX
	SPI2TX
	SPI2RX
	I2C0TX
	I2C0RX
	I2C1TX
	I2C1RX
	I2C2TX
	I2C2RX
	I2STX
	I2SRX
	PDMRX
	ADCRX
	numPeripherals
)

var peripheralNames = [numPeripherals]string{
	NoPeripheral: "none",
	UART0TX:      "uart0.tx",
	UART0RX:      "uart0.rx",
	UART1TX:      "uart1.tx",
	UART1RX:      "uart1.rx",
	UART2TX:      "uart2.tx",
	UART2RX:      "uart2.rx",
	UART3TX:      "uart3.tx",
	UART3RX:      "uart3.rx",
	SPI0TX:       "spi0.tx",
	SPI0RX:       "spi0.rx",
	SPI1TX:       "spi1.tx",
	SPI1RX:       "spi1.rx",
	SPI2TX:       "spi2.tx",
	SPI2RX:       "spi2.rx",
	I2C0TX:       "i2c0.tx",
	I2C0RX:       "i2c0.rx",
	I2C1TX:       "i2c1.tx",
	I2C1RX:       "i2c1.rx",
	I2C2TX:       "i2c2.tx",
	I2C2RX:       "i2c2.rx",
	I2STX:        "i2s.tx",
	I2SRX:        "i2s.rx",
	PDMRX:        "pdm.rx",
	ADCRX:        "adc.rx",
}

// String returns the peripheral's name.
func (p Peripheral) String() string {
	if p < numPeripherals {
		return peripheralNames[p]
	}
	return fmt.Sprintf("peripheral(%d)", uint8(p))
}

// fifoFormat is the access a peripheral's data register requires.
type fifoFormat struct {
	width hal.Width
	burst hal.BurstSize
}

// Data register formats, independent of which port routes the peripheral.
var fifoFormats = [numPeripherals]fifoFormat{
	UART0TX: {hal.Width8, hal.Incr1},
	UART0RX: {hal.Width8, hal.Incr1},
	UART1TX: {hal.Width8, hal.Incr1},
	UART1RX: {hal.Width8, hal.Incr1},
	UART2TX: {hal.Width8, hal.Incr1},
	UART2RX: {hal.Width8, hal.Incr1},
	UART3TX: {hal.Width8, hal.Incr1},
	UART3RX: {hal.Width8, hal.Incr1},
	SPI0TX:  {hal.Width8, hal.Incr8},
	SPI0RX:  {hal.Width8, hal.Incr8},
	SPI1TX:  {hal.Width8, hal.Incr8},
	SPI1RX:  {hal.Width8, hal.Incr8},
	SPI2TX:  {hal.Width32, hal.Incr8},
	SPI2RX:  {hal.Width32, hal.Incr8},
	I2C0TX:  {hal.Width8, hal.Incr1},
	I2C0RX:  {hal.Width8, hal.Incr1},
	I2C1TX:  {hal.Width8, hal.Incr1},
	I2C1RX:  {hal.Width8, hal.Incr1},
	I2C2TX:  {hal.Width8, hal.Incr1},
	I2C2RX:  {hal.Width8, hal.Incr1},
	I2STX:   {hal.Width32, hal.Incr16},
	I2SRX:   {hal.Width32, hal.Incr16},
	PDMRX:   {hal.Width16, hal.Incr16},
	ADCRX:   {hal.Width16, hal.Incr1},
}

// Group selects a port's peripheral request table.
type Group uint8

// Port groups. Ports 0 and 1 are wired to group A, port 2 to group B.
const (
	GroupAuto Group = iota // derive from the port index
	GroupA
	GroupB
)

// String returns the group name.
func (g Group) String() string {
	switch g {
	case GroupAuto:
		return "auto"
	case GroupA:
		return "A"
	case GroupB:
		return "B"
	default:
		return "unknown"
	}
}

// GroupForPort returns the peripheral table a port index is wired to.
func GroupForPort(port int) Group {
	if port >= 2 {
		return GroupB
	}
	return GroupA
}

// Request line numbers per group. A peripheral missing from a group's
// table is not routed to that group's ports.
var requestLines = map[Group]map[Peripheral]uint8{
	GroupA: {
		UART0TX: 0,
		UART0RX: 1,
		UART1TX: 2,
		UART1RX: 3,
		UART2TX: 4,
		UART2RX: 5,
		SPI0TX:  6,
		SPI0RX:  7,
		SPI1TX:  8,
		SPI1RX:  9,
		I2C0TX:  10,
		I2C0RX:  11,
		I2C1TX:  12,
		I2C1RX:  13,
		ADCRX:   14,
	},
	GroupB: {
		UART3TX: 0,
		UART3RX: 1,
		SPI2TX:  2,
		SPI2RX:  3,
		I2C2TX:  4,
		I2C2RX:  5,
		I2STX:   6,
		I2SRX:   7,
		PDMRX:   8,
		ADCRX:   9,
	},
}

// LookupPeripheral returns the request line number and data register format
// of p on ports of group g. It reports false if p is not routed to g.
func LookupPeripheral(g Group, p Peripheral) (id uint8, width hal.Width, burst hal.BurstSize, ok bool) {
	if p == NoPeripheral || p >= numPeripherals {
		return 0, 0, 0, false
	}
	id, ok = requestLines[g][p]
	if !ok {
		return 0, 0, 0, false
	}
	f := fifoFormats[p]
	return id, f.width, f.burst, true
}

// FIFO is a peripheral data register endpoint. It presents a constant
// address and may serve as either a source or a destination.
type FIFO struct {
	Peripheral Peripheral
	Address    uintptr

	// OnClose, when set, runs when a transfer using the endpoint completes.
	OnClose func()
}

// NewFIFO returns an endpoint for the data register of p at addr.
func NewFIFO(p Peripheral, addr uintptr) *FIFO {
	return &FIFO{Peripheral: p, Address: addr}
}

func (f *FIFO) config() EndpointConfig {
	var format fifoFormat
	if f.Peripheral < numPeripherals {
		format = fifoFormats[f.Peripheral]
	}
	return EndpointConfig{
		Address:    f.Address,
		Peripheral: f.Peripheral,
		Width:      format.width,
		Burst:      format.burst,
		Increment:  Constant(),
	}
}

// ConfigureSource implements Source.
func (f *FIFO) ConfigureSource(hal.Cache) EndpointConfig {
	return f.config()
}

// ConfigureDestination implements Destination.
func (f *FIFO) ConfigureDestination(hal.Cache) EndpointConfig {
	return f.config()
}

// Complete implements Destination.
func (f *FIFO) Complete(hal.Cache) {}

// Close implements Endpoint.
func (f *FIFO) Close() {
	if f.OnClose != nil {
		f.OnClose()
	}
}
