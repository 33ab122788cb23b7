//go:build rp2040

package port

import (
	"context"

	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"gnssdev-go/errcode"
)

// RP2040 endpoint construction. Hardware buses are singletons owned by the
// SoC; close is a no-op beyond bookkeeping.

type rp2Serial struct{ u *uartx.UART }

func (p *rp2Serial) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2Serial) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}
func (p *rp2Serial) SetBaudRate(baud uint32) error { p.u.SetBaudRate(baud); return nil }

func openUART(cfg UARTConfig) (Serial, func(), error) {
	var hw *uartx.UART
	switch cfg.Port {
	case 0:
		hw = uartx.UART0
	case 1:
		hw = uartx.UART1
	default:
		return nil, nil, errcode.UnknownPort
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: cfg.Baud,
		TX:       machine.Pin(cfg.TX),
		RX:       machine.Pin(cfg.RX),
	}); err != nil {
		return nil, nil, err
	}
	return &rp2Serial{u: hw}, nil, nil
}

func openI2C(cfg I2CConfig) (drivers.I2C, func(), error) {
	var hw *machine.I2C
	switch cfg.Bus {
	case 0:
		hw = machine.I2C0
	case 1:
		hw = machine.I2C1
	default:
		return nil, nil, errcode.UnknownPort
	}
	sda := machine.Pin(cfg.SDA)
	scl := machine.Pin(cfg.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: cfg.Hz}); err != nil {
		return nil, nil, err
	}
	return hw, nil, nil
}

func openSPI(cfg SPIConfig) (drivers.SPI, func(), error) {
	var hw *machine.SPI
	switch cfg.Bus {
	case 0:
		hw = machine.SPI0
	case 1:
		hw = machine.SPI1
	default:
		return nil, nil, errcode.UnknownPort
	}
	if err := hw.Configure(machine.SPIConfig{Frequency: cfg.Hz, Mode: cfg.Mode}); err != nil {
		return nil, nil, err
	}
	return hw, nil, nil
}
