// Package port owns the physical transport endpoints a GNSS module can be
// wired to. Callers open an endpoint here, hand the returned id to the
// registry inside a transport binding, and close the endpoint themselves
// after the registry entry is gone. The registry never opens or closes
// endpoints.
package port

import (
	"context"
	"sync"

	"tinygo.org/x/drivers"

	"gnssdev-go/errcode"
	"gnssdev-go/x/resacct"
)

// ID identifies one open endpoint within a Table.
type ID int32

// Kind is the endpoint class.
type Kind uint8

const (
	KindUART Kind = iota
	KindI2C
	KindSPI
)

// Serial is a byte-stream endpoint (UART).
type Serial interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
	SetBaudRate(baud uint32) error
}

// UARTConfig selects and configures a hardware UART.
type UARTConfig struct {
	Port int // hardware UART index
	Baud uint32
	TX   int
	RX   int
}

// I2CConfig selects and configures an I2C bus. One open bus session can
// address multiple peers; the peer address travels with each transaction.
type I2CConfig struct {
	Bus int
	SDA int
	SCL int
	Hz  uint32
}

// SPIConfig selects and configures an SPI bus.
type SPIConfig struct {
	Bus  int
	Hz   uint32
	Mode uint8
}

type endpoint struct {
	kind   Kind
	serial Serial
	i2c    drivers.I2C
	spi    drivers.SPI
	close  func()
}

// Table hands out endpoint ids and accounts for every open endpoint.
// Ids are never reused within a Table's lifetime, so a stale id fails closed
// with unknown_port.
type Table struct {
	mu      sync.Mutex
	next    ID
	open    map[ID]*endpoint
	counter *resacct.Counter
}

// NewTable returns a Table charging opens/closes to counter
// (resacct.Default when nil).
func NewTable(counter *resacct.Counter) *Table {
	if counter == nil {
		counter = resacct.Default
	}
	return &Table{
		next:    1,
		open:    make(map[ID]*endpoint),
		counter: counter,
	}
}

func (t *Table) insert(ep *endpoint) ID {
	t.mu.Lock()
	id := t.next
	t.next++
	t.open[id] = ep
	t.mu.Unlock()
	t.counter.Add(1)
	return id
}

// OpenUART opens a UART endpoint.
func (t *Table) OpenUART(cfg UARTConfig) (ID, error) {
	s, closeFn, err := openUART(cfg)
	if err != nil {
		return 0, err
	}
	return t.insert(&endpoint{kind: KindUART, serial: s, close: closeFn}), nil
}

// OpenI2C opens an I2C bus endpoint.
func (t *Table) OpenI2C(cfg I2CConfig) (ID, error) {
	b, closeFn, err := openI2C(cfg)
	if err != nil {
		return 0, err
	}
	return t.insert(&endpoint{kind: KindI2C, i2c: b, close: closeFn}), nil
}

// OpenSPI opens an SPI bus endpoint.
func (t *Table) OpenSPI(cfg SPIConfig) (ID, error) {
	b, closeFn, err := openSPI(cfg)
	if err != nil {
		return 0, err
	}
	return t.insert(&endpoint{kind: KindSPI, spi: b, close: closeFn}), nil
}

// Close releases an endpoint. Closing an id that is not open is an error:
// unlike registry handles, endpoint ids are owned by exactly one caller and a
// bad close means that ownership went wrong somewhere.
func (t *Table) Close(id ID) error {
	t.mu.Lock()
	ep, ok := t.open[id]
	if ok {
		delete(t.open, id)
	}
	t.mu.Unlock()
	if !ok {
		return errcode.UnknownPort
	}
	if ep.close != nil {
		ep.close()
	}
	t.counter.Release(1)
	return nil
}

// KindOf reports the class of an open endpoint.
func (t *Table) KindOf(id ID) (Kind, error) {
	t.mu.Lock()
	ep, ok := t.open[id]
	t.mu.Unlock()
	if !ok {
		return 0, errcode.UnknownPort
	}
	return ep.kind, nil
}

// Serial returns the stream interface of an open UART endpoint.
func (t *Table) Serial(id ID) (Serial, error) {
	t.mu.Lock()
	ep, ok := t.open[id]
	t.mu.Unlock()
	if !ok {
		return nil, errcode.UnknownPort
	}
	if ep.kind != KindUART {
		return nil, errcode.UnknownPort
	}
	return ep.serial, nil
}

// I2C returns the transactional interface of an open I2C endpoint.
func (t *Table) I2C(id ID) (drivers.I2C, error) {
	t.mu.Lock()
	ep, ok := t.open[id]
	t.mu.Unlock()
	if !ok {
		return nil, errcode.UnknownPort
	}
	if ep.kind != KindI2C {
		return nil, errcode.UnknownPort
	}
	return ep.i2c, nil
}

// SPI returns the transactional interface of an open SPI endpoint.
func (t *Table) SPI(id ID) (drivers.SPI, error) {
	t.mu.Lock()
	ep, ok := t.open[id]
	t.mu.Unlock()
	if !ok {
		return nil, errcode.UnknownPort
	}
	if ep.kind != KindSPI {
		return nil, errcode.UnknownPort
	}
	return ep.spi, nil
}

// OpenCount reports how many endpoints are currently open.
func (t *Table) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
