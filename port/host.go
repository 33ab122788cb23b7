//go:build !rp2040

package port

import (
	"context"
	"sync"

	"tinygo.org/x/drivers"
)

// On host builds the endpoints are backed by in-memory fakes so the registry,
// services and selftest run anywhere. The fakes record traffic for tests.

// ----------------------------- UART (host) -----------------------------------

// HostUART is a loopback stream: bytes written become readable. Reads block
// until data arrives or the context ends.
type HostUART struct {
	mu   sync.Mutex
	buf  []byte
	tick chan struct{} // signalled on every write
	baud uint32
}

func NewHostUART() *HostUART {
	return &HostUART{tick: make(chan struct{}, 1)}
}

func (u *HostUART) Write(p []byte) (int, error) {
	u.mu.Lock()
	u.buf = append(u.buf, p...)
	u.mu.Unlock()
	select {
	case u.tick <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (u *HostUART) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for {
		u.mu.Lock()
		if len(u.buf) > 0 {
			n := copy(buf, u.buf)
			u.buf = u.buf[n:]
			u.mu.Unlock()
			return n, nil
		}
		u.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-u.tick:
		}
	}
}

func (u *HostUART) SetBaudRate(baud uint32) error {
	u.mu.Lock()
	u.baud = baud
	u.mu.Unlock()
	return nil
}

// Baud reports the last configured baud rate (for tests).
func (u *HostUART) Baud() uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.baud
}

func openUART(cfg UARTConfig) (Serial, func(), error) {
	u := NewHostUART()
	u.baud = cfg.Baud
	return u, nil, nil
}

// ----------------------------- I2C (host) ------------------------------------

// HostI2C implements drivers.I2C and records the last transaction per peer
// address, so tests can confirm which peer a transfer targeted.
type HostI2C struct {
	mu     sync.Mutex
	LastTx struct {
		Addr uint16
		W    []byte
		Rn   int
	}
	txCount map[uint16]int
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	if h.txCount == nil {
		h.txCount = make(map[uint16]int)
	}
	h.txCount[addr]++
	return nil
}

// TxCount reports how many transactions have targeted addr.
func (h *HostI2C) TxCount(addr uint16) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.txCount[addr]
}

func openI2C(cfg I2CConfig) (drivers.I2C, func(), error) {
	return &HostI2C{}, nil, nil
}

// ----------------------------- SPI (host) ------------------------------------

// HostSPI implements drivers.SPI, echoing writes back on reads.
type HostSPI struct {
	mu     sync.Mutex
	LastTx []byte
}

func (h *HostSPI) Tx(w, r []byte) error {
	h.mu.Lock()
	h.LastTx = append([]byte(nil), w...)
	h.mu.Unlock()
	for i := range r {
		if i < len(w) {
			r[i] = w[i]
		} else {
			r[i] = 0xFF
		}
	}
	return nil
}

func (h *HostSPI) Transfer(b byte) (byte, error) {
	h.mu.Lock()
	h.LastTx = []byte{b}
	h.mu.Unlock()
	return b, nil
}

func openSPI(cfg SPIConfig) (drivers.SPI, func(), error) {
	return &HostSPI{}, nil, nil
}
