package gnsssvc

import (
	"context"
	"testing"
	"time"

	"gnssdev-go/bus"
	"gnssdev-go/gnss"
	"gnssdev-go/types"
	"gnssdev-go/x/resacct"
)

func startService(t *testing.T) (*gnss.Registry, *bus.Connection, *bus.Subscription) {
	t.Helper()
	b := bus.NewBus(16)
	reg := gnss.New(gnss.Config{Counter: &resacct.Counter{}})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svcConn := b.NewConnection("gnss-svc")
	if err := New(reg).Start(ctx, svcConn); err != nil {
		t.Fatalf("Start: %v", err)
	}

	testConn := b.NewConnection("test")
	applied := testConn.Subscribe(bus.Topic{bus.S("gnss"), bus.S("config"), bus.S("applied")})
	return reg, testConn, applied
}

// Config goes out retained: the service may subscribe after the first config
// lands and must still converge.
func publishConfig(t *testing.T, conn *bus.Connection, cfg types.GnssConfig) {
	t.Helper()
	conn.Publish(conn.NewMessage(bus.Topic{bus.S("config"), bus.S("gnss")}, cfg, true))
}

func waitApplied(t *testing.T, sub *bus.Subscription) Applied {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		return msg.Payload.(Applied)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for config to apply")
		return Applied{}
	}
}

func TestReconcileAddsConfiguredDevices(t *testing.T) {
	reg, conn, applied := startService(t)

	publishConfig(t, conn, types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "primary", Module: "m9", Transport: "uart", Endpoint: 1},
		{ID: "aux", Module: "m8", Transport: "i2c", Endpoint: 0, I2CAddress: 0x43},
	}})

	got := waitApplied(t, applied)
	if got.Added != 2 || got.Removed != 0 || len(got.Failed) != 0 {
		t.Fatalf("applied = %+v", got)
	}
	if n := reg.ActiveCount(); n != 2 {
		t.Fatalf("ActiveCount = %d", n)
	}
}

func TestReconcileRemovesDroppedDevices(t *testing.T) {
	reg, conn, applied := startService(t)

	publishConfig(t, conn, types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "a", Transport: "uart", Endpoint: 1},
		{ID: "b", Transport: "spi", Endpoint: 0},
	}})
	waitApplied(t, applied)

	// Second config drops "b"; "a" must survive untouched.
	publishConfig(t, conn, types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "a", Transport: "uart", Endpoint: 1},
	}})
	got := waitApplied(t, applied)
	if got.Added != 0 || got.Removed != 1 {
		t.Fatalf("applied = %+v", got)
	}
	if n := reg.ActiveCount(); n != 1 {
		t.Fatalf("ActiveCount = %d", n)
	}
}

func TestReconcileReportsFailures(t *testing.T) {
	reg, conn, applied := startService(t)

	// Both devices claim the same UART wire; exactly one can win.
	publishConfig(t, conn, types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "x", Transport: "uart", Endpoint: 5},
		{ID: "y", Transport: "uart2", Endpoint: 5},
	}})
	got := waitApplied(t, applied)
	if got.Added != 1 || len(got.Failed) != 1 {
		t.Fatalf("applied = %+v", got)
	}
	if n := reg.ActiveCount(); n != 1 {
		t.Fatalf("ActiveCount = %d", n)
	}
}

func TestReconcileMovesI2CAddress(t *testing.T) {
	// Drive reconcile directly so the device handle stays observable.
	reg := gnss.New(gnss.Config{Counter: &resacct.Counter{}})
	svc := New(reg)

	svc.reconcile(types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "m", Transport: "i2c", Endpoint: 0},
	}})
	h := svc.byID["m"]
	if addr, err := reg.I2CAddress(h); err != nil || addr != types.DefaultI2CAddress {
		t.Fatalf("initial address = %#x, %v", addr, err)
	}

	out := svc.reconcile(types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "m", Transport: "i2c", Endpoint: 0, I2CAddress: 0x44},
	}})
	if out.Added != 0 || out.Removed != 0 || len(out.Failed) != 0 {
		t.Fatalf("applied = %+v", out)
	}
	if addr, _ := reg.I2CAddress(h); addr != 0x44 {
		t.Fatalf("address = %#x, want 0x44", addr)
	}
}

func TestReconcileRebindsChangedTransport(t *testing.T) {
	reg := gnss.New(gnss.Config{Counter: &resacct.Counter{}})
	svc := New(reg)

	svc.reconcile(types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "m", Transport: "uart", Endpoint: 1},
	}})
	old := svc.byID["m"]

	// Same ID, new wire: the device must come back on the SPI binding.
	out := svc.reconcile(types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "m", Transport: "spi", Endpoint: 0},
	}})
	if out.Added != 1 || len(out.Failed) != 0 {
		t.Fatalf("applied = %+v", out)
	}
	b, err := reg.TransportBinding(svc.byID["m"])
	if err != nil || !b.Equal(types.SPIBinding(0)) {
		t.Fatalf("binding = %v, %v; want spi(0)", b, err)
	}
	if _, err := reg.TransportBinding(old); err == nil {
		t.Fatal("old registration survived the rebind")
	}
	if n := reg.ActiveCount(); n != 1 {
		t.Fatalf("ActiveCount = %d", n)
	}

	// An unchanged binding is left alone.
	out = svc.reconcile(types.GnssConfig{Devices: []types.GnssDevice{
		{ID: "m", Transport: "spi", Endpoint: 0},
	}})
	if out.Added != 0 || out.Removed != 0 {
		t.Fatalf("applied on no-op pass = %+v", out)
	}
}

func TestReconcileDecodesRawJSON(t *testing.T) {
	reg, conn, applied := startService(t)

	publishConfig := func(raw string) {
		conn.Publish(conn.NewMessage(bus.Topic{bus.S("config"), bus.S("gnss")}, []byte(raw), true))
	}
	publishConfig(`{"devices":[{"id":"j","transport":"spi","endpoint":2,"module":"m10"}]}`)

	got := waitApplied(t, applied)
	if got.Added != 1 {
		t.Fatalf("applied = %+v", got)
	}
	if n := reg.ActiveCount(); n != 1 {
		t.Fatalf("ActiveCount = %d", n)
	}
}
