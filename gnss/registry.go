// Package gnss is the device/transport registry: it tracks which logical
// GNSS devices exist, which physical endpoint each one is bound to, and
// guarantees that no two live devices ever share an endpoint. The one
// exception is I2C: several devices may sit on one bus, provided their
// addresses differ.
//
// The registry validates and remembers endpoint ids; opening and closing the
// endpoints themselves is the caller's job (see package port).
package gnss

import (
	"sync"
	"time"

	"gnssdev-go/bus"
	"gnssdev-go/errcode"
	"gnssdev-go/types"
	"gnssdev-go/x/mathx"
	"gnssdev-go/x/resacct"
)

// Config sets registry-wide policy. The zero value works: unlimited devices,
// message printing off by default, tag-derived port numbers, accounting on
// resacct.Default, no event publishing.
type Config struct {
	// DefaultMessagePrint seeds each new record's message-print flag.
	DefaultMessagePrint bool

	// PortOverride, when set, short-circuits all tag-based port-number
	// derivation. Used on hosts where the module is reached through a
	// remapped physical port (e.g. a USB-CDC bridge).
	PortOverride *types.PortNumber

	// MaxDevices bounds the arena; 0 means unbounded. Add returns
	// out_of_resources once the bound is reached.
	MaxDevices int

	// Counter receives one unit per live record (resacct.Default when nil).
	Counter *resacct.Counter

	// Events, when non-nil, receives device lifecycle messages and a
	// retained gnss/state snapshot.
	Events *bus.Connection
}

// Registry owns the device records. All methods are safe for concurrent use;
// a single registry-wide lock covers every check-then-act sequence, and no
// method blocks on I/O.
type Registry struct {
	mu     sync.Mutex
	cfg    Config
	slots  []slot
	free   []uint32
	active int
}

// New constructs a registry. Independent registries do not share state, so
// tests can run isolated instances side by side.
func New(cfg Config) *Registry {
	if cfg.Counter == nil {
		cfg.Counter = resacct.Default
	}
	return &Registry{cfg: cfg}
}

// Add registers a logical device on the given binding and returns its handle.
// It fails with invalid_binding for a None binding, duplicate_binding when
// the endpoint is already backing a live device (or, for I2C, when an
// explicitly requested address is already taken on that bus), and
// out_of_resources when MaxDevices is reached.
func (r *Registry) Add(p AddParams) (Handle, error) {
	if p.Binding.IsNone() {
		return Handle{}, errcode.InvalidBinding
	}
	addr := p.I2CAddress
	explicitAddr := false
	if p.Binding.Kind() == types.TransportI2C {
		if addr == 0 {
			addr = types.DefaultI2CAddress
		} else {
			explicitAddr = true
		}
		if !mathx.Between(addr, types.I2CAddressMin, types.I2CAddressMax) {
			return Handle{}, errcode.InvalidBinding
		}
	} else {
		addr = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Exclusive transports may not share an endpoint at all. I2C devices may
	// share a bus; a collision is rejected only for an explicitly supplied
	// address, since devices left on the transport default are expected to be
	// moved with SetI2CAddress before they can both be talked to.
	for _, s := range r.slots {
		if s.rec == nil || !s.rec.binding.SharesEndpoint(p.Binding) {
			continue
		}
		if p.Binding.Kind() != types.TransportI2C || (explicitAddr && s.rec.i2cAddr == addr) {
			return Handle{}, errcode.DuplicateBinding
		}
	}

	if r.cfg.MaxDevices > 0 && r.active >= r.cfg.MaxDevices {
		return Handle{}, errcode.OutOfResources
	}

	rec := &deviceRecord{
		module:   p.Module,
		binding:  p.Binding,
		i2cAddr:  addr,
		msgPrint: r.cfg.DefaultMessagePrint,
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[idx].rec = rec
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{gen: 1, rec: rec})
	}
	r.active++
	r.cfg.Counter.Add(1)

	h := Handle{idx: idx, gen: r.slots[idx].gen}
	r.publishDeviceLocked(idx, "added", rec)
	r.publishStateLocked()
	return h, nil
}

// Remove deregisters a device. Removing an unknown or stale handle is a
// no-op, not an error, so cleanup paths can run unconditionally.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(h)
}

func (r *Registry) removeLocked(h Handle) {
	rec := r.lookupLocked(h)
	if rec == nil {
		return
	}
	r.publishDeviceLocked(h.idx, "removed", rec)
	r.slots[h.idx].rec = nil
	r.slots[h.idx].gen++
	r.free = append(r.free, h.idx)
	r.active--
	r.cfg.Counter.Release(1)
	r.publishStateLocked()
}

// Deinit force-removes every remaining device, in unspecified order. Safe on
// an empty or already-deinited registry, and the registry stays usable. Slot
// generations survive, so handles issued before Deinit keep reporting
// not_found even after their slots are reused. The underlying endpoints stay
// open; closing them remains the caller's job.
func (r *Registry) Deinit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for idx := range r.slots {
		if r.slots[idx].rec != nil {
			r.removeLocked(Handle{idx: uint32(idx), gen: r.slots[idx].gen})
		}
	}
	r.publishStateLocked()
}

// TransportBinding returns the binding recorded at Add time. For I2C devices
// this does not reflect later address changes; see I2CAddress.
func (r *Registry) TransportBinding(h Handle) (types.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookupLocked(h)
	if rec == nil {
		return types.Binding{}, errcode.NotFound
	}
	return rec.binding, nil
}

// PortNumber derives the module-side port id from the device's binding.
// Config.PortOverride, when set, wins over the derivation.
func (r *Registry) PortNumber(h Handle) (types.PortNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookupLocked(h)
	if rec == nil {
		return 0, errcode.NotFound
	}
	if r.cfg.PortOverride != nil {
		return *r.cfg.PortOverride, nil
	}
	switch rec.binding.Kind() {
	case types.TransportUART:
		return types.PortUART1, nil
	case types.TransportUART2:
		return types.PortUART2, nil
	case types.TransportI2C:
		return types.PortI2C, nil
	case types.TransportSPI:
		return types.PortSPI, nil
	case types.TransportNone:
	}
	return 0, errcode.InvalidBinding
}

// MessagePrint reports the device's message-print flag.
func (r *Registry) MessagePrint(h Handle) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookupLocked(h)
	if rec == nil {
		return false, errcode.NotFound
	}
	return rec.msgPrint, nil
}

// SetMessagePrint sets the device's message-print flag.
func (r *Registry) SetMessagePrint(h Handle, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookupLocked(h)
	if rec == nil {
		return errcode.NotFound
	}
	rec.msgPrint = on
	return nil
}

// I2CAddress returns the device's current I2C address. It fails with
// invalid_binding for devices not bound over I2C.
func (r *Registry) I2CAddress(h Handle) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookupLocked(h)
	if rec == nil {
		return 0, errcode.NotFound
	}
	if rec.binding.Kind() != types.TransportI2C {
		return 0, errcode.InvalidBinding
	}
	return rec.i2cAddr, nil
}

// SetI2CAddress moves the device to a new address on its bus. The address
// collision check and the write are one atomic step: on duplicate_binding
// nothing changes.
func (r *Registry) SetI2CAddress(h Handle, addr uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookupLocked(h)
	if rec == nil {
		return errcode.NotFound
	}
	if rec.binding.Kind() != types.TransportI2C {
		return errcode.InvalidBinding
	}
	if !mathx.Between(addr, types.I2CAddressMin, types.I2CAddressMax) {
		return errcode.InvalidBinding
	}
	for _, s := range r.slots {
		if s.rec == nil || s.rec == rec {
			continue
		}
		if s.rec.binding.SharesEndpoint(rec.binding) && s.rec.i2cAddr == addr {
			return errcode.DuplicateBinding
		}
	}
	rec.i2cAddr = addr
	return nil
}

// PublishState pushes a fresh retained state snapshot to the event bus.
// No-op when the registry has no Events connection.
func (r *Registry) PublishState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishStateLocked()
}

// ActiveCount reports how many devices are currently registered.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Registry) lookupLocked(h Handle) *deviceRecord {
	if !h.Valid() || int(h.idx) >= len(r.slots) {
		return nil
	}
	s := r.slots[h.idx]
	if s.gen != h.gen {
		return nil
	}
	return s.rec
}

// -----------------------------------------------------------------------------
// Event publishing
// -----------------------------------------------------------------------------

// DeviceEvent is the payload of gnss/device/<idx>/added|removed messages.
type DeviceEvent struct {
	Binding string `json:"binding"`
	Module  string `json:"module"`
}

func (r *Registry) publishDeviceLocked(idx uint32, what string, rec *deviceRecord) {
	if r.cfg.Events == nil {
		return
	}
	topic := bus.Topic{bus.S("gnss"), bus.S("device"), bus.I(int(idx)), bus.S(what)}
	r.cfg.Events.Publish(r.cfg.Events.NewMessage(topic, DeviceEvent{
		Binding: rec.binding.String(),
		Module:  rec.module.String(),
	}, false))
}

func (r *Registry) publishStateLocked() {
	if r.cfg.Events == nil {
		return
	}
	topic := bus.Topic{bus.S("gnss"), bus.S("state")}
	r.cfg.Events.Publish(r.cfg.Events.NewMessage(topic, types.GnssState{
		Active:    r.active,
		Resources: r.cfg.Counter.Snapshot(),
		TS:        time.Now().UnixNano(),
	}, true))
}
