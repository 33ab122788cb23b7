package gnss

import "gnssdev-go/types"

// Handle is an opaque reference to one registered device. It is a
// generation-tagged slot index: after the device is removed the slot's
// generation moves on, so a retained Handle reliably reports not_found
// instead of aliasing whatever reuses the slot. The zero Handle is invalid.
type Handle struct {
	idx uint32
	gen uint32
}

// Valid reports whether the handle was ever issued by a registry.
// It says nothing about whether the device is still registered.
func (h Handle) Valid() bool { return h.gen != 0 }

// AddParams carries everything Add needs to register one logical device.
type AddParams struct {
	Module  types.ModuleKind
	Binding types.Binding

	// I2CAddress applies to I2C bindings only; 0 selects the transport
	// default (types.DefaultI2CAddress).
	I2CAddress uint16

	// TimeoutMS and EnablePower are accepted for callers that carry them
	// around with the rest of the device description, but belong to the
	// transport I/O and power layers. The registry ignores both.
	TimeoutMS   int32
	EnablePower bool
}

// deviceRecord is the registry's per-device state. The binding is the
// device's identity for uniqueness purposes and never changes; the I2C
// address is the one mutable piece of identity and only means anything for
// I2C bindings.
type deviceRecord struct {
	module   types.ModuleKind
	binding  types.Binding
	i2cAddr  uint16
	msgPrint bool
}

// slot is one arena cell. gen counts issues of this slot; rec is nil while
// the slot is free.
type slot struct {
	gen uint32
	rec *deviceRecord
}
