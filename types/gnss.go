package types

// ModuleKind is the caller-declared GNSS module generation. The registry
// passes it through unchanged; protocol layers use it to select feature sets.
type ModuleKind uint8

const (
	ModuleM8 ModuleKind = iota
	ModuleM9
	ModuleM10
	ModuleAny
)

func (m ModuleKind) String() string {
	switch m {
	case ModuleM8:
		return "m8"
	case ModuleM9:
		return "m9"
	case ModuleM10:
		return "m10"
	case ModuleAny:
		return "any"
	}
	return "unknown"
}

// PortNumber is the module-side port identifier as used on the wire
// (UBX-CFG-PRT numbering), derived from a transport binding.
type PortNumber int8

const (
	PortI2C   PortNumber = 0
	PortUART1 PortNumber = 1
	PortUART2 PortNumber = 2
	PortUSB   PortNumber = 3
	PortSPI   PortNumber = 4
)

func (p PortNumber) String() string {
	switch p {
	case PortI2C:
		return "i2c"
	case PortUART1:
		return "uart1"
	case PortUART2:
		return "uart2"
	case PortUSB:
		return "usb"
	case PortSPI:
		return "spi"
	}
	return "unknown"
}

// I2C addressing. u-blox modules answer on 0x42 out of reset; any valid
// 7-bit address outside the reserved ranges may be configured.
const (
	DefaultI2CAddress uint16 = 0x42
	I2CAddressMin     uint16 = 0x08
	I2CAddressMax     uint16 = 0x77
)
