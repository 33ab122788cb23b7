package types

// TransportKind tags the physical transport a GNSS module is reached over.
type TransportKind uint8

const (
	TransportNone TransportKind = iota
	TransportUART
	TransportUART2
	TransportI2C
	TransportSPI
)

func (k TransportKind) String() string {
	switch k {
	case TransportNone:
		return "none"
	case TransportUART:
		return "uart"
	case TransportUART2:
		return "uart2"
	case TransportI2C:
		return "i2c"
	case TransportSPI:
		return "spi"
	}
	return "unknown"
}

// endpointFamily groups transport kinds that draw endpoint ids from the same
// physical namespace. UART and UART2 both name a host UART endpoint: they are
// different module-side ports but the same wire, so they collide.
type endpointFamily uint8

const (
	famNone endpointFamily = iota
	famUART
	famI2C
	famSPI
)

func (k TransportKind) family() endpointFamily {
	switch k {
	case TransportUART, TransportUART2:
		return famUART
	case TransportI2C:
		return famI2C
	case TransportSPI:
		return famSPI
	}
	return famNone
}

// Binding identifies one physical endpoint: a transport kind plus the
// kind-specific endpoint id (a UART endpoint handle, or an I2C/SPI bus index).
// It is a pure value: construct with the typed constructors, compare with
// Equal. The zero Binding has kind TransportNone and is not addable.
type Binding struct {
	kind TransportKind
	id   int32
}

func UARTBinding(endpoint int32) Binding  { return Binding{TransportUART, endpoint} }
func UART2Binding(endpoint int32) Binding { return Binding{TransportUART2, endpoint} }
func I2CBinding(bus int32) Binding        { return Binding{TransportI2C, bus} }
func SPIBinding(bus int32) Binding        { return Binding{TransportSPI, bus} }

func (b Binding) Kind() TransportKind { return b.kind }
func (b Binding) Endpoint() int32     { return b.id }
func (b Binding) IsNone() bool        { return b.kind == TransportNone }

// Equal is strict structural equality: tag and endpoint id must both match.
// Bindings of different kinds are never equal, even with identical ids.
func (b Binding) Equal(o Binding) bool { return b.kind == o.kind && b.id == o.id }

// SharesEndpoint reports whether two bindings name the same physical endpoint.
// This is the uniqueness relation, not Equal: a UART and a UART2 binding with
// the same endpoint id are distinct values but one wire.
func (b Binding) SharesEndpoint(o Binding) bool {
	f := b.kind.family()
	if f == famNone || f != o.kind.family() {
		return false
	}
	return b.id == o.id
}

func (b Binding) String() string {
	return b.kind.String() + "(" + itoa(b.id) + ")"
}

// itoa avoids pulling strconv into MCU builds for one debug string.
func itoa(v int32) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
