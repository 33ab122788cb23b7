package types

// ------------------------
// GNSS service configuration
// ------------------------

// GnssConfig is the device set delivered to the gnss service over the bus
// (topic config/gnss). The service reconciles the registry against it.
type GnssConfig struct {
	Devices []GnssDevice `json:"devices"`
}

// GnssDevice describes one logical device to keep registered.
type GnssDevice struct {
	ID         string `json:"id"`                    // stable caller-chosen name
	Module     string `json:"module"`                // "m8", "m9", "m10", "any"
	Transport  string `json:"transport"`             // "uart", "uart2", "i2c", "spi"
	Endpoint   int32  `json:"endpoint"`              // UART endpoint id or I2C/SPI bus index
	I2CAddress uint16 `json:"i2c_address,omitempty"` // 0 => transport default
}

// GnssState is published (retained) on gnss/state.
type GnssState struct {
	Active    int   `json:"active"`
	Resources int64 `json:"resources"`
	TS        int64 `json:"ts_ns"`
}

// ParseModuleKind maps a config string to a ModuleKind; unknown strings map
// to ModuleAny, matching the registry's pass-through treatment of the field.
func ParseModuleKind(s string) ModuleKind {
	switch s {
	case "m8":
		return ModuleM8
	case "m9":
		return ModuleM9
	case "m10":
		return ModuleM10
	}
	return ModuleAny
}

// ParseTransportKind maps a config string to a TransportKind.
// Unknown strings map to TransportNone, which the registry rejects.
func ParseTransportKind(s string) TransportKind {
	switch s {
	case "uart":
		return TransportUART
	case "uart2":
		return TransportUART2
	case "i2c":
		return TransportI2C
	case "spi":
		return TransportSPI
	}
	return TransportNone
}
