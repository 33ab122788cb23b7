// Package gnsssvc keeps a gnss.Registry reconciled against a device set
// delivered over the bus (topic config/gnss), and republishes the registry
// state periodically so late subscribers converge.
package gnsssvc

import (
	"context"
	"encoding/json"
	"time"

	"gnssdev-go/bus"
	"gnssdev-go/gnss"
	"gnssdev-go/types"
)

var topicConfigGnss = bus.Topic{bus.S("config"), bus.S("gnss")}

// Applied is published on gnss/config/applied after each reconcile pass.
type Applied struct {
	Added   int      `json:"added"`
	Removed int      `json:"removed"`
	Failed  []string `json:"failed,omitempty"` // device IDs that did not apply
}

type Service struct {
	reg      *gnss.Registry
	byID     map[string]gnss.Handle
	interval time.Duration
}

func New(reg *gnss.Registry) *Service {
	return &Service{
		reg:      reg,
		byID:     make(map[string]gnss.Handle),
		interval: 5 * time.Second,
	}
}

// Start launches the service loop.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.loop(ctx, conn)
	return nil
}

func (s *Service) loop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigGnss)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: gnss service stopping")
			return
		case <-tick.C:
			s.reg.PublishState()
		case msg := <-cfgSub.Channel():
			var cfg types.GnssConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				println("Error: gnss config decode:", err.Error())
				continue
			}
			applied := s.reconcile(cfg)
			topic := bus.Topic{bus.S("gnss"), bus.S("config"), bus.S("applied")}
			conn.Publish(conn.NewMessage(topic, applied, false))
		}
	}
}

// reconcile brings the registry in line with the config: devices named in
// the config but not registered are added, registered devices no longer
// named are removed, a device whose binding changed is re-registered on the
// new one, and I2C devices with an explicit address are moved to it.
// Failures are reported per device and do not stop the pass.
func (s *Service) reconcile(cfg types.GnssConfig) Applied {
	var out Applied

	want := make(map[string]types.GnssDevice, len(cfg.Devices))
	for _, d := range cfg.Devices {
		if d.ID == "" {
			continue
		}
		want[d.ID] = d
	}

	for id, h := range s.byID {
		if _, ok := want[id]; !ok {
			s.reg.Remove(h)
			delete(s.byID, id)
			out.Removed++
		}
	}

	for id, d := range want {
		h, registered := s.byID[id]
		if registered {
			// A changed transport or endpoint means a different physical
			// wire; re-register on the new binding.
			cur, err := s.reg.TransportBinding(h)
			if err != nil || !cur.Equal(bindingFor(d)) {
				s.reg.Remove(h)
				delete(s.byID, id)
				registered = false
			}
		}
		if !registered {
			var err error
			h, err = s.reg.Add(gnss.AddParams{
				Module:     types.ParseModuleKind(d.Module),
				Binding:    bindingFor(d),
				I2CAddress: d.I2CAddress,
			})
			if err != nil {
				println("Error: gnss add", id, err.Error())
				out.Failed = append(out.Failed, id)
				continue
			}
			s.byID[id] = h
			out.Added++
			continue
		}
		if d.I2CAddress != 0 {
			if cur, err := s.reg.I2CAddress(h); err == nil && cur != d.I2CAddress {
				if err := s.reg.SetI2CAddress(h, d.I2CAddress); err != nil {
					println("Error: gnss set addr", id, err.Error())
					out.Failed = append(out.Failed, id)
				}
			}
		}
	}
	return out
}

func bindingFor(d types.GnssDevice) types.Binding {
	switch types.ParseTransportKind(d.Transport) {
	case types.TransportUART:
		return types.UARTBinding(d.Endpoint)
	case types.TransportUART2:
		return types.UART2Binding(d.Endpoint)
	case types.TransportI2C:
		return types.I2CBinding(d.Endpoint)
	case types.TransportSPI:
		return types.SPIBinding(d.Endpoint)
	}
	return types.Binding{}
}

// decodeJSON accepts raw bytes, a JSON string, or an already-decoded map.
func decodeJSON(in any, v any) error {
	switch x := in.(type) {
	case []byte:
		return json.Unmarshal(x, v)
	case string:
		return json.Unmarshal([]byte(x), v)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	}
}
