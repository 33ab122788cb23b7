// cmd/gnss-selftest: interactive host-side exerciser for the registry and
// the port layer. Open endpoints, bind devices to them, provoke duplicate
// bindings, and watch the resource counter balance out.
//
//	> open uart 0
//	endpoint 1 (uart)
//	> add uart 1
//	device 1
//	> snapshot
//	resources outstanding: 2
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/google/shlex"

	"gnssdev-go/gnss"
	"gnssdev-go/port"
	"gnssdev-go/types"
	"gnssdev-go/x/resacct"
)

type session struct {
	counter *resacct.Counter
	table   *port.Table
	reg     *gnss.Registry

	nextDev int
	devices map[int]gnss.Handle
}

func main() {
	counter := &resacct.Counter{}
	s := &session{
		counter: counter,
		table:   port.NewTable(counter),
		reg:     gnss.New(gnss.Config{Counter: counter}),
		nextDev: 1,
		devices: make(map[int]gnss.Handle),
	}

	fmt.Println("gnss-selftest; commands: open close add remove addr print list snapshot deinit quit")
	sc := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Println("parse error:", err)
		} else if len(args) > 0 {
			if args[0] == "quit" || args[0] == "exit" {
				return
			}
			s.run(args)
		}
		fmt.Print("> ")
	}
}

func (s *session) run(args []string) {
	switch args[0] {
	case "open":
		s.cmdOpen(args[1:])
	case "close":
		s.cmdClose(args[1:])
	case "add":
		s.cmdAdd(args[1:])
	case "remove":
		if len(args) > 1 {
			if h, ok := s.dev(args[1:]); ok {
				s.reg.Remove(h)
				n, _ := strconv.Atoi(args[1])
				delete(s.devices, n)
				fmt.Println("removed")
			}
		} else {
			fmt.Println("usage: remove <device>")
		}
	case "addr":
		s.cmdAddr(args[1:])
	case "print":
		s.cmdPrint(args[1:])
	case "list":
		s.cmdList()
	case "snapshot":
		fmt.Println("resources outstanding:", s.counter.Snapshot())
	case "deinit":
		s.reg.Deinit()
		s.devices = make(map[int]gnss.Handle)
		fmt.Println("registry deinitialised; endpoints still open")
	default:
		fmt.Println("unknown command:", args[0])
	}
}

func (s *session) cmdOpen(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: open uart|i2c|spi <hw-index> [baud|hz]")
		return
	}
	hw, _ := strconv.Atoi(args[1])
	rate := uint32(0)
	if len(args) > 2 {
		v, _ := strconv.Atoi(args[2])
		rate = uint32(v)
	}
	var (
		id  port.ID
		err error
	)
	switch args[0] {
	case "uart":
		if rate == 0 {
			rate = 9600
		}
		id, err = s.table.OpenUART(port.UARTConfig{Port: hw, Baud: rate})
	case "i2c":
		id, err = s.table.OpenI2C(port.I2CConfig{Bus: hw, Hz: rate})
	case "spi":
		id, err = s.table.OpenSPI(port.SPIConfig{Bus: hw, Hz: rate})
	default:
		fmt.Println("unknown endpoint kind:", args[0])
		return
	}
	if err != nil {
		fmt.Println("open failed:", err)
		return
	}
	fmt.Printf("endpoint %d (%s)\n", id, args[0])
}

func (s *session) cmdClose(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: close <endpoint>")
		return
	}
	ep, _ := strconv.Atoi(args[0])
	if err := s.table.Close(port.ID(ep)); err != nil {
		fmt.Println("close failed:", err)
		return
	}
	fmt.Println("closed")
}

func (s *session) cmdAdd(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: add uart|uart2|i2c|spi <endpoint> [i2c-addr-hex]")
		return
	}
	ep, _ := strconv.Atoi(args[1])
	var binding types.Binding
	switch args[0] {
	case "uart":
		binding = types.UARTBinding(int32(ep))
	case "uart2":
		binding = types.UART2Binding(int32(ep))
	case "i2c":
		binding = types.I2CBinding(int32(ep))
	case "spi":
		binding = types.SPIBinding(int32(ep))
	default:
		fmt.Println("unknown transport:", args[0])
		return
	}
	var addr uint16
	if len(args) > 2 {
		v, err := strconv.ParseUint(args[2], 16, 16)
		if err != nil {
			fmt.Println("bad address:", args[2])
			return
		}
		addr = uint16(v)
	}
	h, err := s.reg.Add(gnss.AddParams{
		Module:     types.ModuleAny,
		Binding:    binding,
		I2CAddress: addr,
	})
	if err != nil {
		fmt.Println("add failed:", err)
		return
	}
	n := s.nextDev
	s.nextDev++
	s.devices[n] = h
	fmt.Printf("device %d\n", n)
}

func (s *session) cmdAddr(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: addr <device> <addr-hex>")
		return
	}
	h, ok := s.dev(args[:1])
	if !ok {
		return
	}
	v, err := strconv.ParseUint(args[1], 16, 16)
	if err != nil {
		fmt.Println("bad address:", args[1])
		return
	}
	if err := s.reg.SetI2CAddress(h, uint16(v)); err != nil {
		fmt.Println("set address failed:", err)
		return
	}
	fmt.Printf("address now 0x%02x\n", v)
}

func (s *session) cmdPrint(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: print <device> on|off")
		return
	}
	h, ok := s.dev(args[:1])
	if !ok {
		return
	}
	if err := s.reg.SetMessagePrint(h, args[1] == "on"); err != nil {
		fmt.Println("set print failed:", err)
	}
}

func (s *session) cmdList() {
	for n, h := range s.devices {
		b, err := s.reg.TransportBinding(h)
		if err != nil {
			fmt.Printf("device %d: %v\n", n, err)
			continue
		}
		pn, _ := s.reg.PortNumber(h)
		mp, _ := s.reg.MessagePrint(h)
		line := fmt.Sprintf("device %d: %s port=%s print=%t", n, b, pn, mp)
		if b.Kind() == types.TransportI2C {
			if a, err := s.reg.I2CAddress(h); err == nil {
				line += fmt.Sprintf(" addr=0x%02x", a)
			}
		}
		fmt.Println(line)
	}
	fmt.Println("active:", s.reg.ActiveCount(), "endpoints open:", s.table.OpenCount())
}

func (s *session) dev(args []string) (gnss.Handle, bool) {
	if len(args) < 1 {
		fmt.Println("device number required")
		return gnss.Handle{}, false
	}
	n, _ := strconv.Atoi(args[0])
	h, ok := s.devices[n]
	if !ok {
		fmt.Println("no such device:", args[0])
		return gnss.Handle{}, false
	}
	return h, true
}
