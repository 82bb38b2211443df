// Package vlan drives the VLAN lifecycle on a device through its CLI and
// verifies the result by re-querying the device.
package vlan

import (
	"fmt"
	"strings"

	"github.com/lantest-net/lantest/pkg/testbed"
)

// Command is one remote invocation produced by a dialect builder.
type Command struct {
	Line string
	Sudo bool
}

// dialect renders lifecycle operations into the device's CLI vocabulary.
// click is the SONiC utility CLI (one config command per invocation,
// needs sudo); klish is the management-framework CLI (configure-terminal
// blocks, rendered as a single sonic-cli invocation).
type dialect interface {
	CreateVLAN(vid int) []Command
	DeleteVLAN(vid int) []Command
	AddAccessMember(vid int, port string) []Command
	RemoveAccessMember(vid int, port string) []Command
	RemoveSVIAddress(vid int) []Command
	DeleteSVI(vid int) []Command
	ConfigureSVI(vid int, cidr string) []Command
	FlushPortAddress(port string) []Command
	SetInterfaceIP(port, cidr string) []Command
	RemoveInterfaceIP(port string) []Command
	AddStaticRoute(prefix, gateway string) []Command
	RemoveStaticRoute(prefix, gateway string) []Command
	ShowVLANs() Command
}

func dialectFor(d testbed.Dialect) dialect {
	if d == testbed.DialectClick {
		return clickDialect{}
	}
	return klishDialect{}
}

// ----------------------------------------------------------------------------
// click

type clickDialect struct{}

func (clickDialect) CreateVLAN(vid int) []Command {
	return []Command{{Line: fmt.Sprintf("config vlan add %d", vid), Sudo: true}}
}

func (clickDialect) DeleteVLAN(vid int) []Command {
	return []Command{{Line: fmt.Sprintf("config vlan del %d", vid), Sudo: true}}
}

func (clickDialect) AddAccessMember(vid int, port string) []Command {
	return []Command{{Line: fmt.Sprintf("config vlan member add -u %d %s", vid, port), Sudo: true}}
}

func (clickDialect) RemoveAccessMember(vid int, port string) []Command {
	return []Command{{Line: fmt.Sprintf("config vlan member del %d %s", vid, port), Sudo: true}}
}

func (clickDialect) RemoveSVIAddress(vid int) []Command {
	return []Command{
		{Line: fmt.Sprintf("config interface shutdown Vlan%d", vid), Sudo: true},
		{Line: fmt.Sprintf("ip addr flush dev Vlan%d", vid), Sudo: true},
	}
}

// The utility CLI has no standalone SVI delete; "config vlan del" drops
// the interface together with the VLAN.
func (clickDialect) DeleteSVI(vid int) []Command { return nil }

func (clickDialect) ConfigureSVI(vid int, cidr string) []Command {
	return []Command{
		{Line: fmt.Sprintf("config vlan add %d", vid), Sudo: true},
		{Line: fmt.Sprintf("config interface ip add Vlan%d %s", vid, cidr), Sudo: true},
	}
}

func (clickDialect) FlushPortAddress(port string) []Command {
	return []Command{{Line: fmt.Sprintf("ip addr flush dev %s", port), Sudo: true}}
}

func (clickDialect) SetInterfaceIP(port, cidr string) []Command {
	return []Command{{Line: fmt.Sprintf("config interface ip add %s %s", port, cidr), Sudo: true}}
}

func (clickDialect) RemoveInterfaceIP(port string) []Command {
	return []Command{{Line: fmt.Sprintf("ip addr flush dev %s", port), Sudo: true}}
}

func (clickDialect) AddStaticRoute(prefix, gateway string) []Command {
	return []Command{{Line: fmt.Sprintf("ip route add %s via %s", prefix, gateway), Sudo: true}}
}

func (clickDialect) RemoveStaticRoute(prefix, gateway string) []Command {
	return []Command{{Line: fmt.Sprintf("ip route del %s via %s", prefix, gateway), Sudo: true}}
}

func (clickDialect) ShowVLANs() Command {
	return Command{Line: "show vlan brief"}
}

// ----------------------------------------------------------------------------
// klish

type klishDialect struct{}

// script renders a configure-terminal block as one sonic-cli invocation.
// Each line becomes a -c argument so the whole block runs in a single
// CLI session.
func script(lines ...string) []Command {
	args := make([]string, 0, len(lines)+2)
	args = append(args, "sonic-cli", "-c 'configure terminal'")
	for _, l := range lines {
		args = append(args, fmt.Sprintf("-c '%s'", l))
	}
	args = append(args, "-c 'exit'")
	return []Command{{Line: strings.Join(args, " ")}}
}

func (klishDialect) CreateVLAN(vid int) []Command {
	return script(fmt.Sprintf("vlan %d", vid))
}

func (klishDialect) DeleteVLAN(vid int) []Command {
	return script(fmt.Sprintf("no vlan %d", vid))
}

func (klishDialect) AddAccessMember(vid int, port string) []Command {
	return script(
		fmt.Sprintf("interface %s", port),
		fmt.Sprintf("switchport access vlan %d", vid),
		"exit",
	)
}

func (klishDialect) RemoveAccessMember(vid int, port string) []Command {
	return script(
		fmt.Sprintf("interface %s", port),
		"no switchport access vlan",
		"exit",
	)
}

func (klishDialect) RemoveSVIAddress(vid int) []Command {
	return script(
		fmt.Sprintf("interface Vlan%d", vid),
		"shutdown",
		"no ip address",
		"exit",
	)
}

func (klishDialect) DeleteSVI(vid int) []Command {
	return script(fmt.Sprintf("no interface Vlan%d", vid))
}

func (klishDialect) ConfigureSVI(vid int, cidr string) []Command {
	return script(
		fmt.Sprintf("vlan %d", vid),
		"exit",
		fmt.Sprintf("interface Vlan%d", vid),
		"no shutdown",
		fmt.Sprintf("ip address %s", cidr),
		"exit",
	)
}

func (klishDialect) FlushPortAddress(port string) []Command {
	return script(
		fmt.Sprintf("interface %s", port),
		"no ip address",
		"exit",
	)
}

func (klishDialect) SetInterfaceIP(port, cidr string) []Command {
	return script(
		fmt.Sprintf("interface %s", port),
		"no shutdown",
		fmt.Sprintf("ip address %s", cidr),
		"exit",
	)
}

func (klishDialect) RemoveInterfaceIP(port string) []Command {
	return script(
		fmt.Sprintf("interface %s", port),
		"no ip address",
		"exit",
	)
}

func (klishDialect) AddStaticRoute(prefix, gateway string) []Command {
	return script(fmt.Sprintf("ip route %s %s", prefix, gateway))
}

func (klishDialect) RemoveStaticRoute(prefix, gateway string) []Command {
	return script(fmt.Sprintf("no ip route %s %s", prefix, gateway))
}

func (klishDialect) ShowVLANs() Command {
	return Command{Line: "sonic-cli -c 'show vlan'"}
}
