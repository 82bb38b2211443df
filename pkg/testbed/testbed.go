// Package testbed loads the YAML testbed descriptor that maps device names
// to their connection parameters. The descriptor is read-only input for the
// duration of a run; a missing file or missing required fields is a hard
// startup failure.
package testbed

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lantest-net/lantest/pkg/util"
)

// Dialect identifies the CLI command vocabulary a device speaks.
type Dialect string

const (
	// DialectClick is the SONiC utility CLI ("config vlan add", "show vlan brief").
	DialectClick Dialect = "click"
	// DialectKlish is the management-framework CLI ("configure terminal" blocks).
	DialectKlish Dialect = "klish"
)

// ConnectionParams holds the SSH credential tuple for a device.
type ConnectionParams struct {
	IP       string `yaml:"ip"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port,omitempty"`
}

// Profile describes a single device under test.
type Profile struct {
	Name       string           `yaml:"-"`
	Connection ConnectionParams `yaml:"connection_params"`
	CLI        Dialect          `yaml:"cli,omitempty"`

	// SNMP community for the counters verification source; empty disables SNMP.
	SNMPCommunity string `yaml:"snmp_community,omitempty"`

	// Physical ports available for membership tests (informational).
	Ports []string `yaml:"ports,omitempty"`
}

// Testbed is the parsed testbed descriptor.
type Testbed struct {
	Devices map[string]*Profile `yaml:"devices"`
}

// Load reads and validates a testbed YAML file.
func Load(path string) (*Testbed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading testbed %s: %w", path, err)
	}

	var tb Testbed
	if err := yaml.Unmarshal(data, &tb); err != nil {
		return nil, fmt.Errorf("parsing testbed %s: %w", path, err)
	}

	if len(tb.Devices) == 0 {
		return nil, fmt.Errorf("testbed %s: no devices defined", path)
	}

	v := &util.ValidationBuilder{}
	for name, p := range tb.Devices {
		p.Name = name
		if p.Connection.IP == "" {
			v.AddErrorf("device %s: connection_params.ip is required", name)
		}
		if p.Connection.Username == "" {
			v.AddErrorf("device %s: connection_params.username is required", name)
		}
		// Password may be omitted; the CLI prompts for it interactively
		// before connecting.
		if p.Connection.Port == 0 {
			p.Connection.Port = 22
		}
		switch p.CLI {
		case "", DialectKlish:
			p.CLI = DialectKlish
		case DialectClick:
		default:
			v.AddErrorf("device %s: unknown cli dialect %q", name, p.CLI)
		}
	}
	if v.HasErrors() {
		return nil, v.Build()
	}

	return &tb, nil
}

// MissingPasswords returns sorted names of devices whose profile has no
// password, for interactive prompting.
func (tb *Testbed) MissingPasswords() []string {
	var names []string
	for name, p := range tb.Devices {
		if p.Connection.Password == "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Get returns the profile for a device name.
func (tb *Testbed) Get(name string) (*Profile, error) {
	p, ok := tb.Devices[name]
	if !ok {
		return nil, fmt.Errorf("device %q not found in testbed: %w", name, util.ErrNotFound)
	}
	return p, nil
}

// Names returns all device names, sorted for deterministic iteration.
func (tb *Testbed) Names() []string {
	names := make([]string, 0, len(tb.Devices))
	for name := range tb.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Addr returns the SSH dial address for a profile.
func (p *Profile) Addr() string {
	return fmt.Sprintf("%s:%d", p.Connection.IP, p.Connection.Port)
}
