// Package runner implements the scenario engine: it parses YAML scenario
// files, connects to testbed devices, and runs multi-step VLAN and
// reachability sequences with XML reporting.
package runner

import (
	"fmt"
	"sort"
	"time"
)

// Scenario is a parsed test scenario from a YAML file. Setup steps run
// before the body and log to pretest.xml; a setup failure aborts the
// scenario as an environment error. Cleanup steps always run after the
// body, even when it failed, and log to posttest.xml; their failures are
// collected as warnings only.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Setup       []Step `yaml:"setup,omitempty"`
	Steps       []Step `yaml:"steps"`
	Cleanup     []Step `yaml:"cleanup,omitempty"`
}

// Step is a single action within a scenario.
// Fields are action-specific; the parser validates that the relevant
// fields are set for each action type.
type Step struct {
	Name    string         `yaml:"name"`
	Action  StepAction     `yaml:"action"`
	Devices deviceSelector `yaml:"devices,omitempty"`

	// wait
	Duration time.Duration `yaml:"duration,omitempty"`

	// create-vlan, delete-vlan, cleanup-vlan, add-vlan-member,
	// remove-vlan-member, configure-svi, verify-vlan
	VLANID    int    `yaml:"vlan_id,omitempty"`
	Interface string `yaml:"interface,omitempty"`
	Address   string `yaml:"address,omitempty"` // CIDR for configure-svi / set-interface-ip

	// add-static-route, remove-static-route
	Prefix  string `yaml:"prefix,omitempty"`
	Gateway string `yaml:"gateway,omitempty"`

	// verify-ping
	Target string `yaml:"target,omitempty"`
	Source string `yaml:"source,omitempty"`
	Size   int    `yaml:"size,omitempty"`
	Count  int    `yaml:"count,omitempty"`
	Sweep  bool   `yaml:"sweep,omitempty"` // probe every standard payload size

	// verify-config-db
	Table string `yaml:"table,omitempty"`
	Key   string `yaml:"key,omitempty"`

	// ssh-command
	Command string `yaml:"command,omitempty"`

	// verify-* actions, ssh-command
	Expect *ExpectBlock `yaml:"expect,omitempty"`
}

// StepAction identifies the type of step to execute.
type StepAction string

const (
	ActionWait              StepAction = "wait"
	ActionCreateVLAN        StepAction = "create-vlan"
	ActionDeleteVLAN        StepAction = "delete-vlan"
	ActionCleanupVLAN       StepAction = "cleanup-vlan"
	ActionAddVLANMember     StepAction = "add-vlan-member"
	ActionRemoveVLANMember  StepAction = "remove-vlan-member"
	ActionConfigureSVI      StepAction = "configure-svi"
	ActionSetInterfaceIP    StepAction = "set-interface-ip"
	ActionRemoveInterfaceIP StepAction = "remove-interface-ip"
	ActionAddStaticRoute    StepAction = "add-static-route"
	ActionRemoveStaticRoute StepAction = "remove-static-route"
	ActionVerifyVLAN        StepAction = "verify-vlan"
	ActionVerifyPing        StepAction = "verify-ping"
	ActionVerifyCounters    StepAction = "verify-counters"
	ActionVerifyConfigDB    StepAction = "verify-config-db"
	ActionSSHCommand        StepAction = "ssh-command"
)

// validActions is derived from the executors map in steps.go at init
// time, so the two never drift apart.
var validActions map[StepAction]bool

func init() {
	validActions = make(map[StepAction]bool, len(executors))
	for action := range executors {
		validActions[action] = true
	}
}

// deviceSelector handles the two YAML forms for the "devices" field:
//
//	devices: all            → All: true
//	devices: [D1, D2]       → Devices: ["D1", "D2"]
type deviceSelector struct {
	All     bool
	Devices []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (ds *deviceSelector) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		if s == "all" {
			ds.All = true
			return nil
		}
		return fmt.Errorf("invalid device selector string: %q (expected \"all\")", s)
	}
	return unmarshal(&ds.Devices)
}

// Resolve returns the list of device names to target.
// If All is true, returns allDevices sorted for deterministic ordering.
func (ds *deviceSelector) Resolve(allDevices []string) []string {
	if ds.All {
		sorted := make([]string, len(allDevices))
		copy(sorted, allDevices)
		sort.Strings(sorted)
		return sorted
	}
	return ds.Devices
}

// ExpectBlock is a union of all action-specific expectation fields.
type ExpectBlock struct {
	// verify-ping: expected probe outcome; defaults to true.
	Pass *bool `yaml:"pass,omitempty"`

	// verify-vlan, verify-config-db: presence assertion; defaults to true.
	Exists *bool `yaml:"exists,omitempty"`

	// verify-config-db: required field values on the entry.
	Fields map[string]string `yaml:"fields,omitempty"`

	// verify-counters: assert zero error counters; defaults to true.
	Clean *bool `yaml:"clean,omitempty"`

	// ssh-command: required substring of the output.
	Contains string `yaml:"contains,omitempty"`
}
