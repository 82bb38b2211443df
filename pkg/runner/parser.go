package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lantest-net/lantest/pkg/ping"
)

// ParseScenario reads a YAML scenario file and returns a validated Scenario.
func ParseScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: no steps", path)
	}

	if err := validateScenario(&s); err != nil {
		return nil, err
	}
	applyDefaults(&s)
	return &s, nil
}

// ParseAllScenarios reads all .yaml files in dir and returns parsed scenarios.
func ParseAllScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios dir %s: %w", dir, err)
	}

	var scenarios []*Scenario
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		s, err := ParseScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	for _, phase := range []struct {
		name  string
		steps []Step
	}{{"setup", s.Setup}, {"steps", s.Steps}, {"cleanup", s.Cleanup}} {
		for i := range phase.steps {
			step := &phase.steps[i]
			if !validActions[step.Action] {
				return fmt.Errorf("scenario %s %s step %d (%s): unknown action %q",
					s.Name, phase.name, i, step.Name, step.Action)
			}
			if err := validateStepFields(s.Name, phase.name, i, step); err != nil {
				return err
			}
		}
	}
	return nil
}

// requireDevices checks that the step has a device selector.
func requireDevices(prefix string, step *Step) error {
	if !step.Devices.All && len(step.Devices.Devices) == 0 {
		return fmt.Errorf("%s: devices is required", prefix)
	}
	return nil
}

// stepValidation declares what fields each action requires.
type stepValidation struct {
	needsDevices bool     // must have a device selector
	fields       []string // required step-level fields
	custom       func(prefix string, step *Step) error
}

func requireVLANID(prefix string, step *Step) error {
	if step.VLANID < 1 || step.VLANID > 4094 {
		return fmt.Errorf("%s: vlan_id must be 1-4094 (got %d)", prefix, step.VLANID)
	}
	return nil
}

// stepValidations is the declarative validation table for all step actions.
// Actions not listed here have no field requirements.
var stepValidations = map[StepAction]stepValidation{
	ActionWait: {custom: func(prefix string, step *Step) error {
		if step.Duration == 0 {
			return fmt.Errorf("%s: duration is required", prefix)
		}
		return nil
	}},
	ActionCreateVLAN:        {needsDevices: true, custom: requireVLANID},
	ActionDeleteVLAN:        {needsDevices: true, custom: requireVLANID},
	ActionCleanupVLAN:       {needsDevices: true, custom: requireVLANID},
	ActionAddVLANMember:     {needsDevices: true, fields: []string{"interface"}, custom: requireVLANID},
	ActionRemoveVLANMember:  {needsDevices: true, fields: []string{"interface"}, custom: requireVLANID},
	ActionConfigureSVI:      {needsDevices: true, fields: []string{"address"}, custom: requireVLANID},
	ActionSetInterfaceIP:    {needsDevices: true, fields: []string{"interface", "address"}},
	ActionRemoveInterfaceIP: {needsDevices: true, fields: []string{"interface"}},
	ActionAddStaticRoute:    {needsDevices: true, fields: []string{"prefix", "gateway"}},
	ActionRemoveStaticRoute: {needsDevices: true, fields: []string{"prefix", "gateway"}},
	ActionVerifyVLAN:        {needsDevices: true, custom: requireVLANID},
	ActionVerifyPing:        {needsDevices: true, fields: []string{"target"}},
	ActionVerifyCounters:    {needsDevices: true, fields: []string{"interface"}},
	ActionVerifyConfigDB: {needsDevices: true, fields: []string{"table", "key"}, custom: func(prefix string, step *Step) error {
		if step.Expect == nil {
			return nil // presence check by default
		}
		if step.Expect.Exists != nil && !*step.Expect.Exists && len(step.Expect.Fields) > 0 {
			return fmt.Errorf("%s: expect.fields conflicts with exists: false", prefix)
		}
		return nil
	}},
	ActionSSHCommand: {needsDevices: true, fields: []string{"command"}},
}

// stepFieldGetter maps step-level field names to their accessors.
var stepFieldGetter = map[string]func(*Step) string{
	"interface": func(s *Step) string { return s.Interface },
	"address":   func(s *Step) string { return s.Address },
	"prefix":    func(s *Step) string { return s.Prefix },
	"gateway":   func(s *Step) string { return s.Gateway },
	"target":    func(s *Step) string { return s.Target },
	"table":     func(s *Step) string { return s.Table },
	"key":       func(s *Step) string { return s.Key },
	"command":   func(s *Step) string { return s.Command },
}

// validateStepFields checks required fields per action type using the
// stepValidations table.
func validateStepFields(scenario, phase string, index int, step *Step) error {
	prefix := fmt.Sprintf("scenario %s %s step %d (%s)", scenario, phase, index, step.Name)

	v, ok := stepValidations[step.Action]
	if !ok {
		return nil
	}

	if v.needsDevices {
		if err := requireDevices(prefix, step); err != nil {
			return err
		}
	}

	for _, field := range v.fields {
		getter, exists := stepFieldGetter[field]
		if !exists {
			return fmt.Errorf("%s: unknown validation field %q (bug)", prefix, field)
		}
		if getter(step) == "" {
			return fmt.Errorf("%s: %s is required", prefix, field)
		}
	}

	if v.custom != nil {
		if err := v.custom(prefix, step); err != nil {
			return err
		}
	}

	return nil
}

// applyDefaults sets default values for steps across all phases.
func applyDefaults(s *Scenario) {
	for _, steps := range [][]Step{s.Setup, s.Steps, s.Cleanup} {
		for i := range steps {
			step := &steps[i]

			if step.Action == ActionVerifyPing && step.Count == 0 {
				step.Count = ping.DefaultCount
			}

			// Expectation defaults: pass, exists, and clean all default
			// to asserting the positive condition.
			switch step.Action {
			case ActionVerifyPing:
				if step.Expect == nil {
					step.Expect = &ExpectBlock{}
				}
				if step.Expect.Pass == nil {
					v := true
					step.Expect.Pass = &v
				}
			case ActionVerifyVLAN, ActionVerifyConfigDB:
				if step.Expect == nil {
					step.Expect = &ExpectBlock{}
				}
				if step.Expect.Exists == nil {
					v := true
					step.Expect.Exists = &v
				}
			case ActionVerifyCounters:
				if step.Expect == nil {
					step.Expect = &ExpectBlock{}
				}
				if step.Expect.Clean == nil {
					v := true
					step.Expect.Clean = &v
				}
			}
		}
	}
}

// resolveScenarioPath resolves a scenario name to a YAML file path.
// Tries in order:
//  1. Exact match: <dir>/<name>.yaml
//  2. Numbered prefix: <dir>/*-<name>.yaml
//  3. Scan files for matching name: field
func resolveScenarioPath(dir, name string) (string, error) {
	exact := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*-"+name+".yaml"))
	if len(matches) == 1 {
		return matches[0], nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scenario %q not found: %w", name, err)
	}
	var found string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		s, err := ParseScenario(path)
		if err != nil {
			continue
		}
		if s.Name == name {
			if found != "" {
				return "", fmt.Errorf("ambiguous scenario name %q: found in %s and %s", name, filepath.Base(found), e.Name())
			}
			found = path
		}
	}
	if found != "" {
		return found, nil
	}

	return "", fmt.Errorf("scenario %q not found in %s", name, dir)
}
