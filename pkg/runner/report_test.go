package runner

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteJUnit(t *testing.T) {
	results := []*ScenarioResult{
		{
			Name:     "vlan-access",
			Status:   StepStatusPassed,
			Duration: 2 * time.Second,
			Steps: []StepResult{
				{Name: "create", Action: ActionCreateVLAN, Status: StepStatusPassed},
				{Name: "verify", Action: ActionVerifyVLAN, Status: StepStatusPassed},
			},
		},
		{
			Name:   "inter-vlan",
			Status: StepStatusFailed,
			Steps: []StepResult{
				{Name: "svi", Action: ActionConfigureSVI, Status: StepStatusPassed},
				{Name: "reach", Action: ActionVerifyPing, Status: StepStatusFailed,
					Message: "D1: ping 192.168.10.2 failed: 100% packet loss"},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "reports", "junit.xml")
	gen := &ReportGenerator{Results: results}
	if err := gen.WriteJUnit(path); err != nil {
		t.Fatalf("WriteJUnit() error: %v", err)
	}

	var suites junitTestSuites
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if err := xml.Unmarshal(data, &suites); err != nil {
		t.Fatalf("unmarshaling report: %v", err)
	}

	if len(suites.Suites) != 2 {
		t.Fatalf("suites = %d, want 2", len(suites.Suites))
	}
	first := suites.Suites[0]
	if first.Name != "vlan-access" || first.Tests != 2 || first.Failures != 0 {
		t.Errorf("first suite = %+v", first)
	}
	second := suites.Suites[1]
	if second.Tests != 2 || second.Failures != 1 {
		t.Errorf("second suite = %+v", second)
	}
	failCase := second.Cases[1]
	if failCase.Failure == nil {
		t.Fatal("failed case has no failure element")
	}
	if failCase.Failure.Type != string(ActionVerifyPing) {
		t.Errorf("failure type = %q", failCase.Failure.Type)
	}
}

func TestWriteJUnitSetupError(t *testing.T) {
	results := []*ScenarioResult{
		{
			Name:       "broken-env",
			Status:     StepStatusError,
			SetupError: errors.New("D1: connection refused"),
		},
	}

	path := filepath.Join(t.TempDir(), "junit.xml")
	gen := &ReportGenerator{Results: results}
	if err := gen.WriteJUnit(path); err != nil {
		t.Fatalf("WriteJUnit() error: %v", err)
	}

	var suites junitTestSuites
	data, _ := os.ReadFile(path)
	if err := xml.Unmarshal(data, &suites); err != nil {
		t.Fatalf("unmarshaling report: %v", err)
	}

	suite := suites.Suites[0]
	if suite.Tests != 1 || suite.Errors != 1 {
		t.Errorf("suite = %+v", suite)
	}
	if suite.Cases[0].Error == nil || suite.Cases[0].Error.Type != "setup" {
		t.Errorf("setup error case = %+v", suite.Cases[0])
	}
}

func TestStatusVerb(t *testing.T) {
	if got := statusVerb(StepStatusFailed); got != "failed" {
		t.Errorf("statusVerb(FAIL) = %q", got)
	}
	if got := statusVerb(StepStatusError); got != "errored" {
		t.Errorf("statusVerb(ERROR) = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	results := []*ScenarioResult{
		{Status: StepStatusPassed},
		{Status: StepStatusPassed},
		{Status: StepStatusFailed},
		{Status: StepStatusError},
	}
	passed, failed, errored := summarize(results)
	if passed != 2 || failed != 1 || errored != 1 {
		t.Errorf("summarize() = %d/%d/%d, want 2/1/1", passed, failed, errored)
	}
}
