package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lantest-net/lantest/pkg/dut"
	"github.com/lantest-net/lantest/pkg/testbed"
	"github.com/lantest-net/lantest/pkg/util"
)

// Runner is the top-level scenario orchestrator. It owns the testbed,
// the connected devices, the action log, and the accumulated cleanup
// warnings for the current run; there is no package-level run state.
type Runner struct {
	ScenariosDir string
	Testbed      *testbed.Testbed
	Progress     ProgressReporter
	Verbose      bool

	duts      map[string]dut.CommandRunner
	actionLog *ActionLog
	warnings  []string
	runID     string
	runDir    string
}

// RunOptions controls Runner behavior from CLI flags.
type RunOptions struct {
	Scenario  string
	All       bool
	JUnitPath string
	LogDir    string
	Verbose   bool
}

// NewRunner creates a runner over a loaded testbed.
func NewRunner(scenariosDir string, tb *testbed.Testbed) *Runner {
	return &Runner{
		ScenariosDir: scenariosDir,
		Testbed:      tb,
		duts:         make(map[string]dut.CommandRunner),
	}
}

// RunID returns the identifier of the current run, set by Run.
func (r *Runner) RunID() string { return r.runID }

// RunDir returns the per-run log directory, set by Run.
func (r *Runner) RunDir() string { return r.runDir }

// Warnings returns tolerated cleanup failures accumulated across the run.
func (r *Runner) Warnings() []string { return r.warnings }

// Run executes one or all scenarios and returns results. Environment
// failures (testbed, SSH connect, log directory) return an error;
// test failures are reported in the results.
func (r *Runner) Run(ctx context.Context, opts RunOptions) ([]*ScenarioResult, error) {
	if opts.Scenario == "" && !opts.All {
		return nil, fmt.Errorf("specify --scenario <name> or --all")
	}

	var scenarios []*Scenario
	if opts.All {
		var err error
		scenarios, err = ParseAllScenarios(r.ScenariosDir)
		if err != nil {
			return nil, err
		}
		if len(scenarios) == 0 {
			return nil, fmt.Errorf("no scenarios found in %s", r.ScenariosDir)
		}
	} else {
		path, err := resolveScenarioPath(r.ScenariosDir, opts.Scenario)
		if err != nil {
			return nil, err
		}
		s, err := ParseScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = []*Scenario{s}
	}

	// Per-run log directory keyed by the run ID.
	r.runID = uuid.New().String()
	logDir := opts.LogDir
	if logDir == "" {
		logDir = "logs"
	}
	r.runDir = filepath.Join(logDir, r.runID[:8])
	if err := os.MkdirAll(r.runDir, 0o755); err != nil {
		return nil, &InfraError{Op: "logdir", Err: err}
	}
	logFile, err := util.TeeLogFile(filepath.Join(r.runDir, "lantest.log"))
	if err != nil {
		return nil, &InfraError{Op: "logdir", Err: err}
	}
	if logFile != nil {
		defer logFile.Close()
	}

	suiteName := opts.Scenario
	if opts.All {
		suiteName = "all"
	}
	r.actionLog = NewActionLog(suiteName, r.runID, r.runDir)

	util.Infof("run %s: %d scenario(s), logs in %s", r.runID[:8], len(scenarios), r.runDir)

	// SIGINT handling
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if err := r.connectDevices(); err != nil {
		return nil, err
	}
	defer r.disconnectDevices()

	r.progress(func(p ProgressReporter) { p.SuiteStart(scenarios) })
	suiteStart := time.Now()

	var results []*ScenarioResult
	for i, sc := range scenarios {
		r.progress(func(p ProgressReporter) { p.ScenarioStart(sc.Name, i, len(scenarios)) })
		result := r.runScenario(ctx, sc)
		results = append(results, result)
		r.progress(func(p ProgressReporter) { p.ScenarioEnd(result, i, len(scenarios)) })

		if ctx.Err() != nil {
			break
		}
	}

	r.progress(func(p ProgressReporter) { p.SuiteEnd(results, time.Since(suiteStart)) })

	r.actionLog.Save(r.runDir)
	if opts.JUnitPath != "" {
		gen := &ReportGenerator{Results: results}
		if err := gen.WriteJUnit(opts.JUnitPath); err != nil {
			util.Warnf("writing JUnit report: %v", err)
		}
	}

	return results, nil
}

// runScenario executes setup, body, and cleanup phases of one scenario.
// Setup failure aborts the body as an environment error. Cleanup always
// runs, and its failures become warnings instead of verdicts, so a
// broken teardown never masks the body's result.
func (r *Runner) runScenario(ctx context.Context, sc *Scenario) *ScenarioResult {
	result := &ScenarioResult{Name: sc.Name}
	start := time.Now()
	warnBase := len(r.warnings)

	log := util.WithScenario(sc.Name)
	log.Infof("starting: %s", sc.Description)

	setupOK := true
	for i := range sc.Setup {
		step := &sc.Setup[i]
		sr := r.executeStep(ctx, step, i, len(sc.Setup))
		r.logEntries(r.actionLog.AddPretest, step, sr)
		if sr.Status == StepStatusFailed || sr.Status == StepStatusError {
			result.SetupError = &StepError{Step: step.Name, Action: step.Action,
				Err: fmt.Errorf("%s", sr.Message)}
			result.Status = StepStatusError
			setupOK = false
			log.Errorf("setup step %q %s: %s", step.Name, strings.ToLower(string(sr.Status)), sr.Message)
			break
		}
	}

	if setupOK {
		for i := range sc.Steps {
			step := &sc.Steps[i]
			r.progress(func(p ProgressReporter) { p.StepStart(sc.Name, step, i, len(sc.Steps)) })
			sr := r.executeStep(ctx, step, i, len(sc.Steps))
			result.Steps = append(result.Steps, *sr)

			for _, d := range sr.Details {
				details := d.Message
				if details == "" {
					details = string(d.Status)
				}
				r.actionLog.AddResult(sc.Name+"/"+step.Name, d.Device, d.Status, details)
			}

			r.progress(func(p ProgressReporter) { p.StepEnd(sc.Name, sr, i, len(sc.Steps)) })

			// Fail-fast: remaining body steps are not attempted.
			if sr.Status == StepStatusFailed || sr.Status == StepStatusError {
				break
			}
		}
		result.Status = computeOverallStatus(result.Steps)
	}

	// Best-effort cleanup phase. Failures are demoted to warnings.
	for i := range sc.Cleanup {
		step := &sc.Cleanup[i]
		sr := r.executeStep(ctx, step, i, len(sc.Cleanup))
		r.logEntries(r.actionLog.AddPosttest, step, sr)
		if sr.Status != StepStatusPassed {
			w := fmt.Sprintf("%s: cleanup step %q %s: %s", sc.Name, step.Name, statusVerb(sr.Status), sr.Message)
			log.Warnf("%s", w)
			r.warnings = append(r.warnings, w)
		}
	}

	result.Warnings = append(result.Warnings, r.warnings[warnBase:]...)
	result.Duration = time.Since(start)
	return result
}

// executeStep dispatches a step to its executor.
func (r *Runner) executeStep(ctx context.Context, step *Step, index, total int) *StepResult {
	executor, ok := executors[step.Action]
	if !ok {
		err := &StepError{
			Step:   step.Name,
			Action: step.Action,
			Err:    fmt.Errorf("unknown action: %s", step.Action),
		}
		return &StepResult{
			Name:    step.Name,
			Action:  step.Action,
			Status:  StepStatusError,
			Message: err.Error(),
		}
	}

	start := time.Now()
	result := executor.Execute(ctx, r, step)
	result.Duration = time.Since(start)
	result.Name = step.Name
	result.Action = step.Action

	// Aggregate per-device error details into Message when executors
	// only set Details.
	if result.Message == "" && len(result.Details) > 0 {
		var msgs []string
		for _, d := range result.Details {
			if d.Status != StepStatusPassed && d.Message != "" {
				msgs = append(msgs, d.Device+": "+d.Message)
			}
		}
		if len(msgs) > 0 {
			result.Message = strings.Join(msgs, "; ")
		}
	}

	return result
}

// logEntries writes one action-log entry per device result.
func (r *Runner) logEntries(add func(device, action, command, output string, status StepStatus), step *Step, sr *StepResult) {
	action := step.Name
	if action == "" {
		action = string(step.Action)
	}
	for _, d := range sr.Details {
		output := d.Output
		if d.Message != "" && output == "" {
			output = d.Message
		}
		add(d.Device, action, d.Command, output, d.Status)
	}
	if len(sr.Details) == 0 {
		add("", action, "", sr.Message, sr.Status)
	}
}

// connectDevices dials every testbed device. Any connect failure is an
// environment error that aborts the run; there is no retry.
func (r *Runner) connectDevices() error {
	for _, name := range r.Testbed.Names() {
		if _, ok := r.duts[name]; ok {
			continue
		}
		p, err := r.Testbed.Get(name)
		if err != nil {
			return &InfraError{Op: "connect", Device: name, Err: err}
		}
		d := dut.New(p)
		util.Infof("connecting to %s (%s)", name, p.Addr())
		if err := d.Connect(); err != nil {
			return &InfraError{Op: "connect", Device: name, Err: err}
		}
		r.duts[name] = d
	}
	return nil
}

func (r *Runner) disconnectDevices() {
	for name, d := range r.duts {
		if real, ok := d.(*dut.DUT); ok {
			if err := real.Disconnect(); err != nil {
				util.Warnf("disconnect %s: %v", name, err)
			}
		}
	}
}

// dut returns the connected device by name.
func (r *Runner) dut(name string) (dut.CommandRunner, error) {
	d, ok := r.duts[name]
	if !ok {
		return nil, fmt.Errorf("device %q not connected (not in testbed?)", name)
	}
	return d, nil
}

// profileOf returns the testbed profile for a device, or nil.
func (r *Runner) profileOf(name string) *testbed.Profile {
	p, err := r.Testbed.Get(name)
	if err != nil {
		return nil
	}
	return p
}

// allDeviceNames returns sorted names of all testbed devices.
func (r *Runner) allDeviceNames() []string {
	return r.Testbed.Names()
}

func (r *Runner) addWarnings(ws []string) {
	r.warnings = append(r.warnings, ws...)
}

// progress calls fn with the ProgressReporter if one is set.
func (r *Runner) progress(fn func(ProgressReporter)) {
	if r.Progress != nil {
		fn(r.Progress)
	}
}
