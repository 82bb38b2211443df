package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lantest-net/lantest/pkg/counters"
	"github.com/lantest-net/lantest/pkg/dut"
	"github.com/lantest-net/lantest/pkg/ping"
	"github.com/lantest-net/lantest/pkg/util"
	"github.com/lantest-net/lantest/pkg/vlan"
)

// stepExecutor executes a single step and returns its result.
type stepExecutor interface {
	Execute(ctx context.Context, r *Runner, step *Step) *StepResult
}

// executors maps each StepAction to its executor implementation.
var executors = map[StepAction]stepExecutor{
	ActionWait:              &waitExecutor{},
	ActionCreateVLAN:        &createVLANExecutor{},
	ActionDeleteVLAN:        &deleteVLANExecutor{},
	ActionCleanupVLAN:       &cleanupVLANExecutor{},
	ActionAddVLANMember:     &addVLANMemberExecutor{},
	ActionRemoveVLANMember:  &removeVLANMemberExecutor{},
	ActionConfigureSVI:      &configureSVIExecutor{},
	ActionSetInterfaceIP:    &setInterfaceIPExecutor{},
	ActionRemoveInterfaceIP: &removeInterfaceIPExecutor{},
	ActionAddStaticRoute:    &addStaticRouteExecutor{},
	ActionRemoveStaticRoute: &removeStaticRouteExecutor{},
	ActionVerifyVLAN:        &verifyVLANExecutor{},
	ActionVerifyPing:        &verifyPingExecutor{},
	ActionVerifyCounters:    &verifyCountersExecutor{},
	ActionVerifyConfigDB:    &verifyConfigDBExecutor{},
	ActionSSHCommand:        &sshCommandExecutor{},
}

// classify maps an error to a step status: expectation and precondition
// mismatches are test failures; everything else (transport, session) is
// an infrastructure error.
func classify(err error) StepStatus {
	var ve *vlan.VerifyError
	var ee *ping.ExpectError
	switch {
	case errors.As(err, &ve), errors.As(err, &ee),
		errors.Is(err, util.ErrPreconditionFailed):
		return StepStatusFailed
	default:
		return StepStatusError
	}
}

// deviceAction runs one step's work on one device, returning the
// commands issued and their output for the action log.
type deviceAction func(ctx context.Context, d dut.CommandRunner) (command, output, message string, err error)

// executeForDevices runs fn on every device the step targets and
// aggregates per-device results.
func (r *Runner) executeForDevices(ctx context.Context, step *Step, fn deviceAction) *StepResult {
	names := step.Devices.Resolve(r.allDeviceNames())
	if len(names) == 0 {
		return &StepResult{
			Status:  StepStatusError,
			Details: []DeviceResult{{Device: "(none)", Status: StepStatusError, Message: "no devices resolved"}},
		}
	}

	result := &StepResult{Status: StepStatusPassed}
	for _, name := range names {
		d, err := r.dut(name)
		if err != nil {
			result.Details = append(result.Details, DeviceResult{
				Device: name, Status: StepStatusError, Message: err.Error()})
			result.Status = StepStatusError
			continue
		}

		cmd, out, msg, err := fn(ctx, d)
		dr := DeviceResult{Device: name, Status: StepStatusPassed, Message: msg, Command: cmd, Output: out}
		if err != nil {
			dr.Status = classify(err)
			dr.Message = err.Error()
			if result.Status == StepStatusPassed || dr.Status == StepStatusError {
				result.Status = dr.Status
			}
		}
		result.Details = append(result.Details, dr)
	}
	return result
}

// lifecycleAction adapts a vlan lifecycle operation to a deviceAction.
func lifecycleAction(op func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error)) deviceAction {
	return func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		rep, err := op(ctx, d)
		return rep.CommandText(), rep.OutputText(), "", err
	}
}

type waitExecutor struct{}

func (e *waitExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	select {
	case <-ctx.Done():
		return &StepResult{Status: StepStatusError, Message: ctx.Err().Error()}
	case <-time.After(step.Duration):
		return &StepResult{Status: StepStatusPassed, Message: fmt.Sprintf("waited %s", step.Duration)}
	}
}

type createVLANExecutor struct{}

func (e *createVLANExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.Create(ctx, d, step.VLANID)
	}))
}

type deleteVLANExecutor struct{}

func (e *deleteVLANExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.Delete(ctx, d, step.VLANID)
	}))
}

type cleanupVLANExecutor struct{}

// Cleanup never fails the step: sub-step failures arrive as warnings on
// the report and are surfaced on the run result instead.
func (e *cleanupVLANExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		rep, err := vlan.Cleanup(ctx, d, step.VLANID)
		if err != nil {
			return rep.CommandText(), rep.OutputText(), "", err
		}
		r.addWarnings(rep.Warnings)
		msg := ""
		if n := len(rep.Warnings); n > 0 {
			msg = fmt.Sprintf("%d cleanup warning(s)", n)
		}
		return rep.CommandText(), rep.OutputText(), msg, nil
	})
}

type addVLANMemberExecutor struct{}

func (e *addVLANMemberExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.AddAccessMember(ctx, d, step.VLANID, step.Interface)
	}))
}

type removeVLANMemberExecutor struct{}

func (e *removeVLANMemberExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.RemoveAccessMember(ctx, d, step.VLANID, step.Interface)
	}))
}

type configureSVIExecutor struct{}

func (e *configureSVIExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.ConfigureSVI(ctx, d, step.VLANID, step.Address)
	}))
}

type setInterfaceIPExecutor struct{}

func (e *setInterfaceIPExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.SetInterfaceIP(ctx, d, step.Interface, step.Address)
	}))
}

type removeInterfaceIPExecutor struct{}

func (e *removeInterfaceIPExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.RemoveInterfaceIP(ctx, d, step.Interface)
	}))
}

type addStaticRouteExecutor struct{}

func (e *addStaticRouteExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.AddStaticRoute(ctx, d, step.Prefix, step.Gateway)
	}))
}

type removeStaticRouteExecutor struct{}

func (e *removeStaticRouteExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, lifecycleAction(func(ctx context.Context, d dut.CommandRunner) (vlan.Report, error) {
		return vlan.RemoveStaticRoute(ctx, d, step.Prefix, step.Gateway)
	}))
}

type verifyVLANExecutor struct{}

func (e *verifyVLANExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	wantExists := step.Expect == nil || step.Expect.Exists == nil || *step.Expect.Exists
	return r.executeForDevices(ctx, step, func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		if wantExists {
			if err := vlan.Verify(ctx, d, step.VLANID, step.Interface); err != nil {
				return "", "", "", err
			}
			return "", "", fmt.Sprintf("Vlan%d present", step.VLANID), nil
		}
		q, err := vlan.Query(ctx, d, step.VLANID)
		if err != nil {
			return "", "", "", err
		}
		if q.Has(step.VLANID) {
			return "", q.Raw, "", &vlan.VerifyError{
				Device: d.Name(), VLAN: step.VLANID, Reason: "still present, expected absent"}
		}
		return "", "", fmt.Sprintf("Vlan%d absent", step.VLANID), nil
	})
}

type verifyPingExecutor struct{}

func (e *verifyPingExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	expectPass := step.Expect == nil || step.Expect.Pass == nil || *step.Expect.Pass
	spec := ping.Spec{Dest: step.Target, Source: step.Source, Size: step.Size, Count: step.Count}

	return r.executeForDevices(ctx, step, func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		if step.Sweep {
			outcomes, err := ping.Sweep(ctx, d, spec, nil, expectPass)
			out := ""
			if n := len(outcomes); n > 0 {
				out = outcomes[n-1].Output
			}
			if err != nil {
				return spec.Command(), out, "", err
			}
			return spec.Command(), out, fmt.Sprintf("%d probe sizes ok", len(outcomes)), nil
		}
		o, err := ping.Check(ctx, d, spec, expectPass)
		if err != nil {
			return spec.Command(), o.Output, "", err
		}
		return spec.Command(), o.Output, fmt.Sprintf("%d%% packet loss", o.Loss), nil
	})
}

type verifyCountersExecutor struct{}

func (e *verifyCountersExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	wantClean := step.Expect == nil || step.Expect.Clean == nil || *step.Expect.Clean
	return r.executeForDevices(ctx, step, func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		cmd := "show interfaces counters " + step.Interface
		c, err := counters.ReadCLI(ctx, d, step.Interface)
		if err != nil {
			return cmd, "", "", err
		}
		msg := fmt.Sprintf("rx_ok=%d tx_ok=%d rx_err=%d tx_err=%d", c.RxOK, c.TxOK, c.RxErr, c.TxErr)

		// Cross-check octet counters over SNMP when the profile has a
		// community. Failures here are warnings, not verdicts.
		if p := r.profileOf(d.Name()); p != nil && p.SNMPCommunity != "" {
			if src, err := counters.NewSNMPSource(p.Connection.IP, p.SNMPCommunity); err == nil {
				if in, out, err := src.ReadOctets(step.Interface); err == nil {
					msg += fmt.Sprintf(" snmp_in_octets=%d snmp_out_octets=%d", in, out)
				} else {
					r.addWarnings([]string{fmt.Sprintf("%s: SNMP counters: %v", d.Name(), err)})
				}
				src.Close()
			} else {
				r.addWarnings([]string{fmt.Sprintf("%s: SNMP connect: %v", d.Name(), err)})
			}
		}

		if wantClean && !c.Clean() {
			return cmd, msg, "", &vlan.VerifyError{
				Device: d.Name(), Reason: fmt.Sprintf("error counters on %s: rx_err=%d tx_err=%d",
					step.Interface, c.RxErr, c.TxErr)}
		}
		return cmd, msg, msg, nil
	})
}

// configDBOpener is satisfied by *dut.DUT; scripted fakes are not, which
// turns config-db steps into explicit errors in unit tests.
type configDBOpener interface {
	OpenConfigDB(ctx context.Context) (*dut.ConfigDB, error)
}

type verifyConfigDBExecutor struct{}

func (e *verifyConfigDBExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	wantExists := step.Expect == nil || step.Expect.Exists == nil || *step.Expect.Exists
	return r.executeForDevices(ctx, step, func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		opener, ok := d.(configDBOpener)
		if !ok {
			return "", "", "", fmt.Errorf("device %s: config-db access not available", d.Name())
		}
		db, err := opener.OpenConfigDB(ctx)
		if err != nil {
			return "", "", "", err
		}
		defer db.Close()

		entry, err := db.GetEntry(ctx, step.Table, step.Key)
		if err != nil {
			return "", "", "", err
		}
		desc := fmt.Sprintf("%s|%s", step.Table, step.Key)

		if !wantExists {
			if entry != nil {
				return desc, "", "", &vlan.VerifyError{Device: d.Name(),
					Reason: fmt.Sprintf("CONFIG_DB %s present, expected absent", desc)}
			}
			return desc, "", desc + " absent", nil
		}
		if entry == nil {
			return desc, "", "", &vlan.VerifyError{Device: d.Name(),
				Reason: fmt.Sprintf("CONFIG_DB %s missing", desc)}
		}
		for k, want := range expectFields(step) {
			if got := entry[k]; got != want {
				return desc, "", "", &vlan.VerifyError{Device: d.Name(),
					Reason: fmt.Sprintf("CONFIG_DB %s field %s = %q, want %q", desc, k, got, want)}
			}
		}
		return desc, "", desc + " verified", nil
	})
}

func expectFields(step *Step) map[string]string {
	if step.Expect == nil {
		return nil
	}
	return step.Expect.Fields
}

type sshCommandExecutor struct{}

func (e *sshCommandExecutor) Execute(ctx context.Context, r *Runner, step *Step) *StepResult {
	return r.executeForDevices(ctx, step, func(ctx context.Context, d dut.CommandRunner) (string, string, string, error) {
		res, err := d.Run(ctx, step.Command)
		if err != nil {
			return step.Command, res.Output, "", err
		}
		if res.Failed() {
			return step.Command, res.Output, "", &vlan.VerifyError{Device: d.Name(),
				Reason: fmt.Sprintf("command exited %d", res.ExitCode)}
		}
		if step.Expect != nil && step.Expect.Contains != "" &&
			!strings.Contains(res.Output, step.Expect.Contains) {
			return step.Command, res.Output, "", &vlan.VerifyError{Device: d.Name(),
				Reason: fmt.Sprintf("output does not contain %q", step.Expect.Contains)}
		}
		return step.Command, res.Output, "", nil
	})
}
