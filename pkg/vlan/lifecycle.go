package vlan

import (
	"context"
	"fmt"
	"strings"

	"github.com/lantest-net/lantest/pkg/dut"
	"github.com/lantest-net/lantest/pkg/util"
)

// Report is the transcript of one lifecycle operation: every command
// issued with its output, plus tolerated sub-step failures. The runner
// feeds it into the action log.
type Report struct {
	Results  []dut.Result
	Warnings []string
}

// CommandText joins the issued command lines for logging.
func (r Report) CommandText() string {
	lines := make([]string, len(r.Results))
	for i, res := range r.Results {
		lines[i] = res.Command
	}
	return strings.Join(lines, "\n")
}

// OutputText joins the command outputs for logging.
func (r Report) OutputText() string {
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if out := strings.TrimSpace(res.Output); out != "" {
			parts = append(parts, out)
		}
	}
	return strings.Join(parts, "\n")
}

// run executes one dialect command, appending the result to the report.
// A non-zero exit becomes an error carrying the device output.
func run(ctx context.Context, d dut.CommandRunner, r *Report, c Command) error {
	var res dut.Result
	var err error
	if c.Sudo {
		res, err = d.RunSudo(ctx, c.Line)
	} else {
		res, err = d.Run(ctx, c.Line)
	}
	r.Results = append(r.Results, res)
	if err != nil {
		return err
	}
	if res.Failed() {
		return fmt.Errorf("'%s' exited %d: %s", c.Line, res.ExitCode, strings.TrimSpace(res.Output))
	}
	return nil
}

func runAll(ctx context.Context, d dut.CommandRunner, r *Report, cmds []Command) error {
	for _, c := range cmds {
		if err := run(ctx, d, r, c); err != nil {
			return err
		}
	}
	return nil
}

// Create creates the VLAN. No existence check; creating an existing VLAN
// is accepted by both dialects.
func Create(ctx context.Context, d dut.CommandRunner, vid int) (Report, error) {
	var r Report
	err := runAll(ctx, d, &r, dialectFor(d.Dialect()).CreateVLAN(vid))
	return r, err
}

// AddAccessMember attaches a port to the VLAN untagged. Any routed
// address on the port is flushed first; a switched port must not keep an
// IP binding.
func AddAccessMember(ctx context.Context, d dut.CommandRunner, vid int, port string) (Report, error) {
	var r Report
	dl := dialectFor(d.Dialect())
	if err := runAll(ctx, d, &r, dl.FlushPortAddress(port)); err != nil {
		return r, err
	}
	err := runAll(ctx, d, &r, dl.AddAccessMember(vid, port))
	return r, err
}

// RemoveAccessMember detaches a port from the VLAN.
func RemoveAccessMember(ctx context.Context, d dut.CommandRunner, vid int, port string) (Report, error) {
	var r Report
	err := runAll(ctx, d, &r, dialectFor(d.Dialect()).RemoveAccessMember(vid, port))
	return r, err
}

// ConfigureSVI ensures the VLAN exists, brings its routed interface up,
// and assigns cidr to it.
func ConfigureSVI(ctx context.Context, d dut.CommandRunner, vid int, cidr string) (Report, error) {
	var r Report
	err := runAll(ctx, d, &r, dialectFor(d.Dialect()).ConfigureSVI(vid, cidr))
	return r, err
}

// Delete removes the VLAN. It refuses while the device still reports
// member ports: detachment must complete before deletion.
func Delete(ctx context.Context, d dut.CommandRunner, vid int) (Report, error) {
	var r Report
	q, err := Query(ctx, d, vid)
	if err != nil {
		return r, err
	}
	if m := members(q, vid); len(m) > 0 {
		return r, util.NewPreconditionError(
			"delete", fmt.Sprintf("Vlan%d", vid),
			"no member ports", strings.Join(m, ","))
	}
	err = runAll(ctx, d, &r, dialectFor(d.Dialect()).DeleteVLAN(vid))
	return r, err
}

// SetInterfaceIP assigns cidr to a physical interface, flushing any
// previous address first.
func SetInterfaceIP(ctx context.Context, d dut.CommandRunner, port, cidr string) (Report, error) {
	var r Report
	dl := dialectFor(d.Dialect())
	if err := runAll(ctx, d, &r, dl.FlushPortAddress(port)); err != nil {
		return r, err
	}
	err := runAll(ctx, d, &r, dl.SetInterfaceIP(port, cidr))
	return r, err
}

// RemoveInterfaceIP strips the address from a physical interface.
func RemoveInterfaceIP(ctx context.Context, d dut.CommandRunner, port string) (Report, error) {
	var r Report
	err := runAll(ctx, d, &r, dialectFor(d.Dialect()).RemoveInterfaceIP(port))
	return r, err
}

// AddStaticRoute installs a static route.
func AddStaticRoute(ctx context.Context, d dut.CommandRunner, prefix, gateway string) (Report, error) {
	var r Report
	err := runAll(ctx, d, &r, dialectFor(d.Dialect()).AddStaticRoute(prefix, gateway))
	return r, err
}

// RemoveStaticRoute removes a static route.
func RemoveStaticRoute(ctx context.Context, d dut.CommandRunner, prefix, gateway string) (Report, error) {
	var r Report
	err := runAll(ctx, d, &r, dialectFor(d.Dialect()).RemoveStaticRoute(prefix, gateway))
	return r, err
}

// Cleanup restores the device to a state where the VLAN is absent. An
// absent VLAN is a no-op. Otherwise the SVI is shut down and its address
// stripped, every member detached, the SVI deleted, and finally the VLAN
// deleted, in that order. Sub-step failures never abort the sweep; they
// are collected as warnings so the run report can surface them without
// failing the test. A final re-query warns when the VLAN still appears
// after the sweep.
func Cleanup(ctx context.Context, d dut.CommandRunner, vid int) (Report, error) {
	var r Report
	log := util.WithDevice(d.Name())

	q, err := Query(ctx, d, vid)
	if err != nil {
		return r, err
	}
	if !exists(q, vid) {
		log.Debugf("Vlan%d not present, cleanup skipped", vid)
		return r, nil
	}

	dl := dialectFor(d.Dialect())
	tolerate := func(what string, cmds []Command) {
		if err := runAll(ctx, d, &r, cmds); err != nil {
			w := fmt.Sprintf("%s: %s: %v", d.Name(), what, err)
			log.Warnf("cleanup: %s", w)
			r.Warnings = append(r.Warnings, w)
		}
	}

	tolerate(fmt.Sprintf("remove Vlan%d address", vid), dl.RemoveSVIAddress(vid))
	for _, port := range members(q, vid) {
		tolerate(fmt.Sprintf("detach %s from Vlan%d", port, vid), dl.RemoveAccessMember(vid, port))
	}
	tolerate(fmt.Sprintf("delete Vlan%d interface", vid), dl.DeleteSVI(vid))
	tolerate(fmt.Sprintf("delete Vlan%d", vid), dl.DeleteVLAN(vid))

	q, err = Query(ctx, d, vid)
	switch {
	case err != nil:
		w := fmt.Sprintf("%s: re-query after Vlan%d cleanup: %v", d.Name(), vid, err)
		log.Warnf("cleanup: %s", w)
		r.Warnings = append(r.Warnings, w)
	case exists(q, vid):
		w := fmt.Sprintf("%s: Vlan%d still present after cleanup", d.Name(), vid)
		log.Warnf("cleanup: %s", w)
		r.Warnings = append(r.Warnings, w)
	}

	return r, nil
}
