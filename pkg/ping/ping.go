// Package ping verifies dataplane reachability by running ping on a
// device and parsing its summary line.
package ping

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lantest-net/lantest/pkg/dut"
	"github.com/lantest-net/lantest/pkg/util"
)

// DefaultCount is the probe count used when a scenario does not set one.
const DefaultCount = 5

// SweepSizes are the payload sizes exercised by a size sweep, covering
// small frames through the standard MTU.
var SweepSizes = []int{64, 128, 256, 512, 1024, 1400, 1500}

// sweepDelay is the fixed pause between sweep probes. Fixed waits only;
// there is no adaptive retry anywhere in this harness.
const sweepDelay = 1 * time.Second

var (
	packetLossRe = regexp.MustCompile(`(\d+)% packet loss`)
	rttRe        = regexp.MustCompile(`rtt min/avg/max/mdev = ([\d.]+)/([\d.]+)/([\d.]+)/([\d.]+)`)
)

// Spec describes one reachability probe.
type Spec struct {
	Dest   string
	Source string // optional -I interface/address
	Size   int    // payload bytes; 0 omits -s
	Count  int    // 0 means DefaultCount
}

// Outcome is the parsed result of one probe. Passed is true only for
// exactly 0% loss; output that cannot be parsed counts as 100% loss.
type Outcome struct {
	Loss   int
	RTTAvg float64
	Passed bool
	Output string
}

// Command renders the ping invocation for the remote shell.
func (s Spec) Command() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ping %s", s.Dest)
	if s.Source != "" {
		fmt.Fprintf(&b, " -I %s", s.Source)
	}
	if s.Size > 0 {
		fmt.Fprintf(&b, " -s %d", s.Size)
	}
	count := s.Count
	if count == 0 {
		count = DefaultCount
	}
	fmt.Fprintf(&b, " -c %d", count)
	return b.String()
}

// Parse extracts the loss percentage and average rtt from ping output.
// Missing or malformed summary lines yield 100% loss so a broken probe
// can never read as success.
func Parse(output string) Outcome {
	o := Outcome{Loss: 100, Output: output}
	if m := packetLossRe.FindStringSubmatch(output); m != nil {
		o.Loss, _ = strconv.Atoi(m[1])
	}
	if m := rttRe.FindStringSubmatch(output); m != nil {
		o.RTTAvg, _ = strconv.ParseFloat(m[2], 64)
	}
	o.Passed = o.Loss == 0
	return o
}

// Run executes one probe on the device. The transport error path and a
// non-zero ping exit both fall through to Parse, which fails safe.
func Run(ctx context.Context, d dut.CommandRunner, s Spec) (Outcome, error) {
	res, err := d.Run(ctx, s.Command())
	if err != nil {
		return Outcome{Loss: 100, Output: res.Output}, err
	}
	o := Parse(res.Output)
	util.WithDevice(d.Name()).Debugf("ping %s: %d%% loss, rtt avg %.2f ms", s.Dest, o.Loss, o.RTTAvg)
	return o, nil
}

// ExpectError reports a mismatch between expected and observed
// reachability. Single sample; the caller never retries.
type ExpectError struct {
	Device     string
	Dest       string
	ExpectPass bool
	Outcome    Outcome
}

func (e *ExpectError) Error() string {
	if e.ExpectPass {
		return fmt.Sprintf("%s: ping %s failed: %d%% packet loss", e.Device, e.Dest, e.Outcome.Loss)
	}
	return fmt.Sprintf("%s: ping %s succeeded but was expected to fail", e.Device, e.Dest)
}

// Check runs one probe and compares the outcome against expectPass.
func Check(ctx context.Context, d dut.CommandRunner, s Spec, expectPass bool) (Outcome, error) {
	o, err := Run(ctx, d, s)
	if err != nil {
		return o, err
	}
	if o.Passed != expectPass {
		return o, &ExpectError{Device: d.Name(), Dest: s.Dest, ExpectPass: expectPass, Outcome: o}
	}
	return o, nil
}

// Sweep probes the destination once per payload size with a fixed delay
// between probes. The first expectation mismatch stops the sweep.
func Sweep(ctx context.Context, d dut.CommandRunner, s Spec, sizes []int, expectPass bool) ([]Outcome, error) {
	if len(sizes) == 0 {
		sizes = SweepSizes
	}
	outcomes := make([]Outcome, 0, len(sizes))
	for i, size := range sizes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return outcomes, ctx.Err()
			case <-time.After(sweepDelay):
			}
		}
		probe := s
		probe.Size = size
		o, err := Check(ctx, d, probe, expectPass)
		outcomes = append(outcomes, o)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}
