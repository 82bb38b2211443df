package ping

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/lantest-net/lantest/internal/testutil"
	"github.com/lantest-net/lantest/pkg/testbed"
)

const pingSuccess = `PING 192.168.10.2 (192.168.10.2) 64(92) bytes of data.
72 bytes from 192.168.10.2: icmp_seq=1 ttl=64 time=0.412 ms
72 bytes from 192.168.10.2: icmp_seq=2 ttl=64 time=0.380 ms

--- 192.168.10.2 ping statistics ---
5 packets transmitted, 5 received, 0% packet loss, time 4004ms
rtt min/avg/max/mdev = 0.380/0.401/0.412/0.023 ms
`

const pingPartialLoss = `--- 192.168.10.2 ping statistics ---
5 packets transmitted, 3 received, 40% packet loss, time 4100ms
`

func TestSpecCommand(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{"defaults", Spec{Dest: "192.168.10.2"}, "ping 192.168.10.2 -c 5"},
		{"size and count", Spec{Dest: "10.0.0.1", Size: 1400, Count: 3}, "ping 10.0.0.1 -s 1400 -c 3"},
		{"source", Spec{Dest: "10.0.0.1", Source: "Vlan10", Size: 64}, "ping 10.0.0.1 -I Vlan10 -s 64 -c 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Command(); got != tt.want {
				t.Errorf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantLoss   int
		wantPassed bool
	}{
		{"clean success", pingSuccess, 0, true},
		{"partial loss", pingPartialLoss, 40, false},
		{"total loss", "5 packets transmitted, 0 received, 100% packet loss", 100, false},
		{"unparsable", "ping: connect: Network is unreachable", 100, false},
		{"empty", "", 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Parse(tt.output)
			if o.Loss != tt.wantLoss {
				t.Errorf("Loss = %d, want %d", o.Loss, tt.wantLoss)
			}
			if o.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", o.Passed, tt.wantPassed)
			}
		})
	}
}

func TestParseRTT(t *testing.T) {
	o := Parse(pingSuccess)
	if o.RTTAvg != 0.401 {
		t.Errorf("RTTAvg = %v, want 0.401", o.RTTAvg)
	}
}

func TestCheckExpectPass(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnPrefix("ping", testutil.Reply{Output: pingSuccess})
	if _, err := Check(context.Background(), f, Spec{Dest: "192.168.10.2"}, true); err != nil {
		t.Errorf("Check(expectPass) = %v, want pass", err)
	}

	var ee *ExpectError
	_, err := Check(context.Background(), f, Spec{Dest: "192.168.10.2"}, false)
	if !errors.As(err, &ee) {
		t.Fatalf("Check(expectFail) = %v, want *ExpectError", err)
	}
	if ee.ExpectPass {
		t.Error("ExpectError.ExpectPass = true, want false")
	}
}

func TestCheckExpectFail(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnPrefix("ping", testutil.Reply{Output: pingPartialLoss, ExitCode: 1})
	if _, err := Check(context.Background(), f, Spec{Dest: "192.168.10.2"}, false); err != nil {
		t.Errorf("Check(expectFail) on lossy probe = %v, want pass", err)
	}
	_, err := Check(context.Background(), f, Spec{Dest: "192.168.10.2"}, true)
	if err == nil {
		t.Error("Check(expectPass) on lossy probe succeeded")
	}
}

func TestCheckUnparsableFailsSafe(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnPrefix("ping", testutil.Reply{Output: "something went sideways"})
	o, err := Check(context.Background(), f, Spec{Dest: "10.0.0.9"}, true)
	if err == nil {
		t.Fatal("unparsable output must fail an expectPass check")
	}
	if o.Loss != 100 {
		t.Errorf("Loss = %d, want 100", o.Loss)
	}
}

func TestSweepStopsOnMismatch(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnPrefix("ping 10.0.0.2 -s 64", testutil.Reply{Output: pingSuccess})
	f.OnPrefix("ping 10.0.0.2 -s 128", testutil.Reply{Output: pingPartialLoss})

	outcomes, err := Sweep(context.Background(), f, Spec{Dest: "10.0.0.2"}, []int{64, 128, 256}, true)
	if err == nil {
		t.Fatal("Sweep continued past a mismatch")
	}
	if len(outcomes) != 2 {
		t.Errorf("outcomes = %d, want 2 (stop at first mismatch)", len(outcomes))
	}
	if f.Ran("-s 256") {
		t.Error("probe issued after mismatch")
	}
}

// Any integer loss value the summary line can carry must round-trip,
// and only 0 may pass.
func TestParseLossProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		loss := rapid.IntRange(0, 100).Draw(t, "loss")
		sent := rapid.IntRange(1, 100).Draw(t, "sent")
		line := fmt.Sprintf(
			"--- 10.0.0.1 ping statistics ---\n%d packets transmitted, 0 received, %d%% packet loss, time 0ms\n",
			sent, loss)
		o := Parse(line)
		if o.Loss != loss {
			t.Fatalf("Loss = %d, want %d", o.Loss, loss)
		}
		if o.Passed != (loss == 0) {
			t.Fatalf("Passed = %v for loss %d", o.Passed, loss)
		}
	})
}
