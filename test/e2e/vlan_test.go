//go:build e2e

package e2e_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lantest-net/lantest/pkg/dut"
	"github.com/lantest-net/lantest/pkg/ping"
	"github.com/lantest-net/lantest/pkg/testbed"
	"github.com/lantest-net/lantest/pkg/vlan"
)

const testVLAN = 3967 // top of the usable range, unlikely to collide with lab config

func loadTestbed(t *testing.T) *testbed.Testbed {
	t.Helper()
	path := os.Getenv("LANTEST_TESTBED")
	if path == "" {
		t.Skip("LANTEST_TESTBED not set")
	}
	tb, err := testbed.Load(path)
	if err != nil {
		t.Fatalf("loading testbed: %v", err)
	}
	return tb
}

func connect(t *testing.T, tb *testbed.Testbed, name string) *dut.DUT {
	t.Helper()
	p, err := tb.Get(name)
	if err != nil {
		t.Fatalf("%v", err)
	}
	d := dut.New(p)
	if err := d.Connect(); err != nil {
		t.Skipf("skipping %s: %v", name, err)
	}
	t.Cleanup(func() { d.Disconnect() })
	return d
}

func e2eContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

func TestE2E_ConnectAllDevices(t *testing.T) {
	tb := loadTestbed(t)
	ctx := e2eContext(t)

	for _, name := range tb.Names() {
		t.Run(name, func(t *testing.T) {
			d := connect(t, tb, name)
			res, err := d.Run(ctx, "show version")
			if err != nil {
				t.Fatalf("show version: %v", err)
			}
			if res.Failed() {
				t.Fatalf("show version exited %d: %s", res.ExitCode, res.Output)
			}
			t.Logf("%s: %.60s", name, res.Output)
		})
	}
}

func TestE2E_VLANLifecycle(t *testing.T) {
	tb := loadTestbed(t)
	ctx := e2eContext(t)

	for _, name := range tb.Names() {
		t.Run(name, func(t *testing.T) {
			d := connect(t, tb, name)

			// Sweep first so a leftover VLAN from an aborted run cannot
			// skew the create below.
			if _, err := vlan.Cleanup(ctx, d, testVLAN); err != nil {
				t.Fatalf("pretest cleanup: %v", err)
			}

			if _, err := vlan.Create(ctx, d, testVLAN); err != nil {
				t.Fatalf("create: %v", err)
			}
			defer func() {
				if rep, err := vlan.Cleanup(ctx, d, testVLAN); err != nil {
					t.Errorf("posttest cleanup: %v", err)
				} else {
					for _, w := range rep.Warnings {
						t.Logf("cleanup warning: %s", w)
					}
				}
			}()

			if err := vlan.Verify(ctx, d, testVLAN, ""); err != nil {
				t.Fatalf("verify after create: %v", err)
			}

			p, _ := tb.Get(name)
			if len(p.Ports) == 0 {
				t.Log("no ports in profile, skipping membership")
				return
			}
			port := p.Ports[0]
			if _, err := vlan.AddAccessMember(ctx, d, testVLAN, port); err != nil {
				t.Fatalf("add member %s: %v", port, err)
			}
			if err := vlan.Verify(ctx, d, testVLAN, port); err != nil {
				t.Fatalf("verify member %s: %v", port, err)
			}
			if _, err := vlan.RemoveAccessMember(ctx, d, testVLAN, port); err != nil {
				t.Fatalf("remove member %s: %v", port, err)
			}
		})
	}
}

func TestE2E_ConfigDBReflectsVLAN(t *testing.T) {
	tb := loadTestbed(t)
	ctx := e2eContext(t)

	for _, name := range tb.Names() {
		t.Run(name, func(t *testing.T) {
			d := connect(t, tb, name)

			if _, err := vlan.Create(ctx, d, testVLAN); err != nil {
				t.Fatalf("create: %v", err)
			}
			defer vlan.Cleanup(ctx, d, testVLAN)

			db, err := d.OpenConfigDB(ctx)
			if err != nil {
				t.Skipf("config db not reachable: %v", err)
			}
			defer db.Close()

			ok, err := db.HasVLAN(ctx, testVLAN)
			if err != nil {
				t.Fatalf("HasVLAN: %v", err)
			}
			if !ok {
				t.Errorf("Vlan%d not in CONFIG_DB after create", testVLAN)
			}
		})
	}
}

func TestE2E_PingLoopback(t *testing.T) {
	tb := loadTestbed(t)
	ctx := e2eContext(t)

	for _, name := range tb.Names() {
		t.Run(name, func(t *testing.T) {
			d := connect(t, tb, name)
			o, err := ping.Check(ctx, d, ping.Spec{Dest: "127.0.0.1", Count: 2}, true)
			if err != nil {
				t.Fatalf("ping loopback: %v (loss %d%%)", err, o.Loss)
			}
		})
	}
}
