package vlan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lantest-net/lantest/internal/testutil"
	"github.com/lantest-net/lantest/pkg/testbed"
	"github.com/lantest-net/lantest/pkg/util"
)

const klishShow = "sonic-cli -c 'show vlan'"

func TestCreateClick(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectClick)
	r, err := Create(context.Background(), f, 10)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if got := f.History(); len(got) != 1 || got[0] != "sudo config vlan add 10" {
		t.Errorf("history = %v", got)
	}
	if r.CommandText() == "" {
		t.Error("report carries no command text")
	}
}

func TestCreateKlish(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	if _, err := Create(context.Background(), f, 10); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	got := f.History()
	if len(got) != 1 || !strings.Contains(got[0], "-c 'vlan 10'") {
		t.Errorf("history = %v", got)
	}
	if !strings.HasPrefix(got[0], "sonic-cli -c 'configure terminal'") {
		t.Errorf("klish command not wrapped in configure terminal: %q", got[0])
	}
}

func TestAddAccessMemberFlushesAddressFirst(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectClick)
	if _, err := AddAccessMember(context.Background(), f, 10, "Ethernet4"); err != nil {
		t.Fatalf("AddAccessMember() error: %v", err)
	}
	got := f.History()
	if len(got) != 2 {
		t.Fatalf("history = %v, want 2 commands", got)
	}
	if got[0] != "sudo ip addr flush dev Ethernet4" {
		t.Errorf("first command = %q, want address flush", got[0])
	}
	if got[1] != "sudo config vlan member add -u 10 Ethernet4" {
		t.Errorf("second command = %q, want member add", got[1])
	}
}

func TestAddAccessMemberKlishOrder(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	if _, err := AddAccessMember(context.Background(), f, 10, "Ethernet4"); err != nil {
		t.Fatalf("AddAccessMember() error: %v", err)
	}
	got := f.History()
	if len(got) != 2 {
		t.Fatalf("history = %v, want 2 commands", got)
	}
	if !strings.Contains(got[0], "'no ip address'") {
		t.Errorf("first command = %q, want address removal", got[0])
	}
	if !strings.Contains(got[1], "'switchport access vlan 10'") {
		t.Errorf("second command = %q, want switchport access", got[1])
	}
}

func TestCommandFailureSurfacesOutput(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectClick)
	f.On("sudo config vlan add 10", testutil.Reply{Output: "Error: Vlan10 doesn't satisfy naming", ExitCode: 2})
	_, err := Create(context.Background(), f, 10)
	if err == nil {
		t.Fatal("Create() succeeded, want error on non-zero exit")
	}
	if !strings.Contains(err.Error(), "doesn't satisfy naming") {
		t.Errorf("error %q does not carry device output", err)
	}
}

func TestDeleteRefusesWithMembers(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectClick)
	f.On("show vlan brief", testutil.Reply{Output: "|  10 |  | Ethernet4 | untagged |"})
	_, err := Delete(context.Background(), f, 10)
	if !errors.Is(err, util.ErrPreconditionFailed) {
		t.Fatalf("Delete() = %v, want precondition error", err)
	}
	if f.Ran("config vlan del") {
		t.Error("delete command issued despite remaining members")
	}
}

func TestDeleteWithoutMembers(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectClick)
	f.On("show vlan brief", testutil.Reply{Output: "|  10 |  |  |  |"})
	if _, err := Delete(context.Background(), f, 10); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if !f.Ran("sudo config vlan del 10") {
		t.Error("delete command not issued")
	}
}

func TestCleanupAbsentVLANIsNoop(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.On(klishShow, testutil.Reply{Output: "NUM  Status  Q Ports\n"})
	r, err := Cleanup(context.Background(), f, 10)
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", r.Warnings)
	}
	if got := f.History(); len(got) != 1 {
		t.Errorf("history = %v, want only the show query", got)
	}
}

func TestCleanupOrdering(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnSeq(klishShow,
		testutil.Reply{Output: "NUM  Status  Q Ports\n10   Active  A  Ethernet4\n"},
		testutil.Reply{Output: "NUM  Status  Q Ports\n"})
	r, err := Cleanup(context.Background(), f, 10)
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", r.Warnings)
	}

	got := f.History()
	if len(got) != 6 {
		t.Fatalf("history = %v, want show + 4 config commands + re-query", got)
	}
	checks := []struct {
		idx   int
		frags []string
	}{
		{1, []string{"'shutdown'", "'no ip address'"}},
		{2, []string{"'no switchport access vlan'"}},
		{3, []string{"'no interface Vlan10'"}},
		{4, []string{"'no vlan 10'"}},
	}
	for _, c := range checks {
		for _, frag := range c.frags {
			if !strings.Contains(got[c.idx], frag) {
				t.Errorf("command %d = %q, want fragment %q", c.idx, got[c.idx], frag)
			}
		}
	}
	if got[5] != klishShow {
		t.Errorf("last command = %q, want re-query after delete", got[5])
	}
}

func TestCleanupShutsDownSVIBeforeAddressRemoval(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnSeq(klishShow,
		testutil.Reply{Output: "10   Active  A  Ethernet4\n"},
		testutil.Reply{Output: ""})
	if _, err := Cleanup(context.Background(), f, 10); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	got := f.History()
	want := "sonic-cli -c 'configure terminal' -c 'interface Vlan10' -c 'shutdown' -c 'no ip address' -c 'exit' -c 'exit'"
	if got[1] != want {
		t.Errorf("SVI teardown = %q, want %q", got[1], want)
	}
}

func TestCleanupWarnsWhenVLANPersists(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.On(klishShow, testutil.Reply{Output: "NUM  Status  Q Ports\n10   Active  A  Ethernet4\n"})

	r, err := Cleanup(context.Background(), f, 10)
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "still present") {
		t.Errorf("warning = %q, want persistence notice", r.Warnings[0])
	}
	got := f.History()
	if got[len(got)-1] != klishShow {
		t.Errorf("last command = %q, want re-query", got[len(got)-1])
	}
}

func TestCleanupToleratesSubstepFailures(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	f.OnSeq(klishShow,
		testutil.Reply{Output: "10   Active  A  Ethernet4\n"},
		testutil.Reply{Output: ""})
	detach := "sonic-cli -c 'configure terminal' -c 'interface Ethernet4' -c 'no switchport access vlan' -c 'exit' -c 'exit'"
	f.On(detach, testutil.Reply{Output: "%Error: port not a member", ExitCode: 1})

	r, err := Cleanup(context.Background(), f, 10)
	if err != nil {
		t.Fatalf("Cleanup() error: %v, sub-step failures must not propagate", err)
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "detach Ethernet4") {
		t.Errorf("warning = %q, want detach context", r.Warnings[0])
	}
	if !f.Ran("'no vlan 10'") {
		t.Error("VLAN delete skipped after tolerated failure")
	}
}

func TestStaticRoutes(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	if _, err := AddStaticRoute(context.Background(), f, "192.168.20.0/24", "192.168.100.2"); err != nil {
		t.Fatalf("AddStaticRoute() error: %v", err)
	}
	if !f.Ran("'ip route 192.168.20.0/24 192.168.100.2'") {
		t.Errorf("history = %v", f.History())
	}
	if _, err := RemoveStaticRoute(context.Background(), f, "192.168.20.0/24", "192.168.100.2"); err != nil {
		t.Fatalf("RemoveStaticRoute() error: %v", err)
	}
	if !f.Ran("'no ip route 192.168.20.0/24 192.168.100.2'") {
		t.Errorf("history = %v", f.History())
	}
}

func TestConfigureSVIKlish(t *testing.T) {
	f := testutil.NewFakeRunner("D1", testbed.DialectKlish)
	if _, err := ConfigureSVI(context.Background(), f, 10, "192.168.10.1/24"); err != nil {
		t.Fatalf("ConfigureSVI() error: %v", err)
	}
	got := f.History()
	if len(got) != 1 {
		t.Fatalf("history = %v, want single batched command", got)
	}
	for _, frag := range []string{"'vlan 10'", "'interface Vlan10'", "'no shutdown'", "'ip address 192.168.10.1/24'"} {
		if !strings.Contains(got[0], frag) {
			t.Errorf("command %q missing fragment %q", got[0], frag)
		}
	}
}
