package testbed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lantest-net/lantest/pkg/util"
)

func writeTestbed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testbed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing testbed file: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeTestbed(t, `
devices:
  D1:
    connection_params:
      ip: 10.0.0.1
      username: admin
      password: secret
    cli: klish
    snmp_community: public
    ports: [Ethernet4, Ethernet8]
  D2:
    connection_params:
      ip: 10.0.0.2
      username: admin
      password: secret
      port: 2222
    cli: click
`)

	tb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	d1, err := tb.Get("D1")
	if err != nil {
		t.Fatalf("Get(D1) error: %v", err)
	}
	if d1.Name != "D1" {
		t.Errorf("Name = %q, want D1", d1.Name)
	}
	if d1.Connection.Port != 22 {
		t.Errorf("default port = %d, want 22", d1.Connection.Port)
	}
	if d1.CLI != DialectKlish {
		t.Errorf("CLI = %q, want klish", d1.CLI)
	}
	if d1.Addr() != "10.0.0.1:22" {
		t.Errorf("Addr() = %q, want 10.0.0.1:22", d1.Addr())
	}
	if len(d1.Ports) != 2 {
		t.Errorf("Ports = %v, want 2 entries", d1.Ports)
	}

	d2, _ := tb.Get("D2")
	if d2.Connection.Port != 2222 {
		t.Errorf("explicit port = %d, want 2222", d2.Connection.Port)
	}
	if d2.CLI != DialectClick {
		t.Errorf("CLI = %q, want click", d2.CLI)
	}
}

func TestLoadDefaultsDialect(t *testing.T) {
	path := writeTestbed(t, `
devices:
  D1:
    connection_params:
      ip: 10.0.0.1
      username: admin
      password: secret
`)
	tb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	d1, _ := tb.Get("D1")
	if d1.CLI != DialectKlish {
		t.Errorf("default CLI = %q, want klish", d1.CLI)
	}
}

func TestLoadMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "missing ip",
			content: `
devices:
  D1:
    connection_params:
      username: admin
      password: secret
`,
			wantMsg: "connection_params.ip is required",
		},
		{
			name: "missing username",
			content: `
devices:
  D1:
    connection_params:
      ip: 10.0.0.1
      password: secret
`,
			wantMsg: "connection_params.username is required",
		},
		{
			name: "bad dialect",
			content: `
devices:
  D1:
    connection_params:
      ip: 10.0.0.1
      username: admin
      password: secret
    cli: vtysh
`,
			wantMsg: "unknown cli dialect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestbed(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("error does not unwrap to ErrValidationFailed: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestMissingPasswords(t *testing.T) {
	path := writeTestbed(t, `
devices:
  D1:
    connection_params: {ip: 10.0.0.1, username: admin}
  D2:
    connection_params: {ip: 10.0.0.2, username: admin, password: secret}
  D3:
    connection_params: {ip: 10.0.0.3, username: admin}
`)
	tb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := tb.MissingPasswords()
	if len(got) != 2 || got[0] != "D1" || got[1] != "D3" {
		t.Errorf("MissingPasswords() = %v, want [D1 D3]", got)
	}
}

func TestLoadEmptyDevices(t *testing.T) {
	path := writeTestbed(t, "devices: {}\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded, want error for empty devices")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() succeeded, want error for missing file")
	}
}

func TestGetUnknownDevice(t *testing.T) {
	path := writeTestbed(t, `
devices:
  D1:
    connection_params:
      ip: 10.0.0.1
      username: admin
      password: secret
`)
	tb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	_, err = tb.Get("D9")
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Get(D9) = %v, want ErrNotFound", err)
	}
}

func TestNamesSorted(t *testing.T) {
	path := writeTestbed(t, `
devices:
  D2:
    connection_params: {ip: 10.0.0.2, username: a, password: b}
  D1:
    connection_params: {ip: 10.0.0.1, username: a, password: b}
`)
	tb, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	names := tb.Names()
	if len(names) != 2 || names[0] != "D1" || names[1] != "D2" {
		t.Errorf("Names() = %v, want [D1 D2]", names)
	}
}
