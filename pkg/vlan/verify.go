package vlan

import (
	"context"
	"fmt"
	"strings"

	"github.com/lantest-net/lantest/pkg/dut"
)

// VerifyError reports a verification mismatch between requested and
// observed VLAN state.
type VerifyError struct {
	Device string
	VLAN   int
	Port   string
	Reason string
}

func (e *VerifyError) Error() string {
	msg := fmt.Sprintf("%s: Vlan%d verification failed: %s", e.Device, e.VLAN, e.Reason)
	if e.Port != "" {
		msg += fmt.Sprintf(" (port %s)", e.Port)
	}
	return msg
}

// Verify checks that the VLAN exists on the device and, when port is
// non-empty, that the port is a member. The structured query rows are
// authoritative when available; otherwise the raw show output is scanned
// for the VLAN label and port name.
func Verify(ctx context.Context, d dut.CommandRunner, vid int, port string) error {
	q, err := Query(ctx, d, vid)
	if err != nil {
		return err
	}

	if q.Structured {
		rec, ok := q.Find(vid)
		if !ok {
			return &VerifyError{Device: d.Name(), VLAN: vid, Reason: "not present in parsed output"}
		}
		if port == "" {
			return nil
		}
		for _, m := range rec.Members {
			if m == port {
				return nil
			}
		}
		return &VerifyError{Device: d.Name(), VLAN: vid, Port: port,
			Reason: fmt.Sprintf("port not a member (members: %s)", strings.Join(rec.Members, ","))}
	}

	// Raw fallback: substring scan of the unparsed output.
	if !exists(q, vid) {
		return &VerifyError{Device: d.Name(), VLAN: vid, Reason: "not present in raw output"}
	}
	if port != "" && !strings.Contains(q.Raw, port) {
		return &VerifyError{Device: d.Name(), VLAN: vid, Port: port, Reason: "port not in raw output"}
	}
	return nil
}
