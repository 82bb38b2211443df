// Package counters reads interface counters from a device, either by
// parsing the CLI counters table or over SNMP.
package counters

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lantest-net/lantest/pkg/dut"
)

// Counters is one interface counter snapshot.
type Counters struct {
	RxOK  uint64
	TxOK  uint64
	RxErr uint64
	TxErr uint64
}

// Delta returns c minus earlier, for traffic measurements across a test
// body. Counter wrap is not handled; these are 64-bit counters.
func (c Counters) Delta(earlier Counters) Counters {
	return Counters{
		RxOK:  c.RxOK - earlier.RxOK,
		TxOK:  c.TxOK - earlier.TxOK,
		RxErr: c.RxErr - earlier.RxErr,
		TxErr: c.TxErr - earlier.TxErr,
	}
}

// Clean reports whether the snapshot carries no error counts.
func (c Counters) Clean() bool { return c.RxErr == 0 && c.TxErr == 0 }

var (
	bytesInRe  = regexp.MustCompile(`(\d+) bytes input`)
	bytesOutRe = regexp.MustCompile(`(\d+) bytes output`)

	// Rate columns print as "9.37 KB/s"; the unit is a separate token
	// that would shift every following column off the header.
	rateUnitRe = regexp.MustCompile(`^[KMGT]?B/s$`)
)

func rowFields(line string) []string {
	raw := strings.Fields(line)
	fields := raw[:0]
	for _, f := range raw {
		if rateUnitRe.MatchString(f) {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// ReadCLI runs "show interfaces counters <port>" and parses the row for
// the port out of the column-aligned table.
func ReadCLI(ctx context.Context, d dut.CommandRunner, port string) (Counters, error) {
	res, err := d.Run(ctx, "show interfaces counters "+port)
	if err != nil {
		return Counters{}, err
	}
	return ParseTable(res.Output, port)
}

// ParseTable extracts the counters row for port from the CLI table. The
// header names the columns; values may carry thousands separators.
func ParseTable(output, port string) (Counters, error) {
	var header []string
	for _, line := range strings.Split(output, "\n") {
		fields := rowFields(line)
		if len(fields) == 0 {
			continue
		}
		if header == nil {
			if fields[0] == "IFACE" {
				header = fields
			}
			continue
		}
		if fields[0] != port {
			continue
		}
		if len(fields) < len(header) {
			return Counters{}, fmt.Errorf("counters row for %s has %d columns, header has %d",
				port, len(fields), len(header))
		}
		var c Counters
		for i, name := range header {
			var dst *uint64
			switch name {
			case "RX_OK":
				dst = &c.RxOK
			case "TX_OK":
				dst = &c.TxOK
			case "RX_ERR":
				dst = &c.RxErr
			case "TX_ERR":
				dst = &c.TxErr
			default:
				continue
			}
			v, err := strconv.ParseUint(strings.ReplaceAll(fields[i], ",", ""), 10, 64)
			if err != nil {
				return Counters{}, fmt.Errorf("counters column %s for %s: %q", name, port, fields[i])
			}
			*dst = v
		}
		return c, nil
	}
	if header == nil {
		return Counters{}, fmt.Errorf("no counters header in output for %s", port)
	}
	return Counters{}, fmt.Errorf("no counters row for %s", port)
}

// ReadBytes runs "show interfaces <port>" and extracts the byte-level
// input/output totals, used for bandwidth deltas.
func ReadBytes(ctx context.Context, d dut.CommandRunner, port string) (in, out uint64, err error) {
	res, err := d.Run(ctx, "show interfaces "+port)
	if err != nil {
		return 0, 0, err
	}
	if m := bytesInRe.FindStringSubmatch(res.Output); m != nil {
		in, _ = strconv.ParseUint(m[1], 10, 64)
	}
	if m := bytesOutRe.FindStringSubmatch(res.Output); m != nil {
		out, _ = strconv.ParseUint(m[1], 10, 64)
	}
	return in, out, nil
}
