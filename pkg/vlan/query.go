package vlan

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/lantest-net/lantest/pkg/dut"
)

// Record is one VLAN row from the device's show output.
type Record struct {
	ID      int
	Members []string
}

// QueryResult carries either structured rows or the raw show output.
// Structured distinguishes the variants explicitly; Records may be a
// legitimately empty slice when the device reports no VLANs at all.
type QueryResult struct {
	Structured bool
	Records    []Record
	Raw        string
}

// Has reports whether the VLAN appears in the result, scanning the raw
// text when structured parsing failed.
func (q QueryResult) Has(vid int) bool { return exists(q, vid) }

// Find returns the record for a VLAN id, if the result is structured and
// the row is present.
func (q QueryResult) Find(vid int) (Record, bool) {
	if !q.Structured {
		return Record{}, false
	}
	for _, r := range q.Records {
		if r.ID == vid {
			return r, true
		}
	}
	return Record{}, false
}

// vlanLabelRe matches the "Vlan123" form of a VLAN id in show output.
var vlanLabelRe = regexp.MustCompile(`^Vlan(\d{1,4})$`)

// portRe matches physical port names as they appear in member columns.
var portRe = regexp.MustCompile(`^(Ethernet|PortChannel|Eth)\d`)

// Query runs the dialect's show command and attempts a structured parse.
// Parse failure is not an error; the caller gets the raw text variant.
func Query(ctx context.Context, d dut.CommandRunner, vid int) (QueryResult, error) {
	res, err := d.Run(ctx, dialectFor(d.Dialect()).ShowVLANs().Line)
	if err != nil {
		return QueryResult{}, err
	}
	return ParseShowVLANs(res.Output), nil
}

// ParseShowVLANs extracts VLAN rows from show output. Both dialect
// layouts are line oriented: each row carries a VLAN id (either a bare
// number or a "Vlan<id>" label) followed by member ports, possibly
// comma separated, with continuation lines carrying ports only. When no
// row can be extracted the raw text is returned instead so verification
// can fall back to substring scanning.
func ParseShowVLANs(output string) QueryResult {
	var records []Record
	byID := make(map[int]int) // indexes into records; appends reallocate
	last := -1

	for _, line := range strings.Split(output, "\n") {
		line = strings.Trim(line, " \t\r|+-")
		if line == "" {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '|'
		})

		rowID := -1
		var ports []string
		for i, f := range fields {
			if rowID < 0 {
				if m := vlanLabelRe.FindStringSubmatch(f); m != nil {
					rowID, _ = strconv.Atoi(m[1])
					continue
				}
				// A bare VID only counts at the start of the row,
				// otherwise numeric columns like MTU would match.
				if i == 0 {
					if n, err := strconv.Atoi(f); err == nil && n >= 1 && n <= 4094 {
						rowID = n
						continue
					}
				}
			}
			for _, p := range strings.Split(f, ",") {
				if portRe.MatchString(p) {
					ports = append(ports, p)
				}
			}
		}

		switch {
		case rowID >= 0:
			if i, ok := byID[rowID]; ok {
				records[i].Members = append(records[i].Members, ports...)
				last = i
			} else {
				records = append(records, Record{ID: rowID, Members: ports})
				byID[rowID] = len(records) - 1
				last = len(records) - 1
			}
		case last >= 0 && len(ports) > 0:
			// Continuation line: ports wrapped under the previous row.
			records[last].Members = append(records[last].Members, ports...)
		}
	}

	if len(records) == 0 {
		return QueryResult{Raw: output}
	}
	return QueryResult{Structured: true, Records: records, Raw: output}
}

// lineHasVLAN reports whether a raw output line mentions the VLAN.
// The "Vlan<id>" label counts anywhere; a bare id token only in the
// leading column, where both table layouts put it. Token comparison,
// not substring: "Vlan55" must not match VLAN 5, and a count or MTU
// column must not match either.
func lineHasVLAN(line string, vid int) bool {
	label := "Vlan" + strconv.Itoa(vid)
	bare := strconv.Itoa(vid)
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '|'
	})
	for i, f := range fields {
		if f == label {
			return true
		}
		if i == 0 && f == bare {
			return true
		}
	}
	return false
}

// members returns the member ports of a VLAN, using the structured rows
// when available and the raw-text scan from the original line format
// otherwise.
func members(q QueryResult, vid int) []string {
	if rec, ok := q.Find(vid); ok {
		return rec.Members
	}
	var out []string
	for _, line := range strings.Split(q.Raw, "\n") {
		if !lineHasVLAN(line, vid) {
			continue
		}
		for _, f := range strings.Fields(line) {
			for _, p := range strings.Split(f, ",") {
				if portRe.MatchString(p) {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// exists reports whether the VLAN appears in the query result at all.
func exists(q QueryResult, vid int) bool {
	if q.Structured {
		_, ok := q.Find(vid)
		return ok
	}
	for _, line := range strings.Split(q.Raw, "\n") {
		if lineHasVLAN(line, vid) {
			return true
		}
	}
	return false
}
