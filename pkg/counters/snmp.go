package counters

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	oidIfHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
)

// SNMPSource reads interface octet counters over SNMPv2c. It is the
// out-of-band counterpart to the CLI table, available when the testbed
// profile carries a community string.
type SNMPSource struct {
	client *gosnmp.GoSNMP

	// ifDescr -> ifIndex, resolved lazily on first use.
	indexes map[string]int
}

// NewSNMPSource connects to the device's SNMP agent.
func NewSNMPSource(host, community string) (*SNMPSource, error) {
	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   5 * time.Second,
		Retries:   1,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("SNMP connect %s: %w", host, err)
	}
	return &SNMPSource{client: client}, nil
}

// Close releases the SNMP socket.
func (s *SNMPSource) Close() error {
	return s.client.Conn.Close()
}

// resolveIndex walks ifDescr to find the ifIndex for a port name.
func (s *SNMPSource) resolveIndex(port string) (int, error) {
	if s.indexes == nil {
		s.indexes = make(map[string]int)
		err := s.client.BulkWalk(oidIfDescr, func(pdu gosnmp.SnmpPDU) error {
			descr := string(pdu.Value.([]byte))
			var idx int
			if _, err := fmt.Sscanf(pdu.Name[strings.LastIndex(pdu.Name, ".")+1:], "%d", &idx); err != nil {
				return nil
			}
			s.indexes[descr] = idx
			return nil
		})
		if err != nil {
			s.indexes = nil
			return 0, fmt.Errorf("SNMP ifDescr walk: %w", err)
		}
	}
	idx, ok := s.indexes[port]
	if !ok {
		return 0, fmt.Errorf("SNMP: no ifIndex for %s", port)
	}
	return idx, nil
}

// ReadOctets returns the 64-bit in/out octet counters for a port.
func (s *SNMPSource) ReadOctets(port string) (in, out uint64, err error) {
	idx, err := s.resolveIndex(port)
	if err != nil {
		return 0, 0, err
	}

	oids := []string{
		fmt.Sprintf("%s.%d", oidIfHCInOctets, idx),
		fmt.Sprintf("%s.%d", oidIfHCOutOctets, idx),
	}
	pkt, err := s.client.Get(oids)
	if err != nil {
		return 0, 0, fmt.Errorf("SNMP get %s: %w", port, err)
	}
	if len(pkt.Variables) != 2 {
		return 0, 0, fmt.Errorf("SNMP get %s: %d variables", port, len(pkt.Variables))
	}
	in = gosnmp.ToBigInt(pkt.Variables[0].Value).Uint64()
	out = gosnmp.ToBigInt(pkt.Variables[1].Value).Uint64()
	return in, out, nil
}
