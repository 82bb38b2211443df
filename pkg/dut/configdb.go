package dut

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

// configDBIndex is the redis database number CONFIG_DB lives in on SONiC.
const configDBIndex = 4

// ConfigDB is a read-only client for the device's CONFIG_DB, reached
// through the SSH redis tunnel. It is the out-of-band verification path:
// CLI operations are cross-checked against the state the config daemon
// actually committed.
type ConfigDB struct {
	rdb *redis.Client
}

// OpenConfigDB opens the redis tunnel (if not already open) and returns a
// CONFIG_DB client pointed at it.
func (d *DUT) OpenConfigDB(ctx context.Context) (*ConfigDB, error) {
	t, err := d.OpenTunnel()
	if err != nil {
		return nil, err
	}
	c := &ConfigDB{
		rdb: redis.NewClient(&redis.Options{
			Addr: t.LocalAddr(),
			DB:   configDBIndex,
		}),
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.rdb.Close()
		return nil, fmt.Errorf("CONFIG_DB ping via %s: %w", t.LocalAddr(), err)
	}
	return c, nil
}

// Close releases the redis connection. The tunnel stays open for reuse.
func (c *ConfigDB) Close() error {
	return c.rdb.Close()
}

// GetEntry returns the field map for "TABLE|key", or nil if absent.
func (c *ConfigDB) GetEntry(ctx context.Context, table, key string) (map[string]string, error) {
	fields, err := c.rdb.HGetAll(ctx, table+"|"+key).Result()
	if err != nil {
		return nil, fmt.Errorf("HGETALL %s|%s: %w", table, key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// Exists reports whether "TABLE|key" is present.
func (c *ConfigDB) Exists(ctx context.Context, table, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, table+"|"+key).Result()
	if err != nil {
		return false, fmt.Errorf("EXISTS %s|%s: %w", table, key, err)
	}
	return n > 0, nil
}

// TableKeys returns all keys in a table, with the "TABLE|" prefix
// stripped, sorted.
func (c *ConfigDB) TableKeys(ctx context.Context, table string) ([]string, error) {
	prefix := table + "|"
	raw, err := c.scanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

// scanKeys collects keys matching pattern using cursor-based SCAN, which
// does not block redis the way KEYS does.
func (c *ConfigDB) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("SCAN %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// HasVLAN reports whether the VLAN table has an entry for the VLAN id.
func (c *ConfigDB) HasVLAN(ctx context.Context, vid int) (bool, error) {
	return c.Exists(ctx, "VLAN", fmt.Sprintf("Vlan%d", vid))
}

// VLANMembers returns the ports in the VLAN_MEMBER table for a VLAN id
// with their tagging mode, keyed by port name.
func (c *ConfigDB) VLANMembers(ctx context.Context, vid int) (map[string]string, error) {
	prefix := fmt.Sprintf("VLAN_MEMBER|Vlan%d|", vid)
	raw, err := c.scanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	members := make(map[string]string, len(raw))
	for _, key := range raw {
		port := strings.TrimPrefix(key, prefix)
		fields, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("HGETALL %s: %w", key, err)
		}
		members[port] = fields["tagging_mode"]
	}
	return members, nil
}

// HasVLANInterface reports whether the SVI for a VLAN id exists in the
// VLAN_INTERFACE table.
func (c *ConfigDB) HasVLANInterface(ctx context.Context, vid int) (bool, error) {
	return c.Exists(ctx, "VLAN_INTERFACE", fmt.Sprintf("Vlan%d", vid))
}

// VLANInterfaceIPs returns the CIDR addresses bound to an SVI. SONiC keys
// them as "VLAN_INTERFACE|Vlan<id>|<addr>/<len>".
func (c *ConfigDB) VLANInterfaceIPs(ctx context.Context, vid int) ([]string, error) {
	prefix := fmt.Sprintf("VLAN_INTERFACE|Vlan%d|", vid)
	raw, err := c.scanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(raw))
	for _, key := range raw {
		ips = append(ips, strings.TrimPrefix(key, prefix))
	}
	sort.Strings(ips)
	return ips, nil
}
