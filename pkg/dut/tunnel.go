package dut

import (
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/lantest-net/lantest/pkg/util"
)

// redisAddr is where redis listens inside a SONiC device. It carries no
// authentication and is not exposed outside the device, so CONFIG_DB
// access goes through an SSH port forward.
const redisAddr = "127.0.0.1:6379"

// Tunnel forwards a local TCP port to redis inside the device, reusing
// the DUT's existing SSH connection.
type Tunnel struct {
	localAddr string
	client    *ssh.Client
	listener  net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
}

// OpenTunnel starts a redis port forward over the DUT's SSH connection.
// The tunnel is cached; repeated calls return the same instance, and
// Disconnect closes it.
func (d *DUT) OpenTunnel() (*Tunnel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil, fmt.Errorf("device %s: %w", d.profile.Name, util.ErrNotConnected)
	}
	if d.tunnel != nil {
		return d.tunnel, nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("local listen: %w", err)
	}

	t := &Tunnel{
		localAddr: listener.Addr().String(),
		client:    d.client,
		listener:  listener,
		done:      make(chan struct{}),
	}
	t.wg.Add(1)
	go t.acceptLoop()

	util.WithDevice(d.profile.Name).Debugf("redis tunnel on %s", t.localAddr)
	d.tunnel = t
	return t, nil
}

// LocalAddr returns the local address (e.g. "127.0.0.1:54321") that
// forwards to redis inside the device.
func (t *Tunnel) LocalAddr() string { return t.localAddr }

// Close stops the listener and waits for forwarding goroutines. The SSH
// connection itself stays open; it belongs to the DUT.
func (t *Tunnel) Close() error {
	close(t.done)
	t.listener.Close()
	t.wg.Wait()
	return nil
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.client.Dial("tcp", redisAddr)
	if err != nil {
		return
	}
	defer remote.Close()

	var cp sync.WaitGroup
	cp.Add(2)
	go func() {
		defer cp.Done()
		io.Copy(remote, local)
	}()
	go func() {
		defer cp.Done()
		io.Copy(local, remote)
	}()
	cp.Wait()
}
