// Package dut manages the SSH command channel to a device under test and
// the supporting access paths layered on it (redis tunnel, CONFIG_DB client).
package dut

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/lantest-net/lantest/pkg/testbed"
	"github.com/lantest-net/lantest/pkg/util"
)

// Result is the outcome of one remote command. Output is the combined
// stdout+stderr stream, which is what CLI parsers consume.
type Result struct {
	Command  string
	Output   string
	ExitCode int
}

// Failed reports whether the remote command exited non-zero.
func (r Result) Failed() bool { return r.ExitCode != 0 }

// CommandRunner is the remote execution surface the higher layers depend on.
// *DUT implements it for real devices; tests substitute scripted fakes.
type CommandRunner interface {
	Run(ctx context.Context, cmd string) (Result, error)
	RunSudo(ctx context.Context, cmd string) (Result, error)
	Name() string
	Dialect() testbed.Dialect
}

// DUT is a live SSH connection to one device under test. Sessions are
// created per command; the underlying connection is shared and safe for
// concurrent use.
type DUT struct {
	profile *testbed.Profile

	mu     sync.Mutex
	client *ssh.Client
	tunnel *Tunnel
}

// New returns an unconnected DUT for the given profile.
func New(p *testbed.Profile) *DUT {
	return &DUT{profile: p}
}

// Name returns the testbed device name.
func (d *DUT) Name() string { return d.profile.Name }

// Dialect returns the CLI vocabulary the device speaks.
func (d *DUT) Dialect() testbed.Dialect { return d.profile.CLI }

// Profile returns the testbed profile this DUT was built from.
func (d *DUT) Profile() *testbed.Profile { return d.profile }

// Connect dials the device. Host key verification is disabled; this runs
// against lab devices that are reimaged frequently.
func (d *DUT) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return nil
	}

	config := &ssh.ClientConfig{
		User: d.profile.Connection.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(d.profile.Connection.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	addr := d.profile.Addr()
	util.WithDevice(d.profile.Name).Debugf("SSH dial %s@%s", config.User, addr)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("SSH dial %s@%s: %w", config.User, addr, err)
	}
	d.client = client
	return nil
}

// Disconnect closes the tunnel (if open) and the SSH connection.
func (d *DUT) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tunnel != nil {
		d.tunnel.Close()
		d.tunnel = nil
	}
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// Connected reports whether the SSH connection is up.
func (d *DUT) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client != nil
}

func (d *DUT) sshClient() (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil, fmt.Errorf("device %s: %w", d.profile.Name, util.ErrNotConnected)
	}
	return d.client, nil
}

// Run executes a command on the device. The SSH session is created
// per-call. If ctx is cancelled the session is killed and the partial
// output is returned with the context error.
func (d *DUT) Run(ctx context.Context, cmd string) (Result, error) {
	client, err := d.sshClient()
	if err != nil {
		return Result{Command: cmd}, err
	}

	session, err := client.NewSession()
	if err != nil {
		return Result{Command: cmd}, fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var outputBuf bytes.Buffer
	session.Stdout = &outputBuf
	session.Stderr = &outputBuf

	if err := session.Start(cmd); err != nil {
		return Result{Command: cmd}, fmt.Errorf("SSH start '%s': %w", cmd, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return Result{Command: cmd, Output: outputBuf.String(), ExitCode: -1},
			fmt.Errorf("SSH exec '%s': %w", cmd, ctx.Err())
	case err := <-done:
		res := Result{Command: cmd, Output: outputBuf.String()}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				// Non-zero exit is data, not a transport failure.
				res.ExitCode = exitErr.ExitStatus()
				return res, nil
			}
			res.ExitCode = -1
			return res, fmt.Errorf("SSH exec '%s': %w", cmd, err)
		}
		return res, nil
	}
}

// RunSudo executes a command under sudo, feeding the login password on
// stdin so the device needs no NOPASSWD configuration. The logged command
// line masks the password.
func (d *DUT) RunSudo(ctx context.Context, cmd string) (Result, error) {
	wrapped := sudoWrap(cmd, d.profile.Connection.Password)
	res, err := d.Run(ctx, wrapped)
	res.Command = "sudo " + cmd
	return res, err
}

// sudoWrap builds "echo '<pw>' | sudo -S -p '' <cmd>" with the password
// single-quote escaped so shell metacharacters in it are inert.
func sudoWrap(cmd, password string) string {
	return fmt.Sprintf("echo %s | sudo -S -p '' %s", shellQuote(password), cmd)
}

// shellQuote wraps s in single quotes, escaping embedded single quotes
// with the '\'' idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
