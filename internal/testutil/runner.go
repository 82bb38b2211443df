// Package testutil provides scripted fakes for unit tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lantest-net/lantest/pkg/dut"
	"github.com/lantest-net/lantest/pkg/testbed"
)

// Reply is a canned response for one command.
type Reply struct {
	Output   string
	ExitCode int
	Err      error
}

// FakeRunner is a scripted dut.CommandRunner. Commands are matched first
// by exact string, then by registered prefix. Unmatched commands succeed
// with empty output, so tests only script what they assert on.
type FakeRunner struct {
	DeviceName string
	CLI        testbed.Dialect

	mu       sync.Mutex
	exact    map[string]Reply
	seq      map[string][]Reply
	prefixes []prefixReply
	history  []string
}

type prefixReply struct {
	prefix string
	reply  Reply
}

// NewFakeRunner returns a fake for the given device name and dialect.
func NewFakeRunner(name string, cli testbed.Dialect) *FakeRunner {
	return &FakeRunner{
		DeviceName: name,
		CLI:        cli,
		exact:      make(map[string]Reply),
	}
}

// On registers an exact-match reply.
func (f *FakeRunner) On(cmd string, r Reply) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[cmd] = r
	return f
}

// OnSeq registers exact-match replies consumed one per invocation, in
// order; the last reply repeats once the sequence is exhausted. Used
// when a command's output must change between calls, e.g. a show that
// reflects intervening configuration.
func (f *FakeRunner) OnSeq(cmd string, rs ...Reply) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq == nil {
		f.seq = make(map[string][]Reply)
	}
	f.seq[cmd] = append(f.seq[cmd], rs...)
	return f
}

// OnPrefix registers a prefix-match reply. Prefixes are tried in
// registration order after exact matches.
func (f *FakeRunner) OnPrefix(prefix string, r Reply) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefixReply{prefix: prefix, reply: r})
	return f
}

// History returns every command run, in order, sudo commands included.
func (f *FakeRunner) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

// Ran reports whether any executed command contains substr.
func (f *FakeRunner) Ran(substr string) bool {
	for _, cmd := range f.History() {
		if strings.Contains(cmd, substr) {
			return true
		}
	}
	return false
}

func (f *FakeRunner) Name() string             { return f.DeviceName }
func (f *FakeRunner) Dialect() testbed.Dialect { return f.CLI }

func (f *FakeRunner) Run(ctx context.Context, cmd string) (dut.Result, error) {
	if err := ctx.Err(); err != nil {
		return dut.Result{Command: cmd}, err
	}

	f.mu.Lock()
	f.history = append(f.history, cmd)
	r, ok := Reply{}, false
	if rs := f.seq[cmd]; len(rs) > 0 {
		r, ok = rs[0], true
		if len(rs) > 1 {
			f.seq[cmd] = rs[1:]
		}
	}
	if !ok {
		r, ok = f.exact[cmd]
	}
	if !ok {
		for _, p := range f.prefixes {
			if strings.HasPrefix(cmd, p.prefix) {
				r, ok = p.reply, true
				break
			}
		}
	}
	f.mu.Unlock()

	res := dut.Result{Command: cmd, Output: r.Output, ExitCode: r.ExitCode}
	if r.Err != nil {
		return res, fmt.Errorf("%s: %w", cmd, r.Err)
	}
	return res, nil
}

func (f *FakeRunner) RunSudo(ctx context.Context, cmd string) (dut.Result, error) {
	res, err := f.Run(ctx, "sudo "+cmd)
	return res, err
}
