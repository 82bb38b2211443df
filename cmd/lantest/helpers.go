package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/lantest-net/lantest/pkg/testbed"
)

// fillPasswords prompts for passwords the testbed omits. Without a
// terminal on stdin there is nothing to prompt on, so a missing
// password becomes a startup failure.
func fillPasswords(tb *testbed.Testbed) error {
	missing := tb.MissingPasswords()
	if len(missing) == 0 {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("testbed omits passwords for %v and stdin is not a terminal", missing)
	}

	for _, name := range missing {
		p, err := tb.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", p.Connection.Username, p.Connection.IP)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password for %s: %w", name, err)
		}
		if len(pw) == 0 {
			return fmt.Errorf("empty password for %s", name)
		}
		p.Connection.Password = string(pw)
	}
	return nil
}
