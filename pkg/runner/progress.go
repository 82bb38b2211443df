package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lantest-net/lantest/pkg/cli"
)

// ProgressReporter receives lifecycle callbacks during test execution.
type ProgressReporter interface {
	SuiteStart(scenarios []*Scenario)
	ScenarioStart(name string, index, total int)
	ScenarioEnd(result *ScenarioResult, index, total int)
	StepStart(scenario string, step *Step, index, total int)
	StepEnd(scenario string, result *StepResult, index, total int)
	SuiteEnd(results []*ScenarioResult, duration time.Duration)
}

// ConsoleProgress is an append-only terminal progress reporter.
// It never uses ANSI cursor rewriting, so output is safe for pipes, CI,
// and scrollback buffers.
type ConsoleProgress struct {
	W       io.Writer
	Verbose bool

	dotWidth int
}

// NewConsoleProgress creates a ConsoleProgress writing to stdout.
func NewConsoleProgress(verbose bool) *ConsoleProgress {
	return &ConsoleProgress{
		W:       os.Stdout,
		Verbose: verbose,
	}
}

func (p *ConsoleProgress) SuiteStart(scenarios []*Scenario) {
	if len(scenarios) == 0 {
		return
	}

	maxName := 0
	for _, s := range scenarios {
		if len(s.Name) > maxName {
			maxName = len(s.Name)
		}
	}
	p.dotWidth = maxName + 6

	fmt.Fprintf(p.W, "\nlantest: %d scenario(s)\n\n", len(scenarios))

	fmt.Fprintf(p.W, "  %-4s  %-*s  %s\n", "#", p.dotWidth-6, "SCENARIO", "STEPS")
	for i, s := range scenarios {
		fmt.Fprintf(p.W, "  %-4d  %-*s  %d\n", i+1, p.dotWidth-6, s.Name, len(s.Steps))
	}
	fmt.Fprintln(p.W)
}

func (p *ConsoleProgress) ScenarioStart(name string, index, total int) {
	if p.Verbose {
		fmt.Fprintf(p.W, "  [%d/%d]  %s\n", index+1, total, name)
	}
}

func (p *ConsoleProgress) ScenarioEnd(result *ScenarioResult, index, total int) {
	tag := fmt.Sprintf("[%d/%d]", index+1, total)

	if p.Verbose {
		if result.SetupError != nil {
			fmt.Fprintf(p.W, "          %s\n", cli.Dim(result.SetupError.Error()))
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(p.W, "          %s\n", cli.Yellow("warning: "+w))
		}
		fmt.Fprintf(p.W, "          %s  (%s)\n\n", p.colorStatus(result.Status), p.formatDuration(result.Duration))
		return
	}

	padded := cli.DotPad(result.Name, p.dotWidth)

	switch result.Status {
	case StepStatusSkipped:
		fmt.Fprintf(p.W, "  %-7s %s %s\n", tag, padded, cli.Yellow("SKIP"))
	case StepStatusPassed:
		fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, cli.Green("PASS"), p.formatDuration(result.Duration))
	case StepStatusFailed:
		fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, cli.Red("FAIL"), p.formatDuration(result.Duration))
	case StepStatusError:
		fmt.Fprintf(p.W, "  %-7s %s %s  (%s)\n", tag, padded, cli.Red("ERROR"), p.formatDuration(result.Duration))
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(p.W, "          %s\n", cli.Yellow(fmt.Sprintf("%d cleanup warning(s)", len(result.Warnings))))
	}
}

func (p *ConsoleProgress) StepStart(scenario string, step *Step, index, total int) {
	// Only shown in verbose mode, on completion.
}

func (p *ConsoleProgress) StepEnd(scenario string, result *StepResult, index, total int) {
	if !p.Verbose {
		return
	}

	stepDot := cli.DotPad(result.Name, p.dotWidth-10)
	tag := fmt.Sprintf("[%d/%d]", index+1, total)
	fmt.Fprintf(p.W, "          %s %s %s  (%s)\n", tag, stepDot, p.colorStatus(result.Status), p.formatDuration(result.Duration))

	if result.Status == StepStatusFailed || result.Status == StepStatusError {
		if result.Message != "" {
			fmt.Fprintf(p.W, "               %s\n", cli.Dim(result.Message))
		}
		for _, d := range result.Details {
			if d.Status != StepStatusPassed {
				fmt.Fprintf(p.W, "               %s: %s\n", d.Device, cli.Dim(d.Message))
			}
		}
	}
}

func (p *ConsoleProgress) SuiteEnd(results []*ScenarioResult, duration time.Duration) {
	passed, failed, errored := summarize(results)

	fmt.Fprintf(p.W, "\n---\n")
	fmt.Fprintf(p.W, "lantest: %d scenario(s)", len(results))

	parts := []string{}
	if passed > 0 {
		parts = append(parts, cli.Green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d failed", failed)))
	}
	if errored > 0 {
		parts = append(parts, cli.Red(fmt.Sprintf("%d errored", errored)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(p.W, ": %s", strings.Join(parts, ", "))
	}
	fmt.Fprintf(p.W, "  (%s)\n", p.formatDuration(duration))
}

func (p *ConsoleProgress) colorStatus(s StepStatus) string {
	switch s {
	case StepStatusPassed:
		return cli.Green(string(s))
	case StepStatusFailed, StepStatusError:
		return cli.Red(string(s))
	case StepStatusSkipped:
		return cli.Yellow(string(s))
	default:
		return string(s)
	}
}

func (p *ConsoleProgress) formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
