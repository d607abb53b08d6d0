package khal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	appLog "khalorg/internal/log"
)

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

// ExecError is a failed khal invocation.
type ExecError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	execErr := &ExecError{
		Args:     append([]string{name}, args...),
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	}
	return stdout.Bytes(), execErr
}

// Calendar is one khal calendar reached through the khal command line.
type Calendar struct {
	Name string

	command []string
	runner  Runner
}

// NewCalendar splits command with shell quoting rules. A nil runner runs
// the real process.
func NewCalendar(name, command string, runner Runner) (*Calendar, error) {
	words, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse khal command %q: %w", command, err)
	}
	if len(words) == 0 {
		return nil, errors.New("khal command is empty")
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &Calendar{Name: name, command: words, runner: runner}, nil
}

func (c *Calendar) run(ctx context.Context, sub string, args []string) (string, error) {
	full := append(append(append([]string(nil), c.command[1:]...), sub), args...)
	appLog.Debug("running khal", "cmd", c.command[0], "args", strings.Join(full, " "))

	out, err := c.runner.Run(ctx, c.command[0], full)
	if err != nil {
		appLog.Error("khal failed", err, "calendar", c.Name, "subcommand", sub)
		return string(out), err
	}
	return string(out), nil
}

// New creates an entry with `khal new`. The calendar option is filled in
// when args does not carry one.
func (c *Calendar) New(ctx context.Context, args *Args) (string, error) {
	if _, ok := args.Get("-a"); !ok {
		args.Set("-a", c.Name)
	}
	return c.run(ctx, "new", args.List())
}

// List runs `khal list` for the calendar between start and stop with the
// given event format. Empty start and stop use khal's defaults.
func (c *Calendar) List(ctx context.Context, format, start, stop string) (string, error) {
	args := []string{"--format", format, "--day-format", "", "-a", c.Name}
	for _, s := range []string{start, stop} {
		if s != "" {
			args = append(args, s)
		}
	}
	return c.run(ctx, "list", args)
}
