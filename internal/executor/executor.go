// Package executor runs external commands with output capture, environment
// variable management, and context support for cancellation. Every command
// is attempted exactly once: the sync pipeline's failure policy lives in the
// callers, not here.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Result holds the output and error from a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Err      error
}

// CommandExecutor runs a single program with fixed arguments.
type CommandExecutor struct {
	program string
	args    []string
	options *Options
}

// Options configures command execution behavior.
type Options struct {
	// Output handling
	CaptureStdout     bool
	CaptureStderr     bool
	CaptureCombined   bool
	RedirectToConsole bool

	// Working directory
	WorkingDir string

	// Environment variables (appended to current env)
	Env map[string]string

	// Custom stdout/stderr writers (for advanced use cases)
	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout:     true,
		CaptureStderr:     true,
		CaptureCombined:   false,
		RedirectToConsole: false,
		Env:               make(map[string]string),
	}
}

// New creates a new CommandExecutor.
func New(program string, args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: program,
		args:    args,
		options: DefaultOptions(),
	}
}

// Execute runs the command with the given options.
func (c *CommandExecutor) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	return c.ExecuteWithInput(ctx, "", opts...)
}

// ExecuteWithInput runs the command with stdin input.
func (c *CommandExecutor) ExecuteWithInput(
	ctx context.Context,
	input string,
	opts ...Option,
) (*Result, error) {
	options := c.mergeOptions(opts...)

	cmd := exec.CommandContext(ctx, c.program, c.args...)

	c.setupCommand(cmd, input, options)
	stdoutBuf, stderrBuf, combinedBuf := c.setupOutputCapture(cmd, options)

	err := cmd.Run()

	result := c.createResult(stdoutBuf, stderrBuf, combinedBuf, err)

	if err != nil {
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// setupCommand configures the exec.Cmd with working directory, environment, and input.
func (c *CommandExecutor) setupCommand(cmd *exec.Cmd, input string, options *Options) {
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}
}

// setupOutputCapture configures stdout and stderr writers for the command.
func (c *CommandExecutor) setupOutputCapture(
	cmd *exec.Cmd,
	options *Options,
) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf, combinedBuf bytes.Buffer

	stdoutWriters := []io.Writer{}
	if options.CaptureStdout || options.CaptureCombined {
		if options.CaptureCombined {
			stdoutWriters = append(stdoutWriters, &combinedBuf)
		} else {
			stdoutWriters = append(stdoutWriters, &stdoutBuf)
		}
	}
	if options.RedirectToConsole {
		stdoutWriters = append(stdoutWriters, os.Stdout)
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, options.StdoutWriter)
	}

	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}

	stderrWriters := []io.Writer{}
	if options.CaptureStderr || options.CaptureCombined {
		if options.CaptureCombined {
			stderrWriters = append(stderrWriters, &combinedBuf)
		} else {
			stderrWriters = append(stderrWriters, &stderrBuf)
		}
	}
	if options.RedirectToConsole {
		stderrWriters = append(stderrWriters, os.Stderr)
	}
	if options.StderrWriter != nil {
		stderrWriters = append(stderrWriters, options.StderrWriter)
	}

	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}

	return &stdoutBuf, &stderrBuf, &combinedBuf
}

// createResult creates a Result from command execution and error.
func (c *CommandExecutor) createResult(
	stdoutBuf, stderrBuf, combinedBuf *bytes.Buffer,
	err error,
) *Result {
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Combined: combinedBuf.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options

	for _, opt := range opts {
		opt(&merged)
	}

	return &merged
}

// Option functions for fluent configuration

// WithCapture configures output capture.
func WithCapture(stdout, stderr, combined bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
		o.CaptureCombined = combined
	}
}

// WithConsoleRedirect enables/disables console output.
func WithConsoleRedirect(redirect bool) Option {
	return func(o *Options) {
		o.RedirectToConsole = redirect
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithStdoutWriter sets a custom stdout writer.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter sets a custom stderr writer.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}
