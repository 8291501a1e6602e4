package sshutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/ssh"
)

// CommandResult carries the outcome of a remote command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// SSHCommandRunner executes commands on the remote host, one session
// per command.
type SSHCommandRunner struct {
	client *Client
	logger *slog.Logger
}

// CommandRunnerOption configures an SSHCommandRunner.
type CommandRunnerOption func(*SSHCommandRunner)

// WithCommandLogger sets the logger for command execution.
func WithCommandLogger(logger *slog.Logger) CommandRunnerOption {
	return func(r *SSHCommandRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewSSHCommandRunner wraps a connected SSH client.
func NewSSHCommandRunner(client *Client, opts ...CommandRunnerOption) *SSHCommandRunner {
	r := &SSHCommandRunner{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command and returns an error when it exits nonzero,
// with stderr (or stdout) folded into the message.
func (r *SSHCommandRunner) Run(ctx context.Context, command string) error {
	result, err := r.RunWithOutput(ctx, command)
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		return fmt.Errorf("command exited %d: %s", result.ExitCode, detail)
	}

	return nil
}

// RunWithOutput executes the command and captures its streams. A
// nonzero exit is reported in the result, not as an error; errors mean
// the command could not be run at all.
func (r *SSHCommandRunner) RunWithOutput(ctx context.Context, command string) (*CommandResult, error) {
	conn, err := r.client.GetConnection()
	if err != nil {
		return nil, err
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	r.logger.Debug("running remote command",
		slog.String("command", command),
	)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	result := &CommandResult{}
	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if !errors.As(err, &exitErr) {
				return nil, fmt.Errorf("running command: %w", err)
			}
			result.ExitCode = exitErr.ExitStatus()
		}
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	r.logger.Debug("remote command finished",
		slog.String("command", command),
		slog.Int("exit_code", result.ExitCode),
	)

	return result, nil
}
