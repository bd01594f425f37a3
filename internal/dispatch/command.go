package dispatch

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// CommandExecutor runs one prepared sender invocation.
// This abstraction enables unit testing without spawning real processes.
type CommandExecutor interface {
	// Run starts the command and waits for it to finish.
	Run() error
}

// CommandBuilder prepares sender invocations.
type CommandBuilder interface {
	// BuildCommand creates a CommandExecutor for name with args.
	BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd to implement CommandExecutor.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command.
func (r *RealCommandExecutor) Run() error {
	return r.cmd.Run()
}

// RealCommandBuilder implements CommandBuilder using exec.CommandContext.
// The child's output goes to Stdout and Stderr.
type RealCommandBuilder struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewRealCommandBuilder creates a builder whose children inherit the
// process's standard output and error.
func NewRealCommandBuilder() *RealCommandBuilder {
	return &RealCommandBuilder{Stdout: os.Stdout, Stderr: os.Stderr}
}

// BuildCommand creates a CommandExecutor for the given command and arguments.
func (b *RealCommandBuilder) BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	return &RealCommandExecutor{cmd: cmd}
}

// MockCommandExecutor implements CommandExecutor for testing.
type MockCommandExecutor struct {
	// Err is the error to return from Run.
	Err error
	// RunCalled indicates whether Run was called.
	RunCalled bool
}

// Run returns the configured error.
func (m *MockCommandExecutor) Run() error {
	m.RunCalled = true
	return m.Err
}

// MockBuiltCommand records details of a built command.
type MockBuiltCommand struct {
	Name string
	Args []string
}

// MockCommandBuilder implements CommandBuilder for testing.
type MockCommandBuilder struct {
	// Commands records all commands that were built.
	Commands []MockBuiltCommand
	// ExecutorFactory allows creating executors dynamically based on command.
	ExecutorFactory func(name string, args []string) *MockCommandExecutor
}

// NewMockCommandBuilder creates a new MockCommandBuilder.
func NewMockCommandBuilder() *MockCommandBuilder {
	return &MockCommandBuilder{}
}

// BuildCommand records the command and returns a MockCommandExecutor.
func (b *MockCommandBuilder) BuildCommand(_ context.Context, name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{
		Name: name,
		Args: append([]string(nil), args...),
	})
	if b.ExecutorFactory != nil {
		return b.ExecutorFactory(name, args)
	}
	return &MockCommandExecutor{}
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *MockBuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}
