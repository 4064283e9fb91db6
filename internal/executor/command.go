package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// CommandInvoker dispatches items to shell commands. Each item maps to
// a command template; the input payload is passed as JSON on stdin and
// the command's stdout is returned under the "output" key.
type CommandInvoker struct {
	mu sync.RWMutex
	// commands maps item name to the shell command that implements it.
	commands map[string]string
	// workDir is the working directory for all commands.
	workDir string
}

// NewCommandInvoker creates a CommandInvoker rooted at workDir.
func NewCommandInvoker(workDir string) *CommandInvoker {
	return &CommandInvoker{
		commands: make(map[string]string),
		workDir:  workDir,
	}
}

// Bind associates an item name with a shell command.
func (c *CommandInvoker) Bind(item, command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[item] = command
}

// Invoke runs the bound command for the item through "sh -c".
func (c *CommandInvoker) Invoke(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
	c.mu.RLock()
	command, ok := c.commands[item]
	c.mu.RUnlock()

	if !ok {
		return nil, NewError(KindInternal, item, fmt.Errorf("no command bound for item %q", item))
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, NewError(KindInvalidInput, item, fmt.Errorf("encode input: %w", err))
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if c.workDir != "" {
		cmd.Dir = c.workDir
	}
	cmd.Stdin = strings.NewReader(string(payload))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, NewError(classifyExecErr(ctx, err), item, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	}

	return map[string]any{"output": strings.TrimSpace(string(out))}, nil
}

// classifyExecErr maps command failures onto the retry taxonomy.
// A killed deadline shows up as context.DeadlineExceeded on ctx.
func classifyExecErr(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return KindInternal
	}
	// Command could not be started at all.
	return KindUnavailable
}

var _ Invoker = (*CommandInvoker)(nil)
