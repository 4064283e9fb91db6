package executor

import (
	"context"
	"testing"
	"time"
)

func TestCommandInvokerRunsBoundCommand(t *testing.T) {
	inv := NewCommandInvoker(t.TempDir())
	inv.Bind("greet", "echo hello")

	out, err := inv.Invoke(context.Background(), "greet", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["output"] != "hello" {
		t.Errorf("expected hello, got %v", out["output"])
	}
}

func TestCommandInvokerPassesInputOnStdin(t *testing.T) {
	inv := NewCommandInvoker("")
	inv.Bind("echo-input", "cat")

	out, err := inv.Invoke(context.Background(), "echo-input", map[string]any{"key": "value"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["output"] != `{"key":"value"}` {
		t.Errorf("expected JSON payload on stdout, got %v", out["output"])
	}
}

func TestCommandInvokerUnboundItem(t *testing.T) {
	inv := NewCommandInvoker("")

	_, err := inv.Invoke(context.Background(), "ghost", nil)
	if err == nil {
		t.Fatal("expected error for unbound item")
	}
	if got := Classify(err); got != KindInternal {
		t.Errorf("expected internal, got %s", got)
	}
}

func TestCommandInvokerExitFailure(t *testing.T) {
	inv := NewCommandInvoker("")
	inv.Bind("fail", "exit 3")

	_, err := inv.Invoke(context.Background(), "fail", nil)
	if err == nil {
		t.Fatal("expected error for failing command")
	}
	if got := Classify(err); got != KindInternal {
		t.Errorf("expected internal for non-zero exit, got %s", got)
	}
}

func TestCommandInvokerDeadline(t *testing.T) {
	inv := NewCommandInvoker("")
	inv.Bind("sleepy", "sleep 5")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := inv.Invoke(ctx, "sleepy", nil)
	if err == nil {
		t.Fatal("expected error for timed-out command")
	}
	if got := Classify(err); got != KindTimeout {
		t.Errorf("expected timeout, got %s", got)
	}
}
