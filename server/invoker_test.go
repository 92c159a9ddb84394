package server

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultInterpreter); err != nil {
		t.Skipf("%s not available: %v", DefaultInterpreter, err)
	}
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ScriptFileName)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessInvokerSpawnFailure(t *testing.T) {
	inv := &ProcessInvoker{Interpreter: filepath.Join(t.TempDir(), "no-such-interpreter")}
	_, err := inv.Invoke(context.Background(), writeScript(t, ""), DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
}

func TestProcessInvokerReturnsRawStdout(t *testing.T) {
	requirePython(t)
	script := writeScript(t, `
def decide(state):
    return (state["tick"], state["position"]["x"] - 1)
`)
	inv := &ProcessInvoker{Timeout: 10 * time.Second}
	out, err := inv.Invoke(context.Background(), script, DecisionRequest{Version: 1, Tick: 4, Position: Position{X: 7}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "(4, 6)\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestProcessInvokerStderrIsFatal(t *testing.T) {
	requirePython(t)
	script := writeScript(t, `
import sys
def decide(state):
    sys.stderr.write("just a warning\n")
    return (1, 0)
`)
	_, err := (&ProcessInvoker{Timeout: 10 * time.Second}).Invoke(context.Background(), script, DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "just a warning") {
		t.Fatalf("error should carry stderr verbatim: %v", err)
	}
}

func TestProcessInvokerRaisedException(t *testing.T) {
	requirePython(t)
	script := writeScript(t, `
def decide(state):
    raise ValueError("no move for you")
`)
	_, err := (&ProcessInvoker{Timeout: 10 * time.Second}).Invoke(context.Background(), script, DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrExecution) || !strings.Contains(err.Error(), "no move for you") {
		t.Fatalf("expected ErrExecution with traceback, got %v", err)
	}
}

func TestProcessInvokerTimeout(t *testing.T) {
	requirePython(t)
	script := writeScript(t, `
def decide(state):
    while True:
        pass
`)
	inv := &ProcessInvoker{Timeout: 300 * time.Millisecond}
	start := time.Now()
	_, err := inv.Invoke(context.Background(), script, DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrExecution) || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout ErrExecution, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("hung process was not killed promptly: %s", elapsed)
	}
}

func TestProcessInvokerParentCancelKillsChild(t *testing.T) {
	requirePython(t)
	script := writeScript(t, `
def decide(state):
    while True:
        pass
`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	start := time.Now()
	_, err := (&ProcessInvoker{}).Invoke(ctx, script, DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("canceled process was not killed promptly: %s", elapsed)
	}
}

func TestProcessInvokerAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := &ProcessInvoker{Interpreter: filepath.Join(t.TempDir(), "no-such-interpreter")}
	_, err := inv.Invoke(ctx, writeScript(t, ""), DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}

func TestProcessInvokerOutputCap(t *testing.T) {
	requirePython(t)
	script := writeScript(t, `
def decide(state):
    return "x" * 4096
`)
	inv := &ProcessInvoker{Timeout: 10 * time.Second, MaxOutputBytes: 128}
	_, err := inv.Invoke(context.Background(), script, DecisionRequest{Tick: 1})
	if !errors.Is(err, ErrExecution) || !strings.Contains(err.Error(), "exceeded") {
		t.Fatalf("expected output cap ErrExecution, got %v", err)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	if n, _ := b.Write([]byte("ab")); n != 2 || b.overflow {
		t.Fatalf("first write: n=%d overflow=%v", n, b.overflow)
	}
	if n, _ := b.Write([]byte("cdef")); n != 4 || !b.overflow {
		t.Fatalf("second write: n=%d overflow=%v", n, b.overflow)
	}
	if b.buf.String() != "abcd" {
		t.Fatalf("buffer = %q", b.buf.String())
	}
}

// 端到端：真实解释器驱动完整运行
func TestEngineWithPython(t *testing.T) {
	requirePython(t)
	inv := &ProcessInvoker{Timeout: 10 * time.Second}

	t.Run("always right", func(t *testing.T) {
		script := writeScript(t, "def decide(state):\n    return (1, 0)\n")
		res := NewEngine(inv, 10).Run(context.Background(), "py-1", script)
		if res.Failed() || res.FinalState != (GameState{Tick: 10, Position: Position{10, 0}}) {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("raises on tick 3", func(t *testing.T) {
		script := writeScript(t, `
def decide(state):
    if state["tick"] == 3:
        raise RuntimeError("boom")
    return (2, -1)
`)
		res := NewEngine(inv, 10).Run(context.Background(), "py-2", script)
		if !errors.Is(res.Err, ErrExecution) {
			t.Fatalf("expected ErrExecution, got %v", res.Err)
		}
		if res.FinalState != (GameState{Tick: 3, Position: Position{4, -2}}) {
			t.Fatalf("final state = %+v", res.FinalState)
		}
	})

	t.Run("prints banana", func(t *testing.T) {
		script := writeScript(t, "def decide(state):\n    return \"banana\"\n")
		res := NewEngine(inv, 10).Run(context.Background(), "py-3", script)
		if !errors.Is(res.Err, ErrParse) || !strings.Contains(res.Error, "banana") {
			t.Fatalf("expected parse error mentioning banana, got %v", res.Err)
		}
		if res.FinalState != (GameState{Tick: 1}) {
			t.Fatalf("final state = %+v", res.FinalState)
		}
	})
}
