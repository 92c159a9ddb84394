package server

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, mutate func(*Config)) *RunManager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewRunManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRunManagerResolveTicks(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Ticks = 7; c.MaxTicks = 20 })
	if n, err := m.ResolveTicks(nil); err != nil || n != 7 {
		t.Fatalf("default: %d %v", n, err)
	}
	for _, bad := range []int{-1, 21} {
		bad := bad
		if _, err := m.ResolveTicks(&bad); err == nil {
			t.Fatalf("ticks %d should be rejected", bad)
		}
	}
	zero := 0
	if n, err := m.ResolveTicks(&zero); err != nil || n != 0 {
		t.Fatalf("zero: %d %v", n, err)
	}
}

func TestRunManagerSpawnFailureIsReported(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Interpreter = filepath.Join(t.TempDir(), "missing-python") })
	res := m.Execute(context.Background(), RunRequest{Script: strings.NewReader("x"), Ticks: 5})
	if !errors.Is(res.Err, ErrSpawn) || res.ErrorKind != KindSpawn {
		t.Fatalf("expected spawn error, got %v", res.Err)
	}
	if res.FinalState != (GameState{Tick: 1}) {
		t.Fatalf("final state = %+v", res.FinalState)
	}
	if m.Metrics().SpawnErrors != 1 || m.Metrics().ActiveRuns != 0 {
		t.Fatalf("metrics = %+v", m.Metrics().Snapshot())
	}
}

func TestRunManagerPersistenceFailure(t *testing.T) {
	m := newTestManager(t, nil)
	res := m.Execute(context.Background(), RunRequest{Script: failingReader{}, Ticks: 5})
	if res.ErrorKind != KindPersistence || res.RunID != "" {
		t.Fatalf("result = %+v", res)
	}
	if m.Metrics().PersistErrors != 1 || m.Metrics().RunsStarted != 0 {
		t.Fatalf("metrics = %+v", m.Metrics().Snapshot())
	}
}

func TestRunManagerWaitsForSlot(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxConcurrentRuns = 1 })
	if err := m.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer m.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := m.Execute(ctx, RunRequest{Script: strings.NewReader("x"), Ticks: 0})
	if res.ErrorKind != KindCanceled {
		t.Fatalf("expected canceled while waiting, got %+v", res)
	}
}

func TestRunManagerUpdateSettings(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.UpdateSettings(func(s *RunSettings) { s.MaxOutputBytes = 0 }); err == nil {
		t.Fatal("expected validation error")
	}
	st, err := m.UpdateSettings(func(s *RunSettings) { s.Ticks = 2 })
	if err != nil || st.Ticks != 2 || m.Settings().Ticks != 2 {
		t.Fatalf("update: %+v %v", st, err)
	}
}

func TestRunManagerRelativeUploadDir(t *testing.T) {
	requirePython(t)
	chdir(t, t.TempDir())
	m := newTestManager(t, func(c *Config) {
		c.UploadDir = "uploads"
		c.InvokeTimeout = 10 * time.Second
	})
	res := m.Execute(context.Background(), RunRequest{Script: strings.NewReader("def decide(s):\n    return (1, 0)\n"), Ticks: 3})
	if res.Failed() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.FinalState != (GameState{Tick: 3, Position: Position{3, 0}}) {
		t.Fatalf("final state = %+v", res.FinalState)
	}
}
