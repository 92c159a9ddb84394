package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RunSettings 可在运行期热更新的参数，每次运行开始时取快照
type RunSettings struct {
	Ticks          int           `json:"ticks"`
	InvokeTimeout  time.Duration `json:"invoke_timeout"`
	MaxOutputBytes int           `json:"max_output_bytes"`
}

func (s RunSettings) validate(maxTicks int) error {
	if s.Ticks < 0 || s.Ticks > maxTicks {
		return fmt.Errorf("ticks must be within [0, %d]", maxTicks)
	}
	if s.InvokeTimeout < 0 {
		return errors.New("invoke_timeout must not be negative")
	}
	if s.MaxOutputBytes <= 0 {
		return errors.New("max_output_bytes must be positive")
	}
	return nil
}

// RunRequest 一次运行的输入；Ticks 应先经 ResolveTicks 校验
type RunRequest struct {
	Script io.Reader
	Ticks  int
	Sink   EventSink
}

// RunManager 管理运行的生命周期：限流、脚本落盘与清理、指标
type RunManager struct {
	store       *ScriptStore
	sem         *semaphore.Weighted
	metrics     *RunMetrics
	interpreter string
	entrypoint  string
	maxTicks    int

	mu       sync.RWMutex
	settings RunSettings
}

// NewRunManager 按配置创建管理器（配置需已通过校验）
func NewRunManager(cfg Config) (*RunManager, error) {
	store, err := NewScriptStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return &RunManager{
		store:       store,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		metrics:     &RunMetrics{},
		interpreter: cfg.Interpreter,
		entrypoint:  cfg.Entrypoint,
		maxTicks:    cfg.MaxTicks,
		settings:    cfg.settings(),
	}, nil
}

// Metrics 运行指标
func (m *RunManager) Metrics() *RunMetrics { return m.metrics }

// MaxTicks 单次运行允许的最大 Tick 预算
func (m *RunManager) MaxTicks() int { return m.maxTicks }

// Settings 当前参数快照
func (m *RunManager) Settings() RunSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// UpdateSettings 在副本上修改并校验，通过后整体替换；只影响之后开始的运行
func (m *RunManager) UpdateSettings(fn func(*RunSettings)) (RunSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.settings
	fn(&next)
	if err := next.validate(m.maxTicks); err != nil {
		return m.settings, err
	}
	m.settings = next
	return next, nil
}

// ResolveTicks 校验调用方请求的 Tick 预算，nil 表示使用当前配置
func (m *RunManager) ResolveTicks(requested *int) (int, error) {
	if requested == nil {
		return m.Settings().Ticks, nil
	}
	if *requested < 0 || *requested > m.maxTicks {
		return 0, fmt.Errorf("ticks must be within [0, %d]", m.maxTicks)
	}
	return *requested, nil
}

// Execute 同步执行一次运行并返回唯一结果：排队 → 落盘 → 引擎 → 清理。
// 任何失败都体现在结果里，不会向上返回 error。
func (m *RunManager) Execute(ctx context.Context, req RunRequest) SimulationResult {
	settings := m.Settings()
	ticks := min(max(req.Ticks, 0), m.maxTicks)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		res := newResult("", GameState{}, fmt.Errorf("%w while waiting for a run slot: %v", ErrCanceled, err))
		m.metrics.IncAborted(res.ErrorKind)
		return res
	}
	defer m.sem.Release(1)

	script, err := m.store.Save(req.Script)
	if err != nil {
		Log.Errorw("persist script failed", "err", err)
		res := newResult("", GameState{}, err)
		m.metrics.IncAborted(res.ErrorKind)
		return res
	}
	defer func() {
		if err := m.store.Release(script); err != nil {
			Log.Warnw("cleanup run dir failed", "run", script.RunID, "dir", script.Dir, "err", err)
		}
	}()

	m.metrics.IncStarted()
	Log.Infow("run started", "run", script.RunID, "ticks", ticks)
	if req.Sink != nil {
		req.Sink.RunStarted(script.RunID)
	}

	engine := NewEngine(&ProcessInvoker{
		Interpreter:    m.interpreter,
		Entrypoint:     m.entrypoint,
		Timeout:        settings.InvokeTimeout,
		MaxOutputBytes: settings.MaxOutputBytes,
	}, ticks)
	engine.Sink = req.Sink
	engine.Metrics = m.metrics

	res := engine.Run(ctx, script.RunID, script.Path)
	m.metrics.Finish(res)
	return res
}
