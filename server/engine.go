package server

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProtocolVersion 决策请求的协议版本号
const ProtocolVersion = 1

// DefaultTicks 单次运行默认的 Tick 预算
const DefaultTicks = 10

// DecisionRequest 每个 Tick 交给脚本的世界状态
type DecisionRequest struct {
	Version  int      `json:"version"`
	Tick     uint64   `json:"tick"`
	Position Position `json:"position"`
}

// DecisionInvoker 为一个 Tick 执行一次脚本，返回未解析的原始输出
type DecisionInvoker interface {
	Invoke(ctx context.Context, scriptPath string, req DecisionRequest) (string, error)
}

// EventSink 运行过程的观察者（例如 WebSocket 会话），回调在引擎线程中同步执行
type EventSink interface {
	RunStarted(runID string)
	TickApplied(runID string, state GameState, decision string)
}

// Engine 单线程推进 Tick：构造请求 → 调用脚本 → 解析决策 → 更新状态
type Engine struct {
	Invoker DecisionInvoker
	Ticks   int
	Sink    EventSink   // 可选
	Metrics *RunMetrics // 可选
}

// NewEngine 创建引擎，ticks 为本次运行的 Tick 预算
func NewEngine(invoker DecisionInvoker, ticks int) *Engine {
	return &Engine{Invoker: invoker, Ticks: ticks}
}

// Run 执行一次完整运行并且只返回一个结果。
// 任一 Tick 失败即中止，结果中保留失败前累积的状态；不重试。
// ctx 只在 Tick 边界检查，以及用于终止正在执行的脚本进程。
func (e *Engine) Run(ctx context.Context, runID, scriptPath string) SimulationResult {
	var state GameState
	for tick := 1; tick <= e.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return e.abort(runID, state, fmt.Errorf("%w before tick %d: %v", ErrCanceled, tick, err))
		}
		state.Tick = uint64(tick)

		req := DecisionRequest{Version: ProtocolVersion, Tick: state.Tick, Position: state.Position}
		start := time.Now()
		raw, err := e.Invoker.Invoke(ctx, scriptPath, req)
		if e.Metrics != nil {
			e.Metrics.AddInvocation(time.Since(start).Nanoseconds())
		}
		if err != nil {
			return e.abort(runID, state, fmt.Errorf("tick %d: %w", tick, err))
		}

		decision := strings.TrimSpace(raw)
		Log.Debugw("decision", "run", runID, "tick", tick, "raw", raw)

		act, err := ParseAction(raw)
		if err != nil {
			return e.abort(runID, state, fmt.Errorf("tick %d: %w: invalid decision %q", tick, err, decision))
		}
		state.Position = state.Position.Add(act)

		if e.Sink != nil {
			e.Sink.TickApplied(runID, state, decision)
		}
	}
	Log.Infow("run completed", "run", runID, "tick", state.Tick, "x", state.Position.X, "y", state.Position.Y)
	return newResult(runID, state, nil)
}

func (e *Engine) abort(runID string, state GameState, err error) SimulationResult {
	Log.Warnw("run aborted", "run", runID, "tick", state.Tick, "kind", KindOf(err), "err", err)
	return newResult(runID, state, err)
}
