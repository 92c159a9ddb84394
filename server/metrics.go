package server

import (
	"sync/atomic"
)

// RunMetrics 记录运行期的关键指标（用于监控与调试）
type RunMetrics struct {
	RunsStarted   int64 // 开始的运行数
	RunsCompleted int64 // 跑满全部 Tick 的运行数
	RunsAborted   int64 // 中途中止的运行数
	PersistErrors int64 // 脚本落盘失败
	SpawnErrors   int64 // 进程无法启动
	ExecErrors    int64 // 标准错误非空、超时或输出超限
	ParseErrors   int64 // 决策无法解析
	Canceled      int64 // 被调用方取消
	Invocations   int64 // 脚本调用次数
	TotalInvokeNs int64 // 脚本调用累计耗时（纳秒）
	ActiveRuns    int64 // 正在执行的运行数
}

func (m *RunMetrics) IncStarted() {
	atomic.AddInt64(&m.RunsStarted, 1)
	atomic.AddInt64(&m.ActiveRuns, 1)
}

// Finish 登记一次运行结束（ok 或按错误分类计数）
func (m *RunMetrics) Finish(res SimulationResult) {
	atomic.AddInt64(&m.ActiveRuns, -1)
	if !res.Failed() {
		atomic.AddInt64(&m.RunsCompleted, 1)
		return
	}
	m.IncAborted(res.ErrorKind)
}

// IncAborted 未进入运行阶段的失败（例如落盘失败）也经由这里计数
func (m *RunMetrics) IncAborted(kind ErrorKind) {
	atomic.AddInt64(&m.RunsAborted, 1)
	switch kind {
	case KindPersistence:
		atomic.AddInt64(&m.PersistErrors, 1)
	case KindSpawn:
		atomic.AddInt64(&m.SpawnErrors, 1)
	case KindParse:
		atomic.AddInt64(&m.ParseErrors, 1)
	case KindCanceled:
		atomic.AddInt64(&m.Canceled, 1)
	default:
		atomic.AddInt64(&m.ExecErrors, 1)
	}
}

func (m *RunMetrics) AddInvocation(ns int64) {
	atomic.AddInt64(&m.Invocations, 1)
	atomic.AddInt64(&m.TotalInvokeNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RunMetrics) Snapshot() map[string]any {
	calls := atomic.LoadInt64(&m.Invocations)
	total := atomic.LoadInt64(&m.TotalInvokeNs)
	var avgMs float64
	if calls > 0 {
		avgMs = float64(total) / float64(calls) / 1e6
	}
	return map[string]any{
		"runs_started":   atomic.LoadInt64(&m.RunsStarted),
		"runs_completed": atomic.LoadInt64(&m.RunsCompleted),
		"runs_aborted":   atomic.LoadInt64(&m.RunsAborted),
		"active_runs":    atomic.LoadInt64(&m.ActiveRuns),
		"persist_errors": atomic.LoadInt64(&m.PersistErrors),
		"spawn_errors":   atomic.LoadInt64(&m.SpawnErrors),
		"exec_errors":    atomic.LoadInt64(&m.ExecErrors),
		"parse_errors":   atomic.LoadInt64(&m.ParseErrors),
		"canceled":       atomic.LoadInt64(&m.Canceled),
		"invocations":    calls,
		"avg_invoke_ms":  avgMs,
	}
}
