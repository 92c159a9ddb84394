package server

// Position 棋盘上的整数坐标
type Position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// Add 按分量叠加一次位移
func (p Position) Add(a Action) Position {
	return Position{X: p.X + a.DX, Y: p.Y + a.DY}
}

// GameState 单次运行内由引擎独占的权威状态。
// Tick 等于已成功应用的决策数，Position 为这些位移按顺序的累加和。
type GameState struct {
	Tick     uint64   `json:"tick"`
	Position Position `json:"position"`
}

// SimulationResult 运行结束时产生的唯一快照（成功或中止）
type SimulationResult struct {
	RunID      string    `json:"run_id,omitempty"`
	FinalState GameState `json:"final_state"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`

	Err error `json:"-"`
}

// Failed 运行是否在完成全部 Tick 之前停止
func (r SimulationResult) Failed() bool { return r.Err != nil }

func newResult(runID string, state GameState, err error) SimulationResult {
	res := SimulationResult{RunID: runID, FinalState: state, Err: err}
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = KindOf(err)
	}
	return res
}
