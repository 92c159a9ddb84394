package server

// 客户端提交脚本的 JSON 结构（WebSocket 文本消息）
// 示例：{"type":"submit","script":"def decide(s):\n    return (1, 0)\n","ticks":10}
type SubmitMessage struct {
	Type   string `json:"type"`
	Script string `json:"script"`
	Ticks  *int   `json:"ticks,omitempty"`
}

// 服务端推送的事件类型
const (
	EventStarted  = "started"
	EventTick     = "tick"
	EventFinished = "finished"
	EventError    = "error"
)

// EventMessage 服务端推送给客户端的运行事件
type EventMessage struct {
	Type     string            `json:"type"`
	RunID    string            `json:"run_id,omitempty"`
	Tick     uint64            `json:"tick,omitempty"`
	Position *Position         `json:"position,omitempty"`
	Decision string            `json:"decision,omitempty"`
	Result   *SimulationResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}
