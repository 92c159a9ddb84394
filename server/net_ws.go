package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait   = 5 * time.Second
	submitWait  = 60 * time.Second
	sendBacklog = 64
)

// ClientConn 负责发送（写）数据到客户端的轻量包装，同时作为运行的事件观察者
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	done <-chan struct{} // 运行被取消时关闭，解除 Deliver 的阻塞
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, sendBacklog),
	}
}

// Deliver 运行事件不丢弃：队列满时阻塞 Tick，直到写协程腾出空间或运行被取消
func (c *ClientConn) Deliver(msg EventMessage) {
	b, _ := json.Marshal(msg)
	select {
	case c.send <- b:
	case <-c.done:
	}
}

// Send 阻塞式写入，用于必须送达的消息（最终结果、错误）
func (c *ClientConn) Send(msg EventMessage) {
	b, _ := json.Marshal(msg)
	c.send <- b
}

// Close 关闭发送队列；写协程发完剩余消息后关闭连接
func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

func (c *ClientConn) RunStarted(runID string) {
	c.Deliver(EventMessage{Type: EventStarted, RunID: runID})
}

func (c *ClientConn) TickApplied(runID string, state GameState, decision string) {
	pos := state.Position
	c.Deliver(EventMessage{Type: EventTick, RunID: runID, Tick: state.Tick, Position: &pos, Decision: decision})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump(send <-chan []byte) {
	defer c.ws.Close()
	for msg := range send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			// 继续 drain，避免发送方阻塞
			for range send {
			}
			return
		}
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

// play 读取一次 submit，执行运行并推送事件；客户端断开即取消运行
func (c *ClientConn) play(runs *RunManager, maxScript int64) {
	defer c.Close()
	c.ws.SetReadLimit(maxScript + 4096)
	c.ws.SetReadDeadline(time.Now().Add(submitWait))

	var msg SubmitMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		Log.Debugw("ws submit read failed", "err", err)
		return
	}
	if strings.ToLower(msg.Type) != "submit" {
		c.Send(EventMessage{Type: EventError, Error: "expected a submit message"})
		return
	}
	ticks, err := runs.ResolveTicks(msg.Ticks)
	if err != nil {
		c.Send(EventMessage{Type: EventError, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.done = ctx.Done()
	go func() {
		// 读泵：提交之后客户端不应再发数据，读到错误即视为离开
		c.ws.SetReadDeadline(time.Time{})
		for {
			if _, _, err := c.ws.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	res := runs.Execute(ctx, RunRequest{Script: strings.NewReader(msg.Script), Ticks: ticks, Sink: c})
	c.Send(EventMessage{Type: EventFinished, RunID: res.RunID, Result: &res})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：GET /ws/play，随后发送一条 submit 消息
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}
	client := NewClientConn(ws)
	go client.writePump(client.send)
	go client.play(s.runs, s.cfg.MaxUploadBytes)
}
