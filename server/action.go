package server

import (
	"fmt"
	"strconv"
	"strings"
)

// Action 脚本对当前 Tick 给出的二维位移
type Action struct {
	DX int64 `json:"dx"`
	DY int64 `json:"dy"`
}

// String 按决策协议格式输出，ParseAction 可以原样解析回来
func (a Action) String() string {
	return fmt.Sprintf("(%d, %d)", a.DX, a.DY)
}

// ParseAction 解析 "(dx, dy)"：去掉首尾空白后必须整体匹配，
// 两个字段各自去空白后按十进制 int64 解析。不做任何前缀挽救。
func ParseAction(raw string) (Action, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return Action{}, ErrParse
	}
	fields := strings.Split(s[1:len(s)-1], ",")
	if len(fields) != 2 {
		return Action{}, ErrParse
	}
	dx, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return Action{}, ErrParse
	}
	dy, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return Action{}, ErrParse
	}
	return Action{DX: dx, DY: dy}, nil
}
