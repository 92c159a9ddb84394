package server

import "errors"

// 一次运行的终止性错误分类，任何一种都会立即结束 Tick 循环
var (
	ErrPersistence = errors.New("persistence error")
	ErrSpawn       = errors.New("spawn error")
	ErrExecution   = errors.New("execution error")
	ErrParse       = errors.New("parse error")
	ErrCanceled    = errors.New("run canceled")
)

// ErrorKind 错误分类的稳定编码，随结果一起输出给调用方
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindPersistence ErrorKind = "persistence"
	KindSpawn       ErrorKind = "spawn"
	KindExecution   ErrorKind = "execution"
	KindParse       ErrorKind = "parse"
	KindCanceled    ErrorKind = "canceled"
)

// KindOf 根据包装链中的哨兵错误得出分类
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrSpawn):
		return KindSpawn
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	default:
		return KindExecution
	}
}
