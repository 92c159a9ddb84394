package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	DefaultInterpreter    = "python3"
	DefaultEntrypoint     = "decide"
	DefaultInvokeTimeout  = 2 * time.Second
	DefaultMaxOutputBytes = 64 << 10
)

// driverSource 宿主程序：按路径加载脚本模块，调用决策函数，把返回值打印到标准输出。
// argv: [script path, entrypoint, request json]
const driverSource = `import importlib.util, json, sys
spec = importlib.util.spec_from_file_location("bot", sys.argv[1])
bot = importlib.util.module_from_spec(spec)
spec.loader.exec_module(bot)
print(getattr(bot, sys.argv[2])(json.loads(sys.argv[3])))
`

// ProcessInvoker 每个 Tick 启动一个独立的解释器进程执行决策函数
type ProcessInvoker struct {
	Interpreter    string
	Entrypoint     string
	Timeout        time.Duration // <= 0 表示不限时
	MaxOutputBytes int
}

// Invoke 标准错误非空即视为执行失败（不区分警告与错误），
// 否则原样返回标准输出。进程无法启动则为 ErrSpawn。
func (p *ProcessInvoker) Invoke(ctx context.Context, scriptPath string, req DecisionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	// 子进程的工作目录是脚本所在目录，相对路径会被解析两次
	scriptPath, err := filepath.Abs(scriptPath)
	if err != nil {
		return "", fmt.Errorf("%w: resolve script path: %v", ErrSpawn, err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrSpawn, err)
	}

	runCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	interpreter := p.Interpreter
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	entrypoint := p.Entrypoint
	if entrypoint == "" {
		entrypoint = DefaultEntrypoint
	}
	limit := p.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}

	// -I 隔离模式：忽略 PYTHON* 环境变量与用户 site；-B 不写字节码缓存
	cmd := exec.CommandContext(runCtx, interpreter, "-I", "-B", "-c", driverSource, scriptPath, entrypoint, string(payload))
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + cmd.Dir,
		"LANG=C.UTF-8",
	}
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	isolate(cmd)

	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return "", fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w: decision timed out after %s", ErrExecution, p.Timeout)
	case stdout.overflow || stderr.overflow:
		return "", fmt.Errorf("%w: output exceeded %d bytes", ErrExecution, limit)
	case stderr.buf.Len() > 0:
		return "", fmt.Errorf("%w: %s", ErrExecution, stderr.buf.String())
	}
	if waitErr != nil {
		Log.Debugw("decision process exited abnormally with empty stderr", "script", scriptPath, "err", waitErr)
	}
	return stdout.buf.String(), nil
}

// cappedBuffer 超过上限后继续吞掉数据（避免子进程写阻塞），只记录溢出
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if len(p) > room {
		b.overflow = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}
