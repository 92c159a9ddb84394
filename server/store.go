package server

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ScriptFileName 运行目录中脚本的固定文件名
const ScriptFileName = "bot.py"

// ScriptStore 将上传脚本落盘到以运行 ID 命名的独立目录，互不覆盖
type ScriptStore struct {
	dir string
}

// StoredScript 一次运行持有的脚本副本
type StoredScript struct {
	RunID string
	Dir   string
	Path  string
}

// NewScriptStore 确保根目录存在（仅属主可访问）；相对路径按当前目录转为绝对路径
func NewScriptStore(dir string) (*ScriptStore, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve upload dir: %v", ErrPersistence, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create upload dir: %v", ErrPersistence, err)
	}
	return &ScriptStore{dir: dir}, nil
}

// Dir 根目录
func (s *ScriptStore) Dir() string { return s.dir }

// Save 为新运行分配 ID 并写入脚本；失败时不留下半成品目录
func (s *ScriptStore) Save(src io.Reader) (*StoredScript, error) {
	runID := uuid.NewString()
	dir := filepath.Join(s.dir, runID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	path := filepath.Join(dir, ScriptFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err == nil {
		_, err = io.Copy(f, src)
		err = multierr.Append(err, f.Close())
	}
	if err != nil {
		err = multierr.Append(err, os.RemoveAll(dir))
		return nil, fmt.Errorf("%w: save script: %v", ErrPersistence, err)
	}
	Log.Debugw("script saved", "run", runID, "path", path)
	return &StoredScript{RunID: runID, Dir: dir, Path: path}, nil
}

// Release 删除运行目录及其中所有产物
func (s *ScriptStore) Release(sc *StoredScript) error {
	if sc == nil {
		return nil
	}
	return os.RemoveAll(sc.Dir)
}
