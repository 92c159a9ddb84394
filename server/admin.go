package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleAdminConfig 提供运行参数的读取与更新（热更新，只影响之后开始的运行）
// GET /admin/config  返回当前配置
// POST /admin/config 以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		Ticks           *int   `json:"ticks,omitempty"`
		InvokeTimeoutMs *int64 `json:"invokeTimeoutMs,omitempty"`
		MaxOutputBytes  *int   `json:"maxOutputBytes,omitempty"`
		MaxTicks        int    `json:"maxTicks,omitempty"`
	}
	view := func(st RunSettings) cfg {
		ms := st.InvokeTimeout.Milliseconds()
		return cfg{Ticks: &st.Ticks, InvokeTimeoutMs: &ms, MaxOutputBytes: &st.MaxOutputBytes, MaxTicks: s.runs.MaxTicks()}
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, view(s.runs.Settings()))
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		st, err := s.runs.UpdateSettings(func(st *RunSettings) {
			if body.Ticks != nil {
				st.Ticks = *body.Ticks
			}
			if body.InvokeTimeoutMs != nil {
				st.InvokeTimeout = time.Duration(*body.InvokeTimeoutMs) * time.Millisecond
			}
			if body.MaxOutputBytes != nil {
				st.MaxOutputBytes = *body.MaxOutputBytes
			}
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		Log.Infof("config updated: ticks=%d invokeTimeout=%s maxOutputBytes=%d",
			st.Ticks, st.InvokeTimeout, st.MaxOutputBytes)
		writeJSON(w, http.StatusOK, view(st))
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": s.runs.Metrics().Snapshot(),
	})
}
