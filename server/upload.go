package server

import (
	"errors"
	"net/http"
	"strconv"
)

// HandleUpload POST /upload?ticks=10，multipart 字段 file。
// 同步跑完一次运行后返回结果；脚本目录在返回前删除。
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var requested *int
	if raw := r.URL.Query().Get("ticks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ticks must be an integer")
			return
		}
		requested = &n
	}
	ticks, err := s.runs.ResolveTicks(requested)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "script too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()
	Log.Debugw("upload received", "name", header.Filename, "size", header.Size, "ticks", ticks)

	res := s.runs.Execute(r.Context(), RunRequest{Script: file, Ticks: ticks})
	status := http.StatusOK
	if res.ErrorKind == KindPersistence {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}
