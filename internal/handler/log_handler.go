package handler

import (
	"net/http"
	"strings"
	"time"

	"go-fileops/internal/model"
	"go-fileops/internal/service"
	"go-fileops/pkg/apierror"
)

const maxLogPageSize = 500

type LogHandler struct {
	engine *service.Engine
}

func NewLogHandler(engine *service.Engine) *LogHandler {
	return &LogHandler{engine: engine}
}

// List pages over the log without materializing it: records outside the
// requested page are counted and dropped.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := model.LogFilter{
		Action:  strings.TrimSpace(query.Get("action")),
		Outcome: strings.TrimSpace(query.Get("outcome")),
		Name:    strings.TrimSpace(query.Get("name")),
	}

	var err error
	if filter.From, err = parseTimeParam(query.Get("from"), "from"); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTimeParam(query.Get("to"), "to"); err != nil {
		writeError(w, err)
		return
	}

	page := max(parseIntOrDefault(query.Get("page"), 1), 1)
	limit := parseIntOrDefault(query.Get("limit"), 50)
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, maxLogPageSize)
	offset := (page - 1) * limit

	items := make([]model.LogRecord, 0, limit)
	total := 0
	for record, err := range h.engine.QueryLog(filter) {
		if err != nil {
			writeError(w, err)
			return
		}
		if total >= offset && len(items) < limit {
			items = append(items, record)
		}
		total++
	}

	meta := model.NewMeta(page, limit, total)
	writeSuccess(w, http.StatusOK, model.LogListData{Items: items}, &meta)
}

func parseTimeParam(raw string, name string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apierror.BadRequest(name+" must be an RFC3339 timestamp", raw)
	}
	return parsed, nil
}
