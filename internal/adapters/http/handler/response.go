package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ogurasousui/chronos/internal/core/query"
)

type pagination struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

type envelope struct {
	Data       any         `json:"data"`
	Pagination *pagination `json:"pagination,omitempty"`
	Total      *int        `json:"total,omitempty"`
}

type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

func writeList(w http.ResponseWriter, data any, page query.Page, total int) {
	writeJSON(w, http.StatusOK, envelope{
		Data:       data,
		Pagination: &pagination{Skip: page.Skip, Limit: page.Limit},
		Total:      &total,
	})
}
