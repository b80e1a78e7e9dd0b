package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ogurasousui/chronos/internal/adapters/http/middleware"
	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	pgdb "github.com/ogurasousui/chronos/internal/platform/db/postgres"
)

// errBadRequest はトランスポート層での入力検証エラーです。
var errBadRequest = errors.New("invalid request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, query.ErrInvalidFilterValue),
		errors.Is(err, query.ErrInvalidSkip),
		errors.Is(err, query.ErrInvalidLimit),
		errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidName),
		errors.Is(err, employee.ErrInvalidCPF),
		errors.Is(err, employee.ErrInvalidArrivalTime),
		errors.Is(err, employee.ErrInvalidExitTime),
		errors.Is(err, employee.ErrInvalidWorkingHours),
		errors.Is(err, card.ErrInvalidID),
		errors.Is(err, card.ErrInvalidEmployeeID),
		errors.Is(err, timerecord.ErrInvalidID),
		errors.Is(err, timerecord.ErrInvalidEmployeeID),
		errors.Is(err, timerecord.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, employee.ErrEmployeeNotFound),
		errors.Is(err, card.ErrEmployeeNotFound),
		errors.Is(err, card.ErrCardNotFound),
		errors.Is(err, timerecord.ErrEmployeeNotFound),
		errors.Is(err, timerecord.ErrTimeRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, employee.ErrCPFAlreadyExists),
		errors.Is(err, card.ErrUnassignedCardExists),
		errors.Is(err, card.ErrCardAlreadyAssigned),
		errors.Is(err, card.ErrEmployeeHasNoCard),
		errors.Is(err, pgdb.ErrSerializationFailure):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError はエラーを HTTP ステータスに変換して返却します。500 の詳細はログにのみ出力します。
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestId", middleware.GetRequestID(r.Context()),
			"err", err,
		)
		message = "internal server error"
	}

	writeJSON(w, status, errorEnvelope{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}
