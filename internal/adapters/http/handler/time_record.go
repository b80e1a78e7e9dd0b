package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	"github.com/ogurasousui/chronos/internal/platform/metrics"
)

// TimeRecordHandler は打刻 API の HTTP 実装です。
type TimeRecordHandler struct {
	svc     timerecord.UseCase
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTimeRecordHandler は TimeRecordHandler を生成します。
func NewTimeRecordHandler(svc timerecord.UseCase, logger *slog.Logger, m *metrics.Metrics) *TimeRecordHandler {
	return &TimeRecordHandler{svc: svc, logger: logger, metrics: m}
}

// Register はルートを登録します。
func (h *TimeRecordHandler) Register(r chi.Router) {
	r.Route("/time-records", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/employee/{id}", h.create)
	})
}

func (h *TimeRecordHandler) create(w http.ResponseWriter, r *http.Request) {
	employeeID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.RecordTimeRecord(r.Context(), timerecord.RecordTimeRecordInput{EmployeeID: employeeID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.metrics.IncTimeRecordCreated(string(created.Type))
	writeData(w, http.StatusCreated, timeRecordView(created, nil))
}

func (h *TimeRecordHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	fields := requestedFields(r, timerecord.AllowedFields)
	found, err := h.svc.GetTimeRecord(r.Context(), timerecord.GetTimeRecordInput{ID: id, Fields: fields})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, timeRecordView(found, fields))
}

func (h *TimeRecordHandler) list(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filter, err := query.BuildFilter(params.raw, timerecord.RecognizeFilter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fields := query.BuildProjection(params.fields, timerecord.AllowedFields)

	result, err := h.svc.ListTimeRecords(r.Context(), timerecord.ListTimeRecordsInput{
		Filter: filter,
		Page:   params.page,
		Fields: fields,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, rec := range result.Items {
		items = append(items, timeRecordView(rec, fields))
	}
	writeList(w, items, result.Page, result.Total)
}

func timeRecordView(rec *timerecord.TimeRecord, fields query.Projection) map[string]any {
	view := make(map[string]any, len(timerecord.AllowedFields))
	if fields.Includes(timerecord.FieldID) {
		view[timerecord.FieldID] = rec.ID
	}
	if fields.Includes(timerecord.FieldEmployeeID) {
		view[timerecord.FieldEmployeeID] = rec.EmployeeID
	}
	if fields.Includes(timerecord.FieldDateTime) {
		view[timerecord.FieldDateTime] = rec.DateTime
	}
	if fields.Includes(timerecord.FieldType) {
		view[timerecord.FieldType] = rec.Type
	}
	if fields.Includes(timerecord.FieldCreatedAt) {
		view[timerecord.FieldCreatedAt] = rec.CreatedAt
	}
	if fields.Includes(timerecord.FieldUpdatedAt) {
		view[timerecord.FieldUpdatedAt] = rec.UpdatedAt
	}
	return view
}
