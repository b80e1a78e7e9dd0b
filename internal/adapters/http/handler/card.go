package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/platform/metrics"
)

// CardHandler はカード API の HTTP 実装です。
type CardHandler struct {
	svc     card.UseCase
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCardHandler は CardHandler を生成します。
func NewCardHandler(svc card.UseCase, logger *slog.Logger, m *metrics.Metrics) *CardHandler {
	return &CardHandler{svc: svc, logger: logger, metrics: m}
}

// Register はルートを登録します。
func (h *CardHandler) Register(r chi.Router) {
	r.Route("/card", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/employee/{id}", h.create)
		r.Delete("/employee/{id}", h.delete)
		r.Patch("/activate/employee/{id}", h.activate)
	})
}

func (h *CardHandler) create(w http.ResponseWriter, r *http.Request) {
	employeeID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.CreateCard(r.Context(), card.CreateCardInput{EmployeeID: employeeID})
	if err != nil {
		if errors.Is(err, card.ErrUnassignedCardExists) || errors.Is(err, card.ErrCardAlreadyAssigned) {
			h.metrics.IncCardConflict()
		}
		writeError(w, r, h.logger, err)
		return
	}

	h.metrics.IncCardCreated()
	writeData(w, http.StatusCreated, cardView(created, nil))
}

func (h *CardHandler) activate(w http.ResponseWriter, r *http.Request) {
	employeeID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	activated, err := h.svc.ActivateCard(r.Context(), card.ActivateCardInput{EmployeeID: employeeID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, cardView(activated, nil))
}

func (h *CardHandler) delete(w http.ResponseWriter, r *http.Request) {
	employeeID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	message, err := h.svc.DeleteCard(r.Context(), card.DeleteCardInput{EmployeeID: employeeID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, message)
}

func (h *CardHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	fields := requestedFields(r, card.AllowedFields)
	found, err := h.svc.GetCard(r.Context(), card.GetCardInput{ID: id, Fields: fields})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, cardView(found, fields))
}

func (h *CardHandler) list(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filter, err := query.BuildFilter(params.raw, card.RecognizeFilter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fields := query.BuildProjection(params.fields, card.AllowedFields)

	result, err := h.svc.ListCards(r.Context(), card.ListCardsInput{
		Filter: filter,
		Page:   params.page,
		Fields: fields,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, c := range result.Items {
		items = append(items, cardView(c, fields))
	}
	writeList(w, items, result.Page, result.Total)
}

func cardView(c *card.Card, fields query.Projection) map[string]any {
	view := make(map[string]any, len(card.AllowedFields))
	if fields.Includes(card.FieldID) {
		view[card.FieldID] = c.ID
	}
	if fields.Includes(card.FieldEmployeeID) {
		view[card.FieldEmployeeID] = c.EmployeeID
	}
	if fields.Includes(card.FieldActive) {
		view[card.FieldActive] = c.Active
	}
	if fields.Includes(card.FieldCreatedAt) {
		view[card.FieldCreatedAt] = c.CreatedAt
	}
	if fields.Includes(card.FieldUpdatedAt) {
		view[card.FieldUpdatedAt] = c.UpdatedAt
	}
	return view
}
