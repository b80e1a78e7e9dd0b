package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
)

const hourPattern = `^([01][0-9]|2[0-3]):[0-5][0-9]$`

// EmployeeHandler は従業員 API の HTTP 実装です。
type EmployeeHandler struct {
	svc          employee.UseCase
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(svc employee.UseCase, logger *slog.Logger, maxBodyBytes int64) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, logger: logger, maxBodyBytes: maxBodyBytes}
}

// Register はルートを登録します。
func (h *EmployeeHandler) Register(r chi.Router) {
	r.Route("/employee", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type createEmployeeRequest struct {
	Name        string `json:"name"`
	CPF         string `json:"cpf"`
	ArrivalTime string `json:"arrivalTime"`
	ExitTime    string `json:"exitTime"`
}

type updateEmployeeRequest struct {
	Name        *string `json:"name"`
	CPF         *string `json:"cpf"`
	ArrivalTime *string `json:"arrivalTime"`
	ExitTime    *string `json:"exitTime"`
}

func (h *EmployeeHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateEmployeeFields(&req.Name, &req.CPF, &req.ArrivalTime, &req.ExitTime); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.CreateEmployee(r.Context(), employee.CreateEmployeeInput{
		Name:        req.Name,
		CPF:         req.CPF,
		ArrivalTime: req.ArrivalTime,
		ExitTime:    req.ExitTime,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, employeeView(created, nil))
}

func (h *EmployeeHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	fields := requestedFields(r, employee.AllowedFields)
	found, err := h.svc.GetEmployee(r.Context(), employee.GetEmployeeInput{ID: id, Fields: fields})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, employeeView(found, fields))
}

func (h *EmployeeHandler) list(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filter, err := query.BuildFilter(params.raw, employee.RecognizeFilter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fields := query.BuildProjection(params.fields, employee.AllowedFields)

	result, err := h.svc.ListEmployees(r.Context(), employee.ListEmployeesInput{
		Filter: filter,
		Page:   params.page,
		Fields: fields,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, e := range result.Items {
		items = append(items, employeeView(e, fields))
	}
	writeList(w, items, result.Page, result.Total)
}

func (h *EmployeeHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateEmployeeRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateEmployeeFields(req.Name, req.CPF, req.ArrivalTime, req.ExitTime); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.svc.UpdateEmployee(r.Context(), employee.UpdateEmployeeInput{
		ID:          id,
		Name:        req.Name,
		CPF:         req.CPF,
		ArrivalTime: req.ArrivalTime,
		ExitTime:    req.ExitTime,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, employeeView(updated, nil))
}

func (h *EmployeeHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	message, err := h.svc.DeleteEmployee(r.Context(), employee.DeleteEmployeeInput{ID: id})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, message)
}

// validateEmployeeFields は nil でない項目のみ検証します。
func validateEmployeeFields(name, cpf, arrival, exit *string) error {
	if name != nil && !govalidator.RuneLength(strings.TrimSpace(*name), "1", "150") {
		return fmt.Errorf("%w: name must have between 1 and 150 characters", errBadRequest)
	}
	if cpf != nil && (!govalidator.IsNumeric(*cpf) || !govalidator.StringLength(*cpf, "11", "11")) {
		return fmt.Errorf("%w: cpf must have exactly 11 numeric characters", errBadRequest)
	}
	if arrival != nil && !govalidator.Matches(*arrival, hourPattern) {
		return fmt.Errorf("%w: arrivalTime must be in HH:MM format", errBadRequest)
	}
	if exit != nil && !govalidator.Matches(*exit, hourPattern) {
		return fmt.Errorf("%w: exitTime must be in HH:MM format", errBadRequest)
	}
	return nil
}

func employeeView(e *employee.Employee, fields query.Projection) map[string]any {
	view := make(map[string]any, len(employee.AllowedFields))
	if fields.Includes(employee.FieldID) {
		view[employee.FieldID] = e.ID
	}
	if fields.Includes(employee.FieldName) {
		view[employee.FieldName] = e.Name
	}
	if fields.Includes(employee.FieldCPF) {
		view[employee.FieldCPF] = e.CPF
	}
	if fields.Includes(employee.FieldArrivalTime) {
		view[employee.FieldArrivalTime] = e.ArrivalTime
	}
	if fields.Includes(employee.FieldExitTime) {
		view[employee.FieldExitTime] = e.ExitTime
	}
	if fields.Includes(employee.FieldCreatedAt) {
		view[employee.FieldCreatedAt] = e.CreatedAt
	}
	if fields.Includes(employee.FieldUpdatedAt) {
		view[employee.FieldUpdatedAt] = e.UpdatedAt
	}
	return view
}
