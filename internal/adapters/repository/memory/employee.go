package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
)

// EmployeeRepository は employee.Repository のインメモリ実装です。
type EmployeeRepository struct {
	store *Store
}

func (r *EmployeeRepository) Create(_ context.Context, e *employee.Employee) (*employee.Employee, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cpfTaken(e.CPF, 0) {
		return nil, employee.ErrCPFAlreadyExists
	}

	stored := *e
	stored.ID = s.allocate("employees")
	s.employees[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *EmployeeRepository) Update(_ context.Context, e *employee.Employee) (*employee.Employee, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[e.ID]; !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	if s.cpfTaken(e.CPF, e.ID) {
		return nil, employee.ErrCPFAlreadyExists
	}

	stored := *e
	s.employees[e.ID] = &stored

	out := stored
	return &out, nil
}

// Delete は従業員と、その従業員のカード・打刻を削除します。
func (r *EmployeeRepository) Delete(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[id]; !ok {
		return employee.ErrEmployeeNotFound
	}
	delete(s.employees, id)

	for cardID, c := range s.cards {
		if c.EmployeeID == id {
			delete(s.cards, cardID)
		}
	}
	for recordID, rec := range s.timeRecords {
		if rec.EmployeeID == id {
			delete(s.timeRecords, recordID)
		}
	}
	return nil
}

func (r *EmployeeRepository) FindByID(_ context.Context, id int64, fields query.Projection) (*employee.Employee, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	return projectEmployee(e, fields), nil
}

func (r *EmployeeRepository) FindByCPF(_ context.Context, cpf string) (*employee.Employee, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.employees {
		if e.CPF == cpf {
			out := *e
			return &out, nil
		}
	}
	return nil, employee.ErrEmployeeNotFound
}

func (r *EmployeeRepository) List(_ context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*employee.Employee, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*employee.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		ok, err := matchEmployee(e, filter)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	window := paginate(matched, page)
	out := make([]*employee.Employee, 0, len(window))
	for _, e := range window {
		out = append(out, projectEmployee(e, fields))
	}
	return out, len(matched), nil
}

func (s *Store) cpfTaken(cpf string, selfID int64) bool {
	for _, e := range s.employees {
		if e.CPF == cpf && e.ID != selfID {
			return true
		}
	}
	return false
}

func matchEmployee(e *employee.Employee, filter query.Filter) (bool, error) {
	for _, p := range filter.Predicates() {
		var value string
		switch p.Field {
		case employee.FieldCPF:
			value = e.CPF
		case employee.FieldName:
			value = e.Name
		case employee.FieldArrivalTime:
			value = e.ArrivalTime
		case employee.FieldExitTime:
			value = e.ExitTime
		default:
			return false, fmt.Errorf("memory: unsupported filter field %q", p.Field)
		}
		if !matchString(value, p) {
			return false, nil
		}
	}
	return true, nil
}

func matchString(value string, p query.Predicate) bool {
	want, _ := p.Value.(string)
	switch p.Op {
	case query.OpEqual:
		return value == want
	case query.OpContainsFold:
		return strings.Contains(strings.ToLower(value), strings.ToLower(want))
	default:
		return false
	}
}

func projectEmployee(e *employee.Employee, fields query.Projection) *employee.Employee {
	out := &employee.Employee{}
	if fields.Includes(employee.FieldID) {
		out.ID = e.ID
	}
	if fields.Includes(employee.FieldName) {
		out.Name = e.Name
	}
	if fields.Includes(employee.FieldCPF) {
		out.CPF = e.CPF
	}
	if fields.Includes(employee.FieldArrivalTime) {
		out.ArrivalTime = e.ArrivalTime
	}
	if fields.Includes(employee.FieldExitTime) {
		out.ExitTime = e.ExitTime
	}
	if fields.Includes(employee.FieldCreatedAt) {
		out.CreatedAt = e.CreatedAt
	}
	if fields.Includes(employee.FieldUpdatedAt) && e.UpdatedAt != nil {
		t := *e.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
