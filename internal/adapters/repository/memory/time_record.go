package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
)

// TimeRecordRepository は timerecord.Repository のインメモリ実装です。
type TimeRecordRepository struct {
	store *Store
}

func (r *TimeRecordRepository) Create(_ context.Context, rec *timerecord.TimeRecord) (*timerecord.TimeRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[rec.EmployeeID]; !ok {
		return nil, timerecord.ErrEmployeeNotFound
	}
	if !rec.Type.IsValid() {
		return nil, timerecord.ErrInvalidType
	}

	stored := *rec
	stored.ID = s.allocate("time_records")
	s.timeRecords[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *TimeRecordRepository) FindByID(_ context.Context, id int64, fields query.Projection) (*timerecord.TimeRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.timeRecords[id]
	if !ok {
		return nil, timerecord.ErrTimeRecordNotFound
	}
	return projectTimeRecord(rec, fields), nil
}

// LockTimeline は従業員の存在のみ確認します。排他は WithinReadWrite が担います。
func (r *TimeRecordRepository) LockTimeline(_ context.Context, employeeID int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[employeeID]; !ok {
		return timerecord.ErrEmployeeNotFound
	}
	return nil
}

func (r *TimeRecordRepository) FindLastInWindow(_ context.Context, employeeID int64, from, to time.Time) (*timerecord.TimeRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *timerecord.TimeRecord
	for _, rec := range s.timeRecords {
		if rec.EmployeeID != employeeID || rec.DateTime.Before(from) || rec.DateTime.After(to) {
			continue
		}
		if last == nil || rec.DateTime.After(last.DateTime) || (rec.DateTime.Equal(last.DateTime) && rec.ID > last.ID) {
			last = rec
		}
	}
	if last == nil {
		return nil, timerecord.ErrTimeRecordNotFound
	}

	out := *last
	return &out, nil
}

func (r *TimeRecordRepository) List(_ context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*timerecord.TimeRecord, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*timerecord.TimeRecord, 0, len(s.timeRecords))
	for _, rec := range s.timeRecords {
		ok, err := matchTimeRecord(rec, filter)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	window := paginate(matched, page)
	out := make([]*timerecord.TimeRecord, 0, len(window))
	for _, rec := range window {
		out = append(out, projectTimeRecord(rec, fields))
	}
	return out, len(matched), nil
}

func matchTimeRecord(rec *timerecord.TimeRecord, filter query.Filter) (bool, error) {
	for _, p := range filter.Predicates() {
		if p.Op != query.OpEqual {
			return false, fmt.Errorf("memory: unsupported operator for %q", p.Field)
		}
		switch p.Field {
		case timerecord.FieldEmployeeID:
			if want, _ := p.Value.(int64); rec.EmployeeID != want {
				return false, nil
			}
		case timerecord.FieldType:
			if want, _ := p.Value.(timerecord.Type); rec.Type != want {
				return false, nil
			}
		default:
			return false, fmt.Errorf("memory: unsupported filter field %q", p.Field)
		}
	}
	return true, nil
}

func projectTimeRecord(rec *timerecord.TimeRecord, fields query.Projection) *timerecord.TimeRecord {
	out := &timerecord.TimeRecord{}
	if fields.Includes(timerecord.FieldID) {
		out.ID = rec.ID
	}
	if fields.Includes(timerecord.FieldEmployeeID) {
		out.EmployeeID = rec.EmployeeID
	}
	if fields.Includes(timerecord.FieldDateTime) {
		out.DateTime = rec.DateTime
	}
	if fields.Includes(timerecord.FieldType) {
		out.Type = rec.Type
	}
	if fields.Includes(timerecord.FieldCreatedAt) {
		out.CreatedAt = rec.CreatedAt
	}
	if fields.Includes(timerecord.FieldUpdatedAt) && rec.UpdatedAt != nil {
		t := *rec.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
