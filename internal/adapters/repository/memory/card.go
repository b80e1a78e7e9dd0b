package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/query"
)

// CardRepository は card.Repository のインメモリ実装です。
type CardRepository struct {
	store *Store
}

func (r *CardRepository) Create(_ context.Context, c *card.Card) (*card.Card, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCard(c); err != nil {
		return nil, err
	}

	stored := *c
	stored.ID = s.allocate("cards")
	stored.Employee = nil
	s.cards[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *CardRepository) Update(_ context.Context, c *card.Card) (*card.Card, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[c.ID]; !ok {
		return nil, card.ErrCardNotFound
	}
	if err := s.checkCard(c); err != nil {
		return nil, err
	}

	stored := *c
	stored.Employee = nil
	s.cards[c.ID] = &stored

	out := stored
	out.Employee = c.Employee
	return &out, nil
}

func (r *CardRepository) Delete(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return card.ErrCardNotFound
	}
	delete(s.cards, id)
	return nil
}

func (r *CardRepository) FindByID(_ context.Context, id int64, fields query.Projection) (*card.Card, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, card.ErrCardNotFound
	}
	return projectCard(c, fields), nil
}

func (r *CardRepository) FindUnassigned(_ context.Context) (*card.Card, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cards {
		if !c.Active {
			return s.withHolder(c), nil
		}
	}
	return nil, card.ErrCardNotFound
}

func (r *CardRepository) FindByEmployeeID(_ context.Context, employeeID int64) (*card.Card, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cards {
		if c.EmployeeID == employeeID {
			return s.withHolder(c), nil
		}
	}
	return nil, card.ErrCardNotFound
}

func (r *CardRepository) List(_ context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*card.Card, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*card.Card, 0, len(s.cards))
	for _, c := range s.cards {
		ok, err := matchCard(c, filter)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	window := paginate(matched, page)
	out := make([]*card.Card, 0, len(window))
	for _, c := range window {
		out = append(out, projectCard(c, fields))
	}
	return out, len(matched), nil
}

// checkCard は外部キー、従業員ごとの一意性、未割り当てカードの一意性を検証します。
func (s *Store) checkCard(c *card.Card) error {
	if _, ok := s.employees[c.EmployeeID]; !ok {
		return card.ErrEmployeeNotFound
	}
	for _, existing := range s.cards {
		if existing.ID == c.ID {
			continue
		}
		if existing.EmployeeID == c.EmployeeID {
			return card.ErrCardAlreadyAssigned
		}
		if !existing.Active && !c.Active {
			return card.ErrUnassignedCardExists
		}
	}
	return nil
}

func (s *Store) withHolder(c *card.Card) *card.Card {
	out := *c
	if e, ok := s.employees[c.EmployeeID]; ok {
		out.Employee = &card.EmployeeSnapshot{ID: e.ID, Name: e.Name}
	}
	return &out
}

func matchCard(c *card.Card, filter query.Filter) (bool, error) {
	for _, p := range filter.Predicates() {
		if p.Op != query.OpEqual {
			return false, fmt.Errorf("memory: unsupported operator for %q", p.Field)
		}
		switch p.Field {
		case card.FieldEmployeeID:
			if want, _ := p.Value.(int64); c.EmployeeID != want {
				return false, nil
			}
		case card.FieldActive:
			if want, _ := p.Value.(bool); c.Active != want {
				return false, nil
			}
		default:
			return false, fmt.Errorf("memory: unsupported filter field %q", p.Field)
		}
	}
	return true, nil
}

func projectCard(c *card.Card, fields query.Projection) *card.Card {
	out := &card.Card{}
	if fields.Includes(card.FieldID) {
		out.ID = c.ID
	}
	if fields.Includes(card.FieldEmployeeID) {
		out.EmployeeID = c.EmployeeID
	}
	if fields.Includes(card.FieldActive) {
		out.Active = c.Active
	}
	if fields.Includes(card.FieldCreatedAt) {
		out.CreatedAt = c.CreatedAt
	}
	if fields.Includes(card.FieldUpdatedAt) && c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
