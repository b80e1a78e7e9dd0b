//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repo "github.com/ogurasousui/chronos/internal/adapters/repository/postgres"
	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	"github.com/ogurasousui/chronos/internal/platform/config"
	pg "github.com/ogurasousui/chronos/internal/platform/db/postgres"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stubClock) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

type services struct {
	employees   *employee.Service
	cards       *card.Service
	timeRecords *timerecord.Service
	clock       *stubClock
}

func newServices(t *testing.T) services {
	t.Helper()

	pool, cfg := startPostgres(t)
	loc, err := config.ParseUTCOffset("-03:00")
	if err != nil {
		t.Fatalf("ParseUTCOffset error: %v", err)
	}

	clock := &stubClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, loc)}
	tx := pg.NewTransactionManager(pool, cfg.IsolationLevel)

	employees := employee.NewService(repo.NewEmployeeRepository(pool), clock, tx)
	cards := card.NewService(repo.NewCardRepository(pool), employees, clock, tx)
	timeRecords := timerecord.NewService(repo.NewTimeRecordRepository(pool, loc), employees, clock, tx, timerecord.Options{Location: loc})

	return services{employees: employees, cards: cards, timeRecords: timeRecords, clock: clock}
}

func TestAttendanceIntegration(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	t.Run("seeded employees are listed", func(t *testing.T) {
		res, err := svc.employees.ListEmployees(ctx, employee.ListEmployeesInput{Page: query.Page{Limit: 50}})
		if err != nil {
			t.Fatalf("ListEmployees error: %v", err)
		}
		if res.Total < 6 {
			t.Fatalf("expected seeded employees, got %d", res.Total)
		}
	})

	t.Run("end to end scenario", func(t *testing.T) {
		a, err := svc.employees.CreateEmployee(ctx, employee.CreateEmployeeInput{Name: "Alice Santos", CPF: "11111111111", ArrivalTime: "08:00", ExitTime: "17:00"})
		if err != nil {
			t.Fatalf("CreateEmployee error: %v", err)
		}
		b, err := svc.employees.CreateEmployee(ctx, employee.CreateEmployeeInput{Name: "Bruno Rocha", CPF: "22222222222", ArrivalTime: "08:00", ExitTime: "17:00"})
		if err != nil {
			t.Fatalf("CreateEmployee error: %v", err)
		}

		if _, err := svc.employees.CreateEmployee(ctx, employee.CreateEmployeeInput{Name: "Copy", CPF: "11111111111", ArrivalTime: "08:00", ExitTime: "17:00"}); !errors.Is(err, employee.ErrCPFAlreadyExists) {
			t.Fatalf("expected ErrCPFAlreadyExists, got %v", err)
		}

		if _, err := svc.cards.CreateCard(ctx, card.CreateCardInput{EmployeeID: a.ID}); err != nil {
			t.Fatalf("CreateCard error: %v", err)
		}

		first, err := svc.timeRecords.RecordTimeRecord(ctx, timerecord.RecordTimeRecordInput{EmployeeID: a.ID})
		if err != nil || first.Type != timerecord.TypeArrival {
			t.Fatalf("expected ARRIVAL, got %+v (%v)", first, err)
		}

		svc.clock.Set(svc.clock.Now().Add(8 * time.Hour))
		second, err := svc.timeRecords.RecordTimeRecord(ctx, timerecord.RecordTimeRecordInput{EmployeeID: a.ID})
		if err != nil || second.Type != timerecord.TypeExit {
			t.Fatalf("expected EXIT, got %+v (%v)", second, err)
		}

		if _, err := svc.cards.CreateCard(ctx, card.CreateCardInput{EmployeeID: b.ID}); !errors.Is(err, card.ErrUnassignedCardExists) {
			t.Fatalf("expected ErrUnassignedCardExists, got %v", err)
		}

		svc.clock.Set(svc.clock.Now().Add(24 * time.Hour))
		nextDay, err := svc.timeRecords.RecordTimeRecord(ctx, timerecord.RecordTimeRecordInput{EmployeeID: a.ID})
		if err != nil || nextDay.Type != timerecord.TypeArrival {
			t.Fatalf("expected ARRIVAL on a new day, got %+v (%v)", nextDay, err)
		}

		if _, err := svc.cards.ActivateCard(ctx, card.ActivateCardInput{EmployeeID: a.ID}); err != nil {
			t.Fatalf("ActivateCard error: %v", err)
		}
		if _, err := svc.cards.CreateCard(ctx, card.CreateCardInput{EmployeeID: b.ID}); err != nil {
			t.Fatalf("CreateCard for B after activation error: %v", err)
		}

		msg, err := svc.employees.DeleteEmployee(ctx, employee.DeleteEmployeeInput{ID: b.ID})
		if err != nil {
			t.Fatalf("DeleteEmployee error: %v", err)
		}
		if msg == "" {
			t.Fatalf("expected confirmation message")
		}
		res, err := svc.cards.ListCards(ctx, card.ListCardsInput{Filter: query.NewFilter(query.Equal(card.FieldEmployeeID, b.ID)), Page: query.Page{Limit: 10}})
		if err != nil || res.Total != 0 {
			t.Fatalf("expected cascade delete of B's card, got %+v (%v)", res, err)
		}
	})

	t.Run("concurrent card creation yields a single unassigned card", func(t *testing.T) {
		ids := make([]int64, 0, 6)
		for i := 0; i < 6; i++ {
			e, err := svc.employees.CreateEmployee(ctx, employee.CreateEmployeeInput{Name: "Worker Test", CPF: cpf(900 + i), ArrivalTime: "07:00", ExitTime: "15:00"})
			if err != nil {
				t.Fatalf("CreateEmployee error: %v", err)
			}
			ids = append(ids, e.ID)
		}

		// 既存の未割り当てカードを有効化してから競合させます。
		unassigned, err := svc.cards.ListCards(ctx, card.ListCardsInput{Filter: query.NewFilter(query.Equal(card.FieldActive, false)), Page: query.Page{Limit: 10}})
		if err != nil {
			t.Fatalf("ListCards error: %v", err)
		}
		for _, c := range unassigned.Items {
			if _, err := svc.cards.ActivateCard(ctx, card.ActivateCardInput{EmployeeID: c.EmployeeID}); err != nil {
				t.Fatalf("ActivateCard error: %v", err)
			}
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for _, id := range ids {
			wg.Add(1)
			go func(employeeID int64) {
				defer wg.Done()
				_, err := svc.cards.CreateCard(ctx, card.CreateCardInput{EmployeeID: employeeID})
				if err != nil && !errors.Is(err, card.ErrUnassignedCardExists) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}(id)
		}
		wg.Wait()

		if successes != 1 {
			t.Fatalf("expected exactly one card to be created, got %d", successes)
		}
	})

	t.Run("concurrent records alternate", func(t *testing.T) {
		e, err := svc.employees.CreateEmployee(ctx, employee.CreateEmployeeInput{Name: "Paula Reis", CPF: "33333333333", ArrivalTime: "07:00", ExitTime: "15:00"})
		if err != nil {
			t.Fatalf("CreateEmployee error: %v", err)
		}

		const calls = 10
		var wg sync.WaitGroup
		for i := 0; i < calls; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.timeRecords.RecordTimeRecord(ctx, timerecord.RecordTimeRecordInput{EmployeeID: e.ID}); err != nil {
					t.Errorf("RecordTimeRecord error: %v", err)
				}
			}()
		}
		wg.Wait()

		res, err := svc.timeRecords.ListTimeRecords(ctx, timerecord.ListTimeRecordsInput{
			Filter: query.NewFilter(query.Equal(timerecord.FieldEmployeeID, e.ID)),
			Page:   query.Page{Limit: calls},
		})
		if err != nil {
			t.Fatalf("ListTimeRecords error: %v", err)
		}
		if res.Total != calls {
			t.Fatalf("expected %d records, got %d", calls, res.Total)
		}
		for i, rec := range res.Items {
			want := timerecord.TypeArrival
			if i%2 == 1 {
				want = timerecord.TypeExit
			}
			if rec.Type != want {
				t.Fatalf("record %d: expected %s, got %s", i, want, rec.Type)
			}
		}
	})
}
