package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var saoPaulo = time.FixedZone("UTC-03:00", -3*60*60)

func TestTimeRecordRepository_LockTimeline(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewTimeRecordRepository(mock, saoPaulo)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM employees WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM employees WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(2)).
		WillReturnError(pgx.ErrNoRows)

	if err := repo.LockTimeline(context.Background(), 1); err != nil {
		t.Fatalf("LockTimeline returned error: %v", err)
	}
	if err := repo.LockTimeline(context.Background(), 2); !errors.Is(err, timerecord.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimeRecordRepository_FindLastInWindow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewTimeRecordRepository(mock, saoPaulo)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, saoPaulo)
	to := from.AddDate(0, 0, 1).Add(-time.Millisecond)
	stamp := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`AND date_time BETWEEN $2 AND $3 ORDER BY date_time DESC, id DESC LIMIT 1`)).
		WithArgs(int64(1), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"id", "employee_id", "date_time", "type", "created_at", "updated_at"}).
			AddRow(int64(5), int64(1), stamp, "ARRIVAL", stamp, nil))

	last, err := repo.FindLastInWindow(context.Background(), 1, from, to)
	if err != nil {
		t.Fatalf("FindLastInWindow returned error: %v", err)
	}
	if last.Type != timerecord.TypeArrival {
		t.Fatalf("expected ARRIVAL, got %s", last.Type)
	}
	if last.DateTime.Location() != saoPaulo || last.DateTime.Hour() != 8 {
		t.Fatalf("expected date time in business zone, got %v", last.DateTime)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimeRecordRepository_FindLastInWindow_Empty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewTimeRecordRepository(mock, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM time_records`)).
		WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindLastInWindow(context.Background(), 1, time.Now(), time.Now())
	if !errors.Is(err, timerecord.ErrTimeRecordNotFound) {
		t.Fatalf("expected ErrTimeRecordNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimeRecordRepository_Create_MissingEmployee(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewTimeRecordRepository(mock, saoPaulo)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, saoPaulo)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO time_records (employee_id, date_time, type, created_at)`)).
		WithArgs(int64(9), now, "ARRIVAL", now).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})

	_, err = repo.Create(context.Background(), &timerecord.TimeRecord{
		EmployeeID: 9,
		DateTime:   now,
		Type:       timerecord.TypeArrival,
		CreatedAt:  now,
	})
	if !errors.Is(err, timerecord.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimeRecordRepository_List_TypeFilter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewTimeRecordRepository(mock, saoPaulo)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, type, COUNT(*) OVER() FROM time_records WHERE employee_id = $1 AND type = $2 ORDER BY id ASC LIMIT $3 OFFSET $4`)).
		WithArgs(int64(1), "EXIT", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "count"}).AddRow(int64(2), "EXIT", 1))

	filter := query.NewFilter(
		query.Equal(timerecord.FieldEmployeeID, int64(1)),
		query.Equal(timerecord.FieldType, timerecord.TypeExit),
	)
	records, total, err := repo.List(context.Background(), filter, query.Page{Limit: 10}, query.Projection{timerecord.FieldID, timerecord.FieldType})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 1 || total != 1 || records[0].Type != timerecord.TypeExit {
		t.Fatalf("unexpected result: %+v total=%d", records, total)
	}
	if !records[0].DateTime.IsZero() {
		t.Fatalf("unprojected date time must stay zero")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
