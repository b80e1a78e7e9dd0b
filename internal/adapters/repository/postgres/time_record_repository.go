package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	pgdb "github.com/ogurasousui/chronos/internal/platform/db/postgres"
)

const timeRecordReturning = `id, employee_id, date_time, type, created_at, updated_at`

// TimeRecordRepository は PostgreSQL を利用した打刻永続化の実装です。
type TimeRecordRepository struct {
	pool pgdb.Queryer
	loc  *time.Location
}

// NewTimeRecordRepository は TimeRecordRepository を生成します。
// loc を指定した場合、読み込んだ日時はそのタイムゾーンで表現されます。
func NewTimeRecordRepository(pool pgdb.Queryer, loc *time.Location) *TimeRecordRepository {
	return &TimeRecordRepository{pool: pool, loc: loc}
}

// Create は打刻を 1 件追加します。
func (r *TimeRecordRepository) Create(ctx context.Context, rec *timerecord.TimeRecord) (*timerecord.TimeRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO time_records (employee_id, date_time, type, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING `+timeRecordReturning,
		rec.EmployeeID,
		rec.DateTime,
		string(rec.Type),
		rec.CreatedAt,
	)

	created, err := r.scan(row, timerecord.AllowedFields)
	if err != nil {
		return nil, translateTimeRecordPgError(err)
	}
	return created, nil
}

// FindByID は ID で打刻を取得します。
func (r *TimeRecordRepository) FindByID(ctx context.Context, id int64, fields query.Projection) (*timerecord.TimeRecord, error) {
	selected := selectedFields(fields, timerecord.AllowedFields)
	columns, err := columnList(selected, timeRecordColumn)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+columns+` FROM time_records WHERE id = $1 LIMIT 1`, id)

	found, err := r.scan(row, selected)
	if err != nil {
		return nil, translateTimeRecordPgError(err)
	}
	return found, nil
}

// LockTimeline は従業員行を FOR UPDATE で排他し、同じ従業員の打刻を直列化します。
func (r *TimeRecordRepository) LockTimeline(ctx context.Context, employeeID int64) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var locked int64
	if err := exec.QueryRow(ctx, `SELECT id FROM employees WHERE id = $1 FOR UPDATE`, employeeID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timerecord.ErrEmployeeNotFound
		}
		return err
	}
	return nil
}

// FindLastInWindow は [from, to] の範囲で最も新しい打刻を返します。
func (r *TimeRecordRepository) FindLastInWindow(ctx context.Context, employeeID int64, from, to time.Time) (*timerecord.TimeRecord, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+timeRecordReturning+`
          FROM time_records
         WHERE employee_id = $1
           AND date_time BETWEEN $2 AND $3
         ORDER BY date_time DESC, id DESC
         LIMIT 1
    `, employeeID, from, to)

	found, err := r.scan(row, timerecord.AllowedFields)
	if err != nil {
		return nil, translateTimeRecordPgError(err)
	}
	return found, nil
}

// List は打刻の一覧とフィルタに一致した総件数を取得します。
func (r *TimeRecordRepository) List(ctx context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*timerecord.TimeRecord, int, error) {
	selected := selectedFields(fields, timerecord.AllowedFields)
	columns, err := columnList(selected, timeRecordColumn)
	if err != nil {
		return nil, 0, err
	}

	var b argBinder
	where, err := whereClause(&b, normalizeTimeRecordFilter(filter), timeRecordColumn)
	if err != nil {
		return nil, 0, err
	}
	whereArgs := append([]any(nil), b.args...)

	sqlText := `SELECT ` + columns + `, COUNT(*) OVER() FROM time_records` + where +
		` ORDER BY id ASC LIMIT ` + b.bind(page.Limit) + ` OFFSET ` + b.bind(page.Skip)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, sqlText, b.args...)
	if err != nil {
		return nil, 0, translateTimeRecordPgError(err)
	}
	defer rows.Close()

	records := make([]*timerecord.TimeRecord, 0, page.Limit)
	total := 0
	for rows.Next() {
		rec, err := r.scan(rows, selected, &total)
		if err != nil {
			return nil, 0, translateTimeRecordPgError(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateTimeRecordPgError(err)
	}

	if len(records) == 0 && page.Skip > 0 {
		total, err = countRows(ctx, exec, "time_records", where, whereArgs)
		if err != nil {
			return nil, 0, translateTimeRecordPgError(err)
		}
	}

	return records, total, nil
}

// normalizeTimeRecordFilter は種別の述語を文字列として束縛できる形に揃えます。
func normalizeTimeRecordFilter(filter query.Filter) query.Filter {
	p, ok := filter.Lookup(timerecord.FieldType)
	if !ok {
		return filter
	}
	if t, isType := p.Value.(timerecord.Type); isType {
		predicates := filter.Predicates()
		for i := range predicates {
			if predicates[i].Field == timerecord.FieldType {
				predicates[i].Value = string(t)
			}
		}
		return query.NewFilter(predicates...)
	}
	return filter
}

func timeRecordColumn(field string) (string, bool) {
	switch field {
	case timerecord.FieldID:
		return "id", true
	case timerecord.FieldEmployeeID:
		return "employee_id", true
	case timerecord.FieldDateTime:
		return "date_time", true
	case timerecord.FieldType:
		return "type", true
	case timerecord.FieldCreatedAt:
		return "created_at", true
	case timerecord.FieldUpdatedAt:
		return "updated_at", true
	default:
		return "", false
	}
}

func (r *TimeRecordRepository) scan(row pgx.Row, fields []string, extra ...any) (*timerecord.TimeRecord, error) {
	var (
		rec       timerecord.TimeRecord
		recType   string
		updatedAt sql.NullTime
	)

	dest := make([]any, 0, len(fields)+len(extra))
	for _, f := range fields {
		switch f {
		case timerecord.FieldID:
			dest = append(dest, &rec.ID)
		case timerecord.FieldEmployeeID:
			dest = append(dest, &rec.EmployeeID)
		case timerecord.FieldDateTime:
			dest = append(dest, &rec.DateTime)
		case timerecord.FieldType:
			dest = append(dest, &recType)
		case timerecord.FieldCreatedAt:
			dest = append(dest, &rec.CreatedAt)
		case timerecord.FieldUpdatedAt:
			dest = append(dest, &updatedAt)
		default:
			return nil, fmt.Errorf("postgres: unsupported field %q", f)
		}
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timerecord.ErrTimeRecordNotFound
		}
		return nil, err
	}

	rec.Type = timerecord.Type(recType)
	rec.UpdatedAt = timePtr(updatedAt)
	if r.loc != nil {
		if !rec.DateTime.IsZero() {
			rec.DateTime = rec.DateTime.In(r.loc)
		}
		if !rec.CreatedAt.IsZero() {
			rec.CreatedAt = rec.CreatedAt.In(r.loc)
		}
	}
	return &rec, nil
}

func translateTimeRecordPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return timerecord.ErrTimeRecordNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolationCode:
			return timerecord.ErrEmployeeNotFound
		case checkViolationCode:
			return timerecord.ErrInvalidType
		}
	}

	return err
}
