package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/query"
	pgdb "github.com/ogurasousui/chronos/internal/platform/db/postgres"
)

const (
	cardReturning = `id, employee_id, active, created_at, updated_at`

	cardSingleUnassignedIndex = "cards_single_unassigned_idx"
	cardEmployeeUniqueKey     = "cards_employee_id_key"
)

// CardRepository は PostgreSQL を利用したカード永続化の実装です。
type CardRepository struct {
	pool pgdb.Queryer
}

// NewCardRepository は CardRepository を生成します。
func NewCardRepository(pool pgdb.Queryer) *CardRepository {
	return &CardRepository{pool: pool}
}

// Create はカードを登録します。一意制約違反は割り当て競合として返却します。
func (r *CardRepository) Create(ctx context.Context, c *card.Card) (*card.Card, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO cards (employee_id, active, created_at)
        VALUES ($1, $2, $3)
        RETURNING `+cardReturning,
		c.EmployeeID,
		c.Active,
		c.CreatedAt,
	)

	created, err := scanCard(row, card.AllowedFields)
	if err != nil {
		return nil, translateCardPgError(err)
	}
	return created, nil
}

// Update はカードの状態を更新します。
func (r *CardRepository) Update(ctx context.Context, c *card.Card) (*card.Card, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE cards
           SET active = $1,
               updated_at = $2
         WHERE id = $3
        RETURNING `+cardReturning,
		c.Active,
		c.UpdatedAt,
		c.ID,
	)

	updated, err := scanCard(row, card.AllowedFields)
	if err != nil {
		return nil, translateCardPgError(err)
	}
	updated.Employee = c.Employee
	return updated, nil
}

// Delete はカードを削除します。
func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return translateCardPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return card.ErrCardNotFound
	}
	return nil
}

// FindByID は ID でカードを取得します。
func (r *CardRepository) FindByID(ctx context.Context, id int64, fields query.Projection) (*card.Card, error) {
	selected := selectedFields(fields, card.AllowedFields)
	columns, err := columnList(selected, cardColumn)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+columns+` FROM cards WHERE id = $1 LIMIT 1`, id)

	found, err := scanCard(row, selected)
	if err != nil {
		return nil, translateCardPgError(err)
	}
	return found, nil
}

// FindUnassigned は未割り当て (active = false) のカードを保有者の情報と共に返します。
func (r *CardRepository) FindUnassigned(ctx context.Context) (*card.Card, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT c.id, c.employee_id, c.active, c.created_at, c.updated_at, e.id, e.name
          FROM cards c
          JOIN employees e ON e.id = c.employee_id
         WHERE c.active = false
         LIMIT 1
    `)

	found, err := scanCardWithEmployee(row)
	if err != nil {
		return nil, translateCardPgError(err)
	}
	return found, nil
}

// FindByEmployeeID は従業員が保有するカードを返します。
func (r *CardRepository) FindByEmployeeID(ctx context.Context, employeeID int64) (*card.Card, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT c.id, c.employee_id, c.active, c.created_at, c.updated_at, e.id, e.name
          FROM cards c
          JOIN employees e ON e.id = c.employee_id
         WHERE c.employee_id = $1
         LIMIT 1
    `, employeeID)

	found, err := scanCardWithEmployee(row)
	if err != nil {
		return nil, translateCardPgError(err)
	}
	return found, nil
}

// List はカードの一覧とフィルタに一致した総件数を取得します。
func (r *CardRepository) List(ctx context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*card.Card, int, error) {
	selected := selectedFields(fields, card.AllowedFields)
	columns, err := columnList(selected, cardColumn)
	if err != nil {
		return nil, 0, err
	}

	var b argBinder
	where, err := whereClause(&b, filter, cardColumn)
	if err != nil {
		return nil, 0, err
	}
	whereArgs := append([]any(nil), b.args...)

	sqlText := `SELECT ` + columns + `, COUNT(*) OVER() FROM cards` + where +
		` ORDER BY id ASC LIMIT ` + b.bind(page.Limit) + ` OFFSET ` + b.bind(page.Skip)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, sqlText, b.args...)
	if err != nil {
		return nil, 0, translateCardPgError(err)
	}
	defer rows.Close()

	cards := make([]*card.Card, 0, page.Limit)
	total := 0
	for rows.Next() {
		c, err := scanCard(rows, selected, &total)
		if err != nil {
			return nil, 0, translateCardPgError(err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateCardPgError(err)
	}

	if len(cards) == 0 && page.Skip > 0 {
		total, err = countRows(ctx, exec, "cards", where, whereArgs)
		if err != nil {
			return nil, 0, translateCardPgError(err)
		}
	}

	return cards, total, nil
}

func cardColumn(field string) (string, bool) {
	switch field {
	case card.FieldID:
		return "id", true
	case card.FieldEmployeeID:
		return "employee_id", true
	case card.FieldActive:
		return "active", true
	case card.FieldCreatedAt:
		return "created_at", true
	case card.FieldUpdatedAt:
		return "updated_at", true
	default:
		return "", false
	}
}

func scanCard(row pgx.Row, fields []string, extra ...any) (*card.Card, error) {
	var (
		c         card.Card
		updatedAt sql.NullTime
	)

	dest := make([]any, 0, len(fields)+len(extra))
	for _, f := range fields {
		switch f {
		case card.FieldID:
			dest = append(dest, &c.ID)
		case card.FieldEmployeeID:
			dest = append(dest, &c.EmployeeID)
		case card.FieldActive:
			dest = append(dest, &c.Active)
		case card.FieldCreatedAt:
			dest = append(dest, &c.CreatedAt)
		case card.FieldUpdatedAt:
			dest = append(dest, &updatedAt)
		default:
			return nil, fmt.Errorf("postgres: unsupported field %q", f)
		}
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, card.ErrCardNotFound
		}
		return nil, err
	}

	c.UpdatedAt = timePtr(updatedAt)
	return &c, nil
}

func scanCardWithEmployee(row pgx.Row) (*card.Card, error) {
	var (
		c         card.Card
		updatedAt sql.NullTime
		holder    card.EmployeeSnapshot
	)

	if err := row.Scan(
		&c.ID,
		&c.EmployeeID,
		&c.Active,
		&c.CreatedAt,
		&updatedAt,
		&holder.ID,
		&holder.Name,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, card.ErrCardNotFound
		}
		return nil, err
	}

	c.UpdatedAt = timePtr(updatedAt)
	c.Employee = &holder
	return &c, nil
}

func translateCardPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return card.ErrCardNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			switch pgErr.ConstraintName {
			case cardSingleUnassignedIndex:
				return card.ErrUnassignedCardExists
			case cardEmployeeUniqueKey:
				return card.ErrCardAlreadyAssigned
			default:
				return err
			}
		case foreignKeyViolationCode:
			return card.ErrEmployeeNotFound
		}
	}

	return err
}
