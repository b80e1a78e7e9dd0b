package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
	pgdb "github.com/ogurasousui/chronos/internal/platform/db/postgres"
)

const employeeReturning = `id, name, cpf, arrival_time, exit_time, created_at, updated_at`

// EmployeeRepository は PostgreSQL を利用した従業員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は従業員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (name, cpf, arrival_time, exit_time, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+employeeReturning,
		e.Name,
		e.CPF,
		e.ArrivalTime,
		e.ExitTime,
		e.CreatedAt,
	)

	created, err := scanEmployee(row, employee.AllowedFields)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Update は従業員情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET name = $1,
               cpf = $2,
               arrival_time = $3,
               exit_time = $4,
               updated_at = $5
         WHERE id = $6
        RETURNING `+employeeReturning,
		e.Name,
		e.CPF,
		e.ArrivalTime,
		e.ExitTime,
		e.UpdatedAt,
		e.ID,
	)

	updated, err := scanEmployee(row, employee.AllowedFields)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// Delete は従業員を削除します。カードと打刻は外部キーによって連鎖削除されます。
func (r *EmployeeRepository) Delete(ctx context.Context, id int64) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// FindByID は ID で従業員を取得します。fields が指定された場合はその列のみ読み込みます。
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64, fields query.Projection) (*employee.Employee, error) {
	selected := selectedFields(fields, employee.AllowedFields)
	columns, err := columnList(selected, employeeColumn)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+columns+` FROM employees WHERE id = $1 LIMIT 1`, id)

	found, err := scanEmployee(row, selected)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByCPF は CPF で従業員を取得します。
func (r *EmployeeRepository) FindByCPF(ctx context.Context, cpf string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+employeeReturning+` FROM employees WHERE cpf = $1 LIMIT 1`, cpf)

	found, err := scanEmployee(row, employee.AllowedFields)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// List は従業員の一覧とフィルタに一致した総件数を取得します。
func (r *EmployeeRepository) List(ctx context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*employee.Employee, int, error) {
	selected := selectedFields(fields, employee.AllowedFields)
	columns, err := columnList(selected, employeeColumn)
	if err != nil {
		return nil, 0, err
	}

	var b argBinder
	where, err := whereClause(&b, filter, employeeColumn)
	if err != nil {
		return nil, 0, err
	}
	whereArgs := append([]any(nil), b.args...)

	sqlText := `SELECT ` + columns + `, COUNT(*) OVER() FROM employees` + where +
		` ORDER BY id ASC LIMIT ` + b.bind(page.Limit) + ` OFFSET ` + b.bind(page.Skip)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, sqlText, b.args...)
	if err != nil {
		return nil, 0, translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0, page.Limit)
	total := 0
	for rows.Next() {
		emp, err := scanEmployee(rows, selected, &total)
		if err != nil {
			return nil, 0, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateEmployeePgError(err)
	}

	if len(employees) == 0 && page.Skip > 0 {
		total, err = countRows(ctx, exec, "employees", where, whereArgs)
		if err != nil {
			return nil, 0, translateEmployeePgError(err)
		}
	}

	return employees, total, nil
}

func employeeColumn(field string) (string, bool) {
	switch field {
	case employee.FieldID:
		return "id", true
	case employee.FieldName:
		return "name", true
	case employee.FieldCPF:
		return "cpf", true
	case employee.FieldArrivalTime:
		return "arrival_time", true
	case employee.FieldExitTime:
		return "exit_time", true
	case employee.FieldCreatedAt:
		return "created_at", true
	case employee.FieldUpdatedAt:
		return "updated_at", true
	default:
		return "", false
	}
}

// scanEmployee は fields の順に列を読み込みます。extra は末尾の追加列 (件数など) の格納先です。
func scanEmployee(row pgx.Row, fields []string, extra ...any) (*employee.Employee, error) {
	var (
		e         employee.Employee
		updatedAt sql.NullTime
	)

	dest := make([]any, 0, len(fields)+len(extra))
	for _, f := range fields {
		switch f {
		case employee.FieldID:
			dest = append(dest, &e.ID)
		case employee.FieldName:
			dest = append(dest, &e.Name)
		case employee.FieldCPF:
			dest = append(dest, &e.CPF)
		case employee.FieldArrivalTime:
			dest = append(dest, &e.ArrivalTime)
		case employee.FieldExitTime:
			dest = append(dest, &e.ExitTime)
		case employee.FieldCreatedAt:
			dest = append(dest, &e.CreatedAt)
		case employee.FieldUpdatedAt:
			dest = append(dest, &updatedAt)
		default:
			return nil, fmt.Errorf("postgres: unsupported field %q", f)
		}
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	e.UpdatedAt = timePtr(updatedAt)
	return &e, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return employee.ErrCPFAlreadyExists
		case checkViolationCode:
			return employee.ErrInvalidWorkingHours
		}
	}

	return err
}
