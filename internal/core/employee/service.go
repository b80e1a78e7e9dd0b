package employee

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ogurasousui/chronos/internal/core/query"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const maxNameLength = 150

var (
	cpfPattern  = regexp.MustCompile(`^\d{11}$`)
	hourPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// Service は従業員台帳に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は従業員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*query.Result[Employee], error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) (string, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateEmployeeInput は従業員登録時の入力です。
type CreateEmployeeInput struct {
	Name        string
	CPF         string
	ArrivalTime string
	ExitTime    string
}

// UpdateEmployeeInput は従業員更新時の入力です。nil のフィールドは変更しません。
type UpdateEmployeeInput struct {
	ID          int64
	Name        *string
	CPF         *string
	ArrivalTime *string
	ExitTime    *string
}

// DeleteEmployeeInput は従業員削除時の入力です。
type DeleteEmployeeInput struct {
	ID int64
}

// GetEmployeeInput は従業員取得時の入力です。
type GetEmployeeInput struct {
	ID     int64
	Fields query.Projection
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	Filter query.Filter
	Page   query.Page
	Fields query.Projection
}

// CreateEmployee は CPF の重複を確認した上で従業員を登録します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}

	cpf, err := normalizeCPF(in.CPF)
	if err != nil {
		return nil, err
	}

	arrival, exit, err := normalizeWorkingHours(in.ArrivalTime, in.ExitTime)
	if err != nil {
		return nil, err
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureCPFNotExists(txCtx, cpf, 0); err != nil {
			return err
		}

		result, err := s.repo.Create(txCtx, &Employee{
			Name:        name,
			CPF:         cpf,
			ArrivalTime: arrival,
			ExitTime:    exit,
			CreatedAt:   s.clock.Now(),
		})
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateEmployee は指定されたフィールドだけを既存の従業員に上書きします。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.findExisting(txCtx, in.ID, nil)
		if err != nil {
			return err
		}

		if in.Name != nil {
			name, err := normalizeName(*in.Name)
			if err != nil {
				return err
			}
			existing.Name = name
		}

		if in.CPF != nil {
			cpf, err := normalizeCPF(*in.CPF)
			if err != nil {
				return err
			}
			if cpf != existing.CPF {
				if err := s.ensureCPFNotExists(txCtx, cpf, existing.ID); err != nil {
					return err
				}
				existing.CPF = cpf
			}
		}

		arrival := existing.ArrivalTime
		if in.ArrivalTime != nil {
			arrival = *in.ArrivalTime
		}
		exit := existing.ExitTime
		if in.ExitTime != nil {
			exit = *in.ExitTime
		}
		arrival, exit, err = normalizeWorkingHours(arrival, exit)
		if err != nil {
			return err
		}
		existing.ArrivalTime = arrival
		existing.ExitTime = exit

		now := s.clock.Now()
		existing.UpdatedAt = &now

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteEmployee は従業員を削除し、確認メッセージを返します。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) (string, error) {
	if in.ID <= 0 {
		return "", fmt.Errorf("id: %w", ErrInvalidID)
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.findExisting(txCtx, in.ID, query.Projection{FieldID}); err != nil {
			return err
		}
		return s.repo.Delete(txCtx, in.ID)
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Employee with ID %d deleted", in.ID), nil
}

// GetEmployee は従業員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.findExisting(txCtx, in.ID, in.Fields)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListEmployees は従業員の一覧を取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*query.Result[Employee], error) {
	page, err := query.NormalizePage(in.Page)
	if err != nil {
		return nil, err
	}

	var result *query.Result[Employee]
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		employees, total, err := s.repo.List(txCtx, in.Filter, page, in.Fields)
		if err != nil {
			return err
		}
		result = &query.Result[Employee]{Items: employees, Total: total, Page: page}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// findExisting は ErrEmployeeNotFound に従業員 ID を添えて返します。
func (s *Service) findExisting(ctx context.Context, id int64, fields query.Projection) (*Employee, error) {
	found, err := s.repo.FindByID(ctx, id, fields)
	if errors.Is(err, ErrEmployeeNotFound) {
		return nil, fmt.Errorf("%w: employee with ID %d", ErrEmployeeNotFound, id)
	}
	return found, err
}

func (s *Service) ensureCPFNotExists(ctx context.Context, cpf string, selfID int64) error {
	emp, err := s.repo.FindByCPF(ctx, cpf)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil && emp.ID != selfID {
		return fmt.Errorf("%w: employee with the CPF %q already exists", ErrCPFAlreadyExists, cpf)
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func normalizeCPF(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !cpfPattern.MatchString(trimmed) {
		return "", ErrInvalidCPF
	}
	return trimmed, nil
}

func normalizeWorkingHours(arrival, exit string) (string, string, error) {
	arrival = strings.TrimSpace(arrival)
	exit = strings.TrimSpace(exit)

	if !hourPattern.MatchString(arrival) {
		return "", "", ErrInvalidArrivalTime
	}
	if !hourPattern.MatchString(exit) {
		return "", "", ErrInvalidExitTime
	}
	// HH:MM 形式はゼロ埋めされているため文字列比較で大小が決まる
	if arrival >= exit {
		return "", "", ErrInvalidWorkingHours
	}
	return arrival, exit, nil
}
