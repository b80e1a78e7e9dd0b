package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/chronos/internal/core/employee"
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

// EmployeeLookup は従業員の存在確認に利用する従業員台帳の参照口です。
type EmployeeLookup interface {
	GetEmployee(ctx context.Context, in employee.GetEmployeeInput) (*employee.Employee, error)
}

// Service はカードの割り当てに関する不変条件を守るユースケースです。
type Service struct {
	repo      Repository
	employees EmployeeLookup
	clock     Clock
	tx        TransactionManager
}

// UseCase はカードユースケースの公開インターフェースです。
type UseCase interface {
	CreateCard(ctx context.Context, in CreateCardInput) (*Card, error)
	ActivateCard(ctx context.Context, in ActivateCardInput) (*Card, error)
	DeleteCard(ctx context.Context, in DeleteCardInput) (string, error)
	GetCard(ctx context.Context, in GetCardInput) (*Card, error)
	ListCards(ctx context.Context, in ListCardsInput) (*query.Result[Card], error)
}

// NewService は Service を生成します。
func NewService(repo Repository, employees EmployeeLookup, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, employees: employees, clock: clock, tx: tx}
}

// CreateCardInput はカード登録時の入力です。
type CreateCardInput struct {
	EmployeeID int64
}

// ActivateCardInput はカード有効化時の入力です。
type ActivateCardInput struct {
	EmployeeID int64
}

// DeleteCardInput はカード削除時の入力です。
type DeleteCardInput struct {
	EmployeeID int64
}

// GetCardInput はカード取得時の入力です。
type GetCardInput struct {
	ID     int64
	Fields query.Projection
}

// ListCardsInput は一覧取得時の入力です。
type ListCardsInput struct {
	Filter query.Filter
	Page   query.Page
	Fields query.Projection
}

// CreateCard は従業員に未割り当てのカードを登録します。
// システム全体で未割り当てカードが既に存在する場合、または従業員がカードを保有している場合は失敗します。
func (s *Service) CreateCard(ctx context.Context, in CreateCardInput) (*Card, error) {
	if in.EmployeeID <= 0 {
		return nil, fmt.Errorf("employee id: %w", ErrInvalidEmployeeID)
	}

	var created *Card
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmployeeExists(txCtx, in.EmployeeID); err != nil {
			return err
		}

		unassigned, err := s.findOptional(s.repo.FindUnassigned(txCtx))
		if err != nil {
			return err
		}
		if unassigned != nil {
			return fmt.Errorf("%w: assign %s's card or delete it first", ErrUnassignedCardExists, holderName(unassigned))
		}

		owned, err := s.findOptional(s.repo.FindByEmployeeID(txCtx, in.EmployeeID))
		if err != nil {
			return err
		}
		if owned != nil {
			return fmt.Errorf("%w: the employee %s already has a card", ErrCardAlreadyAssigned, holderName(owned))
		}

		result, err := s.repo.Create(txCtx, &Card{
			EmployeeID: in.EmployeeID,
			Active:     false,
			CreatedAt:  s.clock.Now(),
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

// ActivateCard は従業員が保有するカードを有効化します。
func (s *Service) ActivateCard(ctx context.Context, in ActivateCardInput) (*Card, error) {
	if in.EmployeeID <= 0 {
		return nil, fmt.Errorf("employee id: %w", ErrInvalidEmployeeID)
	}

	var activated *Card
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		owned, err := s.ownedCard(txCtx, in.EmployeeID, "to activate")
		if err != nil {
			return err
		}

		now := s.clock.Now()
		owned.Active = true
		owned.UpdatedAt = &now

		result, err := s.repo.Update(txCtx, owned)
		if err != nil {
			return err
		}

		activated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return activated, nil
}

// DeleteCard は従業員が保有するカードを削除し、確認メッセージを返します。
func (s *Service) DeleteCard(ctx context.Context, in DeleteCardInput) (string, error) {
	if in.EmployeeID <= 0 {
		return "", fmt.Errorf("employee id: %w", ErrInvalidEmployeeID)
	}

	var deletedID int64
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		owned, err := s.ownedCard(txCtx, in.EmployeeID, "")
		if err != nil {
			return err
		}

		if err := s.repo.Delete(txCtx, owned.ID); err != nil {
			return err
		}

		deletedID = owned.ID
		return nil
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Card with ID %d deleted", deletedID), nil
}

// GetCard はカードを取得します。
func (s *Service) GetCard(ctx context.Context, in GetCardInput) (*Card, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Card
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, in.ID, in.Fields)
		if errors.Is(err, ErrCardNotFound) {
			return fmt.Errorf("%w: card with ID %d", ErrCardNotFound, in.ID)
		}
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

// ListCards はカードの一覧を取得します。
func (s *Service) ListCards(ctx context.Context, in ListCardsInput) (*query.Result[Card], error) {
	page, err := query.NormalizePage(in.Page)
	if err != nil {
		return nil, err
	}

	var result *query.Result[Card]
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		cards, total, err := s.repo.List(txCtx, in.Filter, page, in.Fields)
		if err != nil {
			return err
		}
		result = &query.Result[Card]{Items: cards, Total: total, Page: page}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) ensureEmployeeExists(ctx context.Context, employeeID int64) error {
	_, err := s.employees.GetEmployee(ctx, employee.GetEmployeeInput{
		ID:     employeeID,
		Fields: query.Projection{employee.FieldID},
	})
	return err
}

func (s *Service) ownedCard(ctx context.Context, employeeID int64, purpose string) (*Card, error) {
	if err := s.ensureEmployeeExists(ctx, employeeID); err != nil {
		return nil, err
	}

	owned, err := s.findOptional(s.repo.FindByEmployeeID(ctx, employeeID))
	if err != nil {
		return nil, err
	}
	if owned == nil {
		if purpose != "" {
			return nil, fmt.Errorf("%w %s: employee with ID %d", ErrEmployeeHasNoCard, purpose, employeeID)
		}
		return nil, fmt.Errorf("%w: employee with ID %d", ErrEmployeeHasNoCard, employeeID)
	}
	return owned, nil
}

// findOptional は ErrCardNotFound を「存在しない」として nil に読み替えます。
func (s *Service) findOptional(c *Card, err error) (*Card, error) {
	if errors.Is(err, ErrCardNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func holderName(c *Card) string {
	if c.Employee != nil {
		if parts := strings.Fields(c.Employee.Name); len(parts) > 0 {
			return parts[0]
		}
	}
	return fmt.Sprintf("employee %d", c.EmployeeID)
}
