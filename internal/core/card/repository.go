package card

import (
	"context"

	"github.com/ogurasousui/chronos/internal/core/query"
)

// Repository はカード永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, card *Card) (*Card, error)
	Update(ctx context.Context, card *Card) (*Card, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64, fields query.Projection) (*Card, error)
	// FindUnassigned は Active=false のカードを従業員スナップショット付きで返します。
	FindUnassigned(ctx context.Context) (*Card, error)
	// FindByEmployeeID は従業員が保有するカードを従業員スナップショット付きで返します。
	FindByEmployeeID(ctx context.Context, employeeID int64) (*Card, error)
	List(ctx context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*Card, int, error)
}
