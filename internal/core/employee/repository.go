package employee

import (
	"context"

	"github.com/ogurasousui/chronos/internal/core/query"
)

// Repository は従業員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64, fields query.Projection) (*Employee, error)
	FindByCPF(ctx context.Context, cpf string) (*Employee, error)
	List(ctx context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*Employee, int, error)
}
