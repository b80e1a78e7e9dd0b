package timerecord

import (
	"context"
	"time"

	"github.com/ogurasousui/chronos/internal/core/query"
)

// Repository は打刻永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, record *TimeRecord) (*TimeRecord, error)
	FindByID(ctx context.Context, id int64, fields query.Projection) (*TimeRecord, error)
	// LockTimeline は従業員の打刻列をトランザクション終了まで排他します。
	LockTimeline(ctx context.Context, employeeID int64) error
	// FindLastInWindow は [from, to] の範囲で最も新しい打刻を返します。存在しない場合は ErrTimeRecordNotFound です。
	FindLastInWindow(ctx context.Context, employeeID int64, from, to time.Time) (*TimeRecord, error)
	List(ctx context.Context, filter query.Filter, page query.Page, fields query.Projection) ([]*TimeRecord, int, error)
}

// EventPublisher は打刻作成を外部へ通知します。
type EventPublisher interface {
	PublishTimeRecordCreated(ctx context.Context, record *TimeRecord) error
}
