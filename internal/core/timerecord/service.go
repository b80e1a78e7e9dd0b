package timerecord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
)

// DefaultUTCOffset は業務タイムゾーンが指定されない場合の UTC からのオフセットです。
const DefaultUTCOffset = -3 * time.Hour

// DefaultPublishTimeout は打刻イベント配信を待つ上限です。
const DefaultPublishTimeout = 5 * time.Second

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

type noopPublisher struct{}

func (noopPublisher) PublishTimeRecordCreated(context.Context, *TimeRecord) error {
	return nil
}

// EmployeeLookup は従業員の存在確認に利用する従業員台帳の参照口です。
type EmployeeLookup interface {
	GetEmployee(ctx context.Context, in employee.GetEmployeeInput) (*employee.Employee, error)
}

// Options は Service の任意設定です。
type Options struct {
	// Location は業務日の境界を決めるタイムゾーンです。nil の場合は DefaultUTCOffset を使います。
	Location  *time.Location
	Publisher EventPublisher
	// PublishTimeout は配信 1 件あたりの待ち時間の上限です。0 以下の場合は DefaultPublishTimeout を使います。
	PublishTimeout time.Duration
	Logger         *slog.Logger
}

// Service は出勤・退勤の判定と打刻の記録を担います。
type Service struct {
	repo      Repository
	employees EmployeeLookup
	clock     Clock
	tx        TransactionManager
	loc       *time.Location
	publisher EventPublisher
	timeout   time.Duration
	logger    *slog.Logger
}

// UseCase は打刻ユースケースの公開インターフェースです。
type UseCase interface {
	RecordTimeRecord(ctx context.Context, in RecordTimeRecordInput) (*TimeRecord, error)
	GetTimeRecord(ctx context.Context, in GetTimeRecordInput) (*TimeRecord, error)
	ListTimeRecords(ctx context.Context, in ListTimeRecordsInput) (*query.Result[TimeRecord], error)
}

// NewService は Service を生成します。
func NewService(repo Repository, employees EmployeeLookup, clock Clock, tx TransactionManager, opts Options) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.FixedZone("UTC-3", int(DefaultUTCOffset/time.Second))
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}
	timeout := opts.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		employees: employees,
		clock:     clock,
		tx:        tx,
		loc:       loc,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

// RecordTimeRecordInput は打刻時の入力です。
type RecordTimeRecordInput struct {
	EmployeeID int64
}

// GetTimeRecordInput は打刻取得時の入力です。
type GetTimeRecordInput struct {
	ID     int64
	Fields query.Projection
}

// ListTimeRecordsInput は一覧取得時の入力です。
type ListTimeRecordsInput struct {
	Filter query.Filter
	Page   query.Page
	Fields query.Projection
}

// RecordTimeRecord は当日の直近の打刻から種別を決めて新しい打刻を 1 件追加します。
// 当日の打刻がない、または直近が EXIT なら ARRIVAL、それ以外は EXIT です。
func (s *Service) RecordTimeRecord(ctx context.Context, in RecordTimeRecordInput) (*TimeRecord, error) {
	if in.EmployeeID <= 0 {
		return nil, fmt.Errorf("employee id: %w", ErrInvalidEmployeeID)
	}

	now := s.clock.Now().In(s.loc)
	from, to := DayWindow(now)

	var created *TimeRecord
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.employees.GetEmployee(txCtx, employee.GetEmployeeInput{
			ID:     in.EmployeeID,
			Fields: query.Projection{employee.FieldID},
		}); err != nil {
			return err
		}

		if err := s.repo.LockTimeline(txCtx, in.EmployeeID); err != nil {
			return err
		}

		last, err := s.repo.FindLastInWindow(txCtx, in.EmployeeID, from, to)
		if err != nil && !errors.Is(err, ErrTimeRecordNotFound) {
			return err
		}

		result, err := s.repo.Create(txCtx, &TimeRecord{
			EmployeeID: in.EmployeeID,
			DateTime:   now,
			Type:       NextType(last),
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, created)

	return created, nil
}

// publish は打刻イベントを配信します。挿入は確定済みのため、失敗やタイムアウトはログに残すだけです。
// リクエストのキャンセルとは切り離し、s.timeout で打ち切ります。
func (s *Service) publish(ctx context.Context, rec *TimeRecord) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.publisher.PublishTimeRecordCreated(pubCtx, rec); err != nil {
		s.logger.WarnContext(ctx, "time record event publish failed",
			"timeRecordId", rec.ID, "employeeId", rec.EmployeeID, "err", err)
	}
}

// GetTimeRecord は打刻を取得します。
func (s *Service) GetTimeRecord(ctx context.Context, in GetTimeRecordInput) (*TimeRecord, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *TimeRecord
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, in.ID, in.Fields)
		if errors.Is(err, ErrTimeRecordNotFound) {
			return fmt.Errorf("%w: time record with ID %d", ErrTimeRecordNotFound, in.ID)
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

// ListTimeRecords は打刻の一覧を取得します。
func (s *Service) ListTimeRecords(ctx context.Context, in ListTimeRecordsInput) (*query.Result[TimeRecord], error) {
	page, err := query.NormalizePage(in.Page)
	if err != nil {
		return nil, err
	}

	var result *query.Result[TimeRecord]
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		records, total, err := s.repo.List(txCtx, in.Filter, page, in.Fields)
		if err != nil {
			return err
		}
		result = &query.Result[TimeRecord]{Items: records, Total: total, Page: page}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// NextType は直近の打刻から次の種別を決定します。
func NextType(last *TimeRecord) Type {
	if last == nil || last.Type == TypeExit {
		return TypeArrival
	}
	return TypeExit
}

// DayWindow は t のタイムゾーンにおける業務日 [00:00:00.000, 23:59:59.999] を返します。
func DayWindow(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}
