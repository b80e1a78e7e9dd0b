// Package memory はテストとローカル実行のためのインメモリ永続化を提供します。
package memory

import (
	"context"
	"sync"

	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/query"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
)

// Store は従業員・カード・打刻を保持します。外部キーと一意制約は PostgreSQL のスキーマと同じ規則で検証します。
type Store struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	employees   map[int64]*employee.Employee
	cards       map[int64]*card.Card
	timeRecords map[int64]*timerecord.TimeRecord
	nextID      map[string]int64
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{
		employees:   make(map[int64]*employee.Employee),
		cards:       make(map[int64]*card.Card),
		timeRecords: make(map[int64]*timerecord.TimeRecord),
		nextID:      make(map[string]int64),
	}
}

func (s *Store) allocate(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

type writeTxKey struct{}

// WithinReadOnly は fn をそのまま実行します。
func (s *Store) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// WithinReadWrite は書き込みを伴う fn を直列に実行します。入れ子の呼び出しは外側のロックを引き継ぎます。
func (s *Store) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	if ctx.Value(writeTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, writeTxKey{}, struct{}{}))
}

// Employees は従業員リポジトリを返します。
func (s *Store) Employees() *EmployeeRepository {
	return &EmployeeRepository{store: s}
}

// Cards はカードリポジトリを返します。
func (s *Store) Cards() *CardRepository {
	return &CardRepository{store: s}
}

// TimeRecords は打刻リポジトリを返します。
func (s *Store) TimeRecords() *TimeRecordRepository {
	return &TimeRecordRepository{store: s}
}

// paginate は ID 昇順に並んだ items から page の範囲を切り出します。
func paginate[T any](items []*T, page query.Page) []*T {
	if page.Skip >= len(items) {
		return []*T{}
	}
	end := len(items)
	if page.Limit > 0 && page.Skip+page.Limit < end {
		end = page.Skip + page.Limit
	}
	return items[page.Skip:end]
}
