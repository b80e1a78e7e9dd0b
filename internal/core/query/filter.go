package query

import (
	"errors"
	"sort"
)

var (
	// ErrInvalidFilterValue は認識済みフィルタの値が解釈できない場合に返却されます。
	ErrInvalidFilterValue = errors.New("query: invalid filter value")
	// ErrInvalidSkip は skip が負の場合に返却されます。
	ErrInvalidSkip = errors.New("query: skip must be greater than or equal to 0")
	// ErrInvalidLimit は limit が範囲外の場合に返却されます。
	ErrInvalidLimit = errors.New("query: limit must be between 1 and 200")
)

// Op は述語の比較方法です。
type Op int

const (
	// OpEqual は完全一致です。
	OpEqual Op = iota + 1
	// OpContainsFold は大文字小文字を区別しない部分一致です。
	OpContainsFold
)

// Predicate はフィールドに対する単一の条件です。
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Equal は完全一致の述語を生成します。
func Equal(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEqual, Value: value}
}

// ContainsFold は大文字小文字を区別しない部分一致の述語を生成します。
func ContainsFold(field, value string) Predicate {
	return Predicate{Field: field, Op: OpContainsFold, Value: value}
}

// Filter は AND で結合された述語の集合です。
type Filter struct {
	predicates []Predicate
}

// NewFilter は述語から Filter を生成します。
func NewFilter(predicates ...Predicate) Filter {
	var f Filter
	for _, p := range predicates {
		f.add(p)
	}
	return f
}

// add は同じフィールドの述語を置き換えつつ追加します。
func (f *Filter) add(p Predicate) {
	for i, existing := range f.predicates {
		if existing.Field == p.Field {
			f.predicates[i] = p
			return
		}
	}
	f.predicates = append(f.predicates, p)
}

// Predicates は述語の一覧を返します。
func (f Filter) Predicates() []Predicate {
	out := make([]Predicate, len(f.predicates))
	copy(out, f.predicates)
	return out
}

// Lookup はフィールドに対応する述語を返します。
func (f Filter) Lookup(field string) (Predicate, bool) {
	for _, p := range f.predicates {
		if p.Field == field {
			return p, true
		}
	}
	return Predicate{}, false
}

// Empty は述語が存在しないかを返します。
func (f Filter) Empty() bool {
	return len(f.predicates) == 0
}

// Recognizer はキーと生の値から述語を組み立てます。
// 対象外のキーでは ok=false を返します。
type Recognizer func(key, raw string) (p Predicate, ok bool, err error)

// BuildFilter は入力に存在するキーだけを走査し、認識できたものを AND 条件として集約します。
// skip / limit はページングのため除外し、未知のキーは無視します。
func BuildFilter(raw map[string]string, recognize Recognizer) (Filter, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if k == "skip" || k == "limit" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var f Filter
	for _, k := range keys {
		p, ok, err := recognize(k, raw[k])
		if err != nil {
			return Filter{}, err
		}
		if ok {
			f.add(p)
		}
	}
	return f, nil
}
