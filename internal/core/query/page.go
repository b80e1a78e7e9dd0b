package query

const (
	// DefaultLimit は limit 未指定時の件数です。
	DefaultLimit = 10
	// MaxLimit は 1 リクエストで取得できる最大件数です。
	MaxLimit = 200
)

// Page は skip / limit によるページング指定です。
type Page struct {
	Skip  int
	Limit int
}

// NormalizePage は Page を検証し、limit の既定値を補完します。
func NormalizePage(p Page) (Page, error) {
	if p.Skip < 0 {
		return Page{}, ErrInvalidSkip
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return Page{}, ErrInvalidLimit
	}
	return p, nil
}

// Result は一覧取得の結果です。Total はフィルタに一致した総件数です。
type Result[T any] struct {
	Items []*T
	Total int
	Page  Page
}
