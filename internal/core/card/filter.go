package card

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ogurasousui/chronos/internal/core/query"
)

// RecognizeFilter はカード一覧で利用できるフィルタキー (employeeId, active) を述語に変換します。
func RecognizeFilter(key, raw string) (query.Predicate, bool, error) {
	value := strings.TrimSpace(raw)

	switch key {
	case FieldEmployeeID:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id < 1 {
			return query.Predicate{}, false, fmt.Errorf("%s: %w", key, query.ErrInvalidFilterValue)
		}
		return query.Equal(FieldEmployeeID, id), true, nil
	case FieldActive:
		active, err := strconv.ParseBool(value)
		if err != nil {
			return query.Predicate{}, false, fmt.Errorf("%s: %w", key, query.ErrInvalidFilterValue)
		}
		return query.Equal(FieldActive, active), true, nil
	default:
		return query.Predicate{}, false, nil
	}
}
