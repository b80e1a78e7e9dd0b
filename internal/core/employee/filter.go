package employee

import (
	"strings"

	"github.com/ogurasousui/chronos/internal/core/query"
)

// RecognizeFilter は従業員一覧で利用できるフィルタキーを述語に変換します。
// cpf は完全一致、name / arrivalTime / exitTime は大文字小文字を区別しない部分一致です。
// 空の値はどのキーでも無視します。
func RecognizeFilter(key, raw string) (query.Predicate, bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return query.Predicate{}, false, nil
	}

	switch key {
	case FieldCPF:
		return query.Equal(FieldCPF, value), true, nil
	case FieldName, FieldArrivalTime, FieldExitTime:
		return query.ContainsFold(key, value), true, nil
	default:
		return query.Predicate{}, false, nil
	}
}
