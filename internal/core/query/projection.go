package query

import "strings"

// Projection はレスポンスに含めるフィールドの集合です。
// nil は「制限なし」を表し、すべてのフィールドを返却します。
type Projection []string

// BuildProjection は要求されたフィールドと許可リストの積集合から Projection を構築します。
// 要求が空、または積集合が空の場合は nil (制限なし) を返します。
func BuildProjection(requested []string, allowed []string) Projection {
	if len(requested) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(requested))
	for _, f := range requested {
		wanted[strings.TrimSpace(f)] = struct{}{}
	}

	var out Projection
	for _, f := range allowed {
		if _, ok := wanted[f]; ok {
			out = append(out, f)
			delete(wanted, f)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// Includes はフィールドが Projection に含まれるかを返します。
func (p Projection) Includes(field string) bool {
	if p == nil {
		return true
	}
	for _, f := range p {
		if f == field {
			return true
		}
	}
	return false
}

// Restricted は Projection がフィールドを絞り込んでいるかを返します。
func (p Projection) Restricted() bool {
	return p != nil
}

// ParseFields はカンマ区切りのフィールド指定を分解します。
func ParseFields(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}
